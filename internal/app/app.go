// SPDX-License-Identifier: Apache-2.0

// Package app wires together all foodscout components.
// This is the composition root; all dependencies are created and
// connected here.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/foodscout/foodscout/pkg/a2a"
	"github.com/foodscout/foodscout/pkg/a2a/agentcard"
	"github.com/foodscout/foodscout/pkg/agent"
	"github.com/foodscout/foodscout/pkg/config"
	"github.com/foodscout/foodscout/pkg/gateway"
	"github.com/foodscout/foodscout/pkg/llm"
	"github.com/foodscout/foodscout/pkg/memory"
	"github.com/foodscout/foodscout/pkg/offdata"
	"github.com/foodscout/foodscout/pkg/telemetry"
	"github.com/foodscout/foodscout/pkg/tools"
	"github.com/foodscout/foodscout/pkg/ws"
)

const (
	// Name identifies the service in logs, traces and the agent card.
	Name = "foodscout"
	// Version is the service version advertised over both protocols.
	Version = "0.1.0"
)

// App holds the application state and components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates the application from loaded configuration.
func New(cfg *config.Config) (*App, error) {
	logger := telemetry.ConfigureSlog(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	return &App{cfg: cfg, logger: logger}, nil
}

// Run assembles the service and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	shutdownTelemetry, err := telemetry.Init(Name, Version, telemetry.Config{
		Exporter:     a.cfg.Telemetry.Exporter,
		OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: a.cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	a.logger.Info("starting",
		"name", Name,
		"version", Version,
		"addr", a.cfg.Server.Addr,
		"llm_provider", a.cfg.LLM.Provider,
	)

	// Data source and tool catalog.
	dataClient := offdata.NewClient(a.cfg.Tools.BaseURL,
		offdata.WithUserAgent(a.cfg.Tools.UserAgent),
		offdata.WithHTTPClient(&http.Client{
			Timeout: time.Duration(a.cfg.Tools.TimeoutMS) * time.Millisecond,
		}),
	)
	registry := tools.NewRegistry(dataClient)

	// Tool gateway.
	gw := gateway.NewServer(Name, Version, registry, gateway.WithLogger(a.logger))

	// Model backend.
	provider, err := a.createLLMProvider()
	if err != nil {
		return err
	}

	// The agent prefers calling its own gateway endpoint and falls back
	// to in-process dispatch when the gateway probe fails.
	gatewaySource := agent.NewGatewaySource(a.cfg.Server.PublicURL+"/mcp", a.cfg.Server.GatewayToken)
	defer gatewaySource.Close(context.Background())
	source := &agent.FailoverSource{
		Primary:  gatewaySource,
		Fallback: &agent.InProcessSource{Registry: registry},
	}

	conversation := memory.NewInMemoryConversation(memory.ConversationConfig{
		TruncationStrategy: &memory.WindowStrategy{
			MaxMessages:        a.cfg.Agent.HistoryWindow,
			KeepSystemMessages: true,
		},
	})

	agentOpts := []agent.Option{
		agent.WithLogger(a.logger),
		agent.WithConversationMemory(conversation),
		agent.WithTemperature(a.cfg.LLM.Temperature),
	}
	if a.cfg.Agent.MaxIterations > 0 {
		agentOpts = append(agentOpts, agent.WithMaxIterations(a.cfg.Agent.MaxIterations))
	}
	if a.cfg.Agent.SystemPrompt != "" {
		agentOpts = append(agentOpts, agent.WithSystemPrompt(a.cfg.Agent.SystemPrompt))
	}

	// Interactive channel; the hub doubles as the agent's progress sink.
	hub := ws.NewHub(nil, Name, Version, a.logger)
	agentOpts = append(agentOpts, agent.WithEventSink(hub.ForwardEvent))

	ag := agent.New(provider, source, a.cfg.LLM.Model, agentOpts...)
	hub.SetAnswerer(ag)

	// Task protocol.
	store, closeStore, err := a.createTaskStore()
	if err != nil {
		return err
	}
	defer closeStore()

	executor := a2a.ExecutorFunc(func(ctx context.Context, message *a2a.Message) (*a2a.ExecResult, error) {
		result, err := ag.Answer(ctx, message.ContextID, message.Text())
		if err != nil {
			return nil, err
		}
		return &a2a.ExecResult{Content: result.Content, Truncated: result.Truncated}, nil
	})
	taskHandler := a2a.NewHandler(store, executor, a.logger)
	taskServer := a2a.NewJSONRPCServer(taskHandler)

	// Discovery document.
	skills := agentcard.DefaultSkills()
	if a.cfg.Server.SkillsFile != "" {
		skills, err = agentcard.LoadSkills(a.cfg.Server.SkillsFile)
		if err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
	}
	card := agentcard.Build(agentcard.Config{
		Name:        Name,
		Description: "Conversational agent answering food product questions from Open Food Facts data.",
		URL:         a.cfg.Server.PublicURL + "/a2a",
		Version:     Version,
		BearerAuth:  a.cfg.Server.TaskToken != "",
		Skills:      skills,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Handle("/mcp", gateway.BearerAuth(a.cfg.Server.GatewayToken)(gw))
	r.Handle("/a2a", gateway.BearerAuth(a.cfg.Server.TaskToken)(taskServer))
	r.Handle(agentcard.WellKnownPath, agentcard.PublishHandler(card))
	r.Get("/ws", hub.ServeHTTP)
	r.Get("/healthz", healthHandler())

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: the SSE keepalive stream stays open for the
		// whole session.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *App) createLLMProvider() (llm.Provider, error) {
	switch a.cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllama(a.cfg.LLM.BaseURL), nil
	case "mock":
		return &llm.MockProvider{Response: "Mock response from foodscout"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", a.cfg.LLM.Provider)
	}
}

func (a *App) createTaskStore() (a2a.TaskStore, func(), error) {
	switch a.cfg.Tasks.Store {
	case "", "memory":
		return a2a.NewMemoryTaskStore(), func() {}, nil
	case "sqlite":
		store, err := a2a.OpenSQLiteTaskStore(a.cfg.Tasks.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open task store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown task store: %s", a.cfg.Tasks.Store)
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"service": Name,
			"version": Version,
		})
	}
}
