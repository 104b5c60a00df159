package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/foodscout/foodscout/pkg/a2a"
)

// Discovery constants for the card's HTTP endpoint.
const (
	// WellKnownPath is the standardized location for card discovery.
	WellKnownPath = "/.well-known/agent-card.json"
	// DefaultMediaType is the A2A media type for JSON payloads.
	DefaultMediaType = "application/a2a+json"
)

// PublishHandler serves the card as a static, cache-friendly document.
// Reads are unauthenticated by contract.
func PublishHandler(card *a2a.AgentCard) http.Handler {
	var payload []byte
	if card != nil {
		payload, _ = json.Marshal(card)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if payload == nil {
			http.Error(w, "agent card not configured", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", DefaultMediaType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	})
}

// Fetch retrieves an agent card from a base URL.
func Fetch(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", DefaultMediaType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var card a2a.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}
