package a2a

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteTaskStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := OpenSQLiteTaskStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	task, err := store.CreateTask(ctx, NewTextMessage(RoleUser, "what is in nutella?"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status.State != TaskStateSubmitted {
		t.Errorf("initial state = %s", task.Status.State)
	}

	if err := store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateWorking, nil)); err != nil {
		t.Fatalf("working: %v", err)
	}
	answer := NewTextMessage(RoleAgent, "hazelnuts, sugar, palm oil")
	if err := store.AppendHistory(ctx, task.ID, answer); err != nil {
		t.Fatalf("history: %v", err)
	}
	if err := store.AddArtifacts(ctx, task.ID, []Artifact{TextArtifact("answer", "hazelnuts, sugar, palm oil")}); err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if err := store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateCompleted, answer)); err != nil {
		t.Fatalf("completed: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.State != TaskStateCompleted {
		t.Errorf("state = %s", got.Status.State)
	}
	if len(got.History) != 2 {
		t.Errorf("history length = %d", len(got.History))
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].Parts[0].Text != "hazelnuts, sugar, palm oil" {
		t.Errorf("artifacts = %+v", got.Artifacts)
	}

	// Completed tasks stay completed.
	if err := store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateWorking, nil)); err == nil {
		t.Error("terminal task must not transition again")
	}
}

func TestSQLiteTaskStoreHistoryWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := OpenSQLiteTaskStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	task, err := store.CreateTask(ctx, NewTextMessage(RoleUser, "first"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, text := range []string{"second", "third", "fourth"} {
		if err := store.AppendHistory(ctx, task.ID, NewTextMessage(RoleUser, text)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.GetTask(ctx, task.ID, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.History))
	}
	if got.History[1].Text() != "fourth" {
		t.Errorf("last history entry = %q", got.History[1].Text())
	}
}

func TestSQLiteTaskStoreUnknownTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := OpenSQLiteTaskStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, err := store.GetTask(context.Background(), "missing", 0); err == nil {
		t.Error("expected error for unknown task")
	}
}
