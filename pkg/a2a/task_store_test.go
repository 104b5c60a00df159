// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStoreConcurrentReadsAndWrites(t *testing.T) {
	store := NewMemoryTaskStore()
	ctx := context.Background()

	task, err := store.CreateTask(ctx, NewTextMessage(RoleUser, "start"))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// Readers polling while writers grow history and artifacts, as a
	// non-blocking send racing a poll does.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.AppendHistory(ctx, task.ID, NewTextMessage(RoleAgent, "turn")); err != nil {
				t.Errorf("AppendHistory: %v", err)
			}
			if err := store.AddArtifacts(ctx, task.ID, []Artifact{TextArtifact("answer", "partial")}); err != nil {
				t.Errorf("AddArtifacts: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			got, err := store.GetTask(ctx, task.ID, 5)
			if err != nil {
				t.Errorf("GetTask: %v", err)
				return
			}
			if len(got.History) > 5 {
				t.Errorf("history window not applied: %d", len(got.History))
			}
		}()
	}
	wg.Wait()

	got, err := store.GetTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.History) != 51 {
		t.Errorf("history length = %d, want 51", len(got.History))
	}
	if len(got.Artifacts) != 50 {
		t.Errorf("artifacts = %d, want 50", len(got.Artifacts))
	}
}

func TestGetTaskReturnsIndependentCopy(t *testing.T) {
	store := NewMemoryTaskStore()
	ctx := context.Background()

	task, err := store.CreateTask(ctx, NewTextMessage(RoleUser, "hello"))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	got.History[0].Parts[0].Text = "mutated"
	got.Artifacts = append(got.Artifacts, TextArtifact("x", "y"))

	again, err := store.GetTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if again.History[0].Parts[0].Text != "hello" {
		t.Error("stored history mutated through a returned copy")
	}
	if len(again.Artifacts) != 0 {
		t.Error("stored artifacts mutated through a returned copy")
	}
}
