// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeNotFound, "product 123 not found", nil)
	if got := err.Error(); got != "[NOT_FOUND] product 123 not found" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := New(CodeUpstream, "fetch failed", stderrors.New("connection refused"))
	if got := wrapped.Error(); !strings.Contains(got, "connection refused") {
		t.Errorf("Error() = %q, want cause included", got)
	}
}

func TestCodeOfTraversesChain(t *testing.T) {
	inner := Newf(CodeNotFound, "missing")
	outer := fmt.Errorf("lookup: %w", inner)

	if got := CodeOf(outer); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want NOT_FOUND", got)
	}
	if !Is(outer, CodeNotFound) {
		t.Error("Is should match through wrapping")
	}
	if Is(outer, CodeUpstream) {
		t.Error("Is matched the wrong code")
	}
}

func TestCodeOfUnknownError(t *testing.T) {
	if got := CodeOf(stderrors.New("plain")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %q, want INTERNAL_ERROR", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}

func TestWithRecoverable(t *testing.T) {
	err := New(CodeUpstream, "transient", nil).WithRecoverable(true)
	if !err.Recoverable {
		t.Error("expected recoverable")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := New(CodeToolFailure, "tool blew up", cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	var ae *AgentError
	if !stderrors.As(err, &ae) || ae.Code != CodeToolFailure {
		t.Errorf("errors.As failed: %v", ae)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New(CodeLLMError, "backend down", stderrors.New("dial tcp")).WithRecoverable(true)
	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("marshal: %v", mErr)
	}
	var payload map[string]any
	if uErr := json.Unmarshal(data, &payload); uErr != nil {
		t.Fatalf("unmarshal: %v", uErr)
	}
	if payload["code"] != "LLM_ERROR" || payload["cause"] != "dial tcp" || payload["recoverable"] != true {
		t.Errorf("payload = %v", payload)
	}
}
