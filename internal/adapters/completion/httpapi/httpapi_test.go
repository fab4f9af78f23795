package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteReturnsMessageContent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: "the chapter continues"}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "gpt-test")
	out, err := c.Complete(context.Background(), "system prompt", "user prompt", 0.7)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "the chapter continues" {
		t.Fatalf("unexpected completion: %q", out)
	}
	if !strings.Contains(gotAuth, "test-key") {
		t.Fatalf("expected Authorization header to carry api key, got %q", gotAuth)
	}
}

func TestCompleteSurfacesBackendUnavailableOnEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "gpt-test")
	_, err := c.Complete(context.Background(), "sys", "prompt", 0.5)
	if err == nil {
		t.Fatalf("expected an error on empty choices")
	}
}

func TestCompleteSurfacesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "gpt-test")
	_, err := c.Complete(context.Background(), "sys", "prompt", 0.5)
	if err == nil {
		t.Fatalf("expected an error on non-200 response")
	}
}
