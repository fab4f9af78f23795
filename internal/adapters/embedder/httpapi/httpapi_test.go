package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedTextsNormalizesVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := embeddingsResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{3, 4}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(srv.URL, "bge-m3", 2)
	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed texts: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	norm := math.Sqrt(float64(vecs[0][0])*float64(vecs[0][0]) + float64(vecs[0][1])*float64(vecs[0][1]))
	if math.Abs(norm-1.0) > 1e-6 {
		t.Fatalf("expected unit-norm vector, got norm %f", norm)
	}
}

func TestEmbedTextsSurfacesBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(srv.URL, "bge-m3", 2)
	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	if err == nil {
		t.Fatalf("expected an error on non-200 response")
	}
}
