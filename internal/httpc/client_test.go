package httpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("custom header missing")
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusTeapot)
		json.NewEncoder(w).Encode(map[string]string{"echo": body["q"]})
	}))
	defer server.Close()

	h := http.Header{}
	h.Set("X-Test", "yes")
	resp, err := DoJSON(context.Background(), nil, http.MethodPost, server.URL, map[string]string{"q": "hi"}, h)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.OK() {
		t.Error("418 should not be OK")
	}

	var out map[string]string
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("echo = %q", out["echo"])
	}
}

func TestDoJSONNoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("GET without payload should not set Content-Type")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := DoJSON(context.Background(), NewClient(0), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !resp.OK() {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDoJSONCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DoJSON(ctx, nil, http.MethodGet, "http://127.0.0.1:1", nil, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
