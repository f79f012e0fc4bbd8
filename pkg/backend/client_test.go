package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-companion/internal/log"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithLogger(log.Nop()))
}

func TestFetchCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" || r.Method != http.MethodGet {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_abc","expires_at":1700000000}}`))
	})

	tok, err := c.FetchCredential(context.Background())
	if err != nil {
		t.Fatalf("FetchCredential: %v", err)
	}
	if tok.AccessToken != "ek_abc" || tok.TokenType != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
	if !tok.Expiry.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Expiry = %v", tok.Expiry)
	}
}

func TestFetchCredentialErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantNoKey  bool
	}{
		{name: "server error", status: 500, body: `{"error":"OpenAI API key not configured"}`, wantStatus: 500},
		{name: "missing secret", status: 200, body: `{"id":"sess_1"}`, wantNoKey: true},
		{name: "empty secret", status: 200, body: `{"client_secret":{"value":""}}`, wantNoKey: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.FetchCredential(context.Background())
			var ce *CredentialError
			if !errors.As(err, &ce) {
				t.Fatalf("expected CredentialError, got %v", err)
			}
			if ce.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", ce.StatusCode, tt.wantStatus)
			}
			if errors.Is(err, ErrNoEphemeralKey) != tt.wantNoKey {
				t.Errorf("ErrNoEphemeralKey = %v, want %v", errors.Is(err, ErrNoEphemeralKey), tt.wantNoKey)
			}
		})
	}
}

func TestFetchCredentialUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithLogger(log.Nop()))
	_, err := c.FetchCredential(context.Background())
	if !IsCredentialError(err) {
		t.Errorf("expected CredentialError, got %v", err)
	}
}

func TestVision(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["image"] != "AAAA" {
			t.Errorf("image = %q", body["image"])
		}
		w.Write([]byte(`{"answer":"B"}`))
	})
	answer, err := c.Vision(context.Background(), "AAAA")
	if err != nil || answer != "B" {
		t.Errorf("Vision = %q, %v", answer, err)
	}
}

func TestVisionEmptyAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	answer, err := c.Vision(context.Background(), "AAAA")
	if err != nil || answer != NoVisionAnswer {
		t.Errorf("Vision = %q, %v", answer, err)
	}
}

func TestVisionErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte(`{"error":"Vision API error"}`))
	})
	_, err := c.Vision(context.Background(), "AAAA")
	var ue *UploadError
	if !errors.As(err, &ue) || ue.StatusCode != 500 {
		t.Fatalf("expected UploadError 500, got %v", err)
	}
	if ue.Error() != "backend: Vision API error 500" {
		t.Errorf("Error() = %q", ue.Error())
	}
}

func TestRespondReturnsBodyWhateverStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ResponsesRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Input) != 1 || req.Input[0].Content != "why?" {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"bad"}}`))
	})
	raw, err := c.Respond(context.Background(), ResponsesRequest{
		Model: "gpt-4o-mini",
		Input: []InputMessage{{Role: "user", Content: "why?"}},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if string(raw) != `{"error":{"message":"bad"}}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestRespondTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithLogger(log.Nop()))
	_, err := c.Respond(context.Background(), ResponsesRequest{Model: "m"})
	if !IsUploadError(err) {
		t.Errorf("expected UploadError, got %v", err)
	}
}
