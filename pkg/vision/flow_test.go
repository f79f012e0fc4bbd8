package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-companion/internal/log"
	"github.com/teslashibe/go-companion/pkg/backend"
	"github.com/teslashibe/go-companion/pkg/inference"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

type fakeUploader struct {
	mu     sync.Mutex
	images []string
	answer string
	err    error
	block  chan struct{}
}

func (u *fakeUploader) Vision(ctx context.Context, b64 string) (string, error) {
	if u.block != nil {
		<-u.block
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.images = append(u.images, b64)
	return u.answer, u.err
}

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
}

func newTestFlow(c Capturer, u Uploader, opts ...Option) (*Flow, *transcript.Log, *alerts) {
	tl := transcript.New(transcript.WithLogger(log.Nop()))
	a := &alerts{}
	opts = append([]Option{
		WithLogger(log.Nop()),
		WithSettleDelay(0),
		WithRevealInterval(0),
		WithNotifier(a),
	}, opts...)
	return NewFlow(c, u, tl, opts...), tl, a
}

func TestAnalyzeSuccess(t *testing.T) {
	capt := NewMockCapturer()
	up := &fakeUploader{answer: "B is correct"}
	f, tl, a := newTestFlow(capt, up)

	var states []State
	f.OnStateChange(func(s State) { states = append(states, s) })

	if err := f.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := tl.Items()
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Role != transcript.RoleUser || items[0].Title != QuestionPlaceholder {
		t.Errorf("question = %+v", items[0])
	}
	if items[1].Role != transcript.RoleAssistant || items[1].Title != "B is correct" {
		t.Errorf("answer = %+v", items[1])
	}
	if items[1].Status != transcript.StatusDone {
		t.Errorf("answer status = %s", items[1].Status)
	}

	if len(up.images) != 1 {
		t.Fatalf("uploads = %d", len(up.images))
	}
	b64 := up.images[0]
	if strings.HasPrefix(b64, "data:") {
		t.Error("upload carries a data URI prefix")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || !strings.HasPrefix(string(raw), "\x89PNG") {
		t.Errorf("upload is not a base64 PNG: %v", err)
	}

	want := []State{StateCapturing, StateUploading, StateAnswering, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
	if capt.Stops() != 1 {
		t.Errorf("stream stopped %d times", capt.Stops())
	}
	if len(a.msgs) != 0 {
		t.Errorf("unexpected alerts %v", a.msgs)
	}
}

func TestAnalyzeCaptureDenied(t *testing.T) {
	capt := NewMockCapturer()
	capt.SetOpenError(&CaptureError{Op: "open", Denied: true, Err: errors.New("not allowed")})
	up := &fakeUploader{answer: "unused"}
	f, tl, a := newTestFlow(capt, up)

	err := f.Analyze(context.Background())
	if !IsCaptureError(err) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if len(up.images) != 0 {
		t.Error("nothing should be uploaded")
	}

	items := tl.Items()
	if got := items[1].Title; got != "Vision API failed: screen capture permission denied" {
		t.Errorf("answer = %q", got)
	}
	if len(a.msgs) != 1 || !strings.HasPrefix(a.msgs[0], "Screenshot or Vision API failed: ") {
		t.Errorf("alerts = %v", a.msgs)
	}
	if f.State() != StateIdle {
		t.Errorf("state = %s", f.State())
	}
}

func TestAnalyzeBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["image"] == "" {
			t.Error("image missing from upload")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	capt := NewMockCapturer()
	client := backend.NewClient(srv.URL, backend.WithLogger(log.Nop()))
	f, tl, a := newTestFlow(capt, client)

	err := f.Analyze(context.Background())
	if !backend.IsUploadError(err) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	answer := tl.Items()[1]
	if answer.Title != "Vision API failed: Vision API error (500)" {
		t.Errorf("answer = %q", answer.Title)
	}
	if answer.Status != transcript.StatusDone {
		t.Errorf("status = %s", answer.Status)
	}
	if len(a.msgs) != 1 {
		t.Errorf("alerts = %v", a.msgs)
	}
	if capt.Stops() != 1 {
		t.Errorf("stream stopped %d times", capt.Stops())
	}
}

func TestAnalyzeBusy(t *testing.T) {
	up := &fakeUploader{answer: "ok", block: make(chan struct{})}
	f, _, _ := newTestFlow(NewMockCapturer(), up)

	done := make(chan error, 1)
	go func() { done <- f.Analyze(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.State() != StateUploading {
		if time.Now().After(deadline) {
			t.Fatal("flow never reached UPLOADING")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.Analyze(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Analyze = %v, want ErrBusy", err)
	}
	close(up.block)
	if err := <-done; err != nil {
		t.Errorf("first Analyze: %v", err)
	}
	if f.Busy() {
		t.Error("flow still busy")
	}
}

func TestAnalyzeRevealsAnswer(t *testing.T) {
	up := &fakeUploader{answer: "one two"}
	tl := transcript.New(transcript.WithLogger(log.Nop()))
	f := NewFlow(NewMockCapturer(), up, tl,
		WithLogger(log.Nop()), WithSettleDelay(0), WithRevealInterval(time.Millisecond))

	var seen []string
	tl.Subscribe(func(c transcript.Change) {
		if c.Kind == transcript.ChangeUpdated && c.Item.Role == transcript.RoleAssistant {
			seen = append(seen, c.Item.Title)
		}
	})

	if err := f.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []string{"one", "one ", "one two", "one two"}
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Errorf("updates = %q, want %q", seen, want)
	}
}

func TestAnalyzeSettleDelay(t *testing.T) {
	up := &fakeUploader{answer: "ok"}
	f, _, _ := newTestFlow(NewMockCapturer(), up, WithSettleDelay(30*time.Millisecond))

	start := time.Now()
	if err := f.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("frame read before the settle delay")
	}
}

func TestCommandCapturerResolve(t *testing.T) {
	c := NewCommandCapturer("grim {file}", log.Nop())
	argv, err := c.Resolve()
	if err != nil || argv[0] != "grim" || argv[1] != FilePlaceholder {
		t.Errorf("Resolve = %v, %v", argv, err)
	}

	c = NewCommandCapturer("", log.Nop())
	c.lookPath = func(string) (string, error) { return "", errors.New("missing") }
	if _, err := c.Open(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("Open with no tools = %v, want ErrNoSource", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommandCapturerFrame(t *testing.T) {
	b64, err := inference.EncodePNGBase64(NewMockCapturer().frame)
	if err != nil {
		t.Fatal(err)
	}
	png := filepath.Join(t.TempDir(), "frame.png")
	raw, _ := base64.StdEncoding.DecodeString(b64)
	if err := os.WriteFile(png, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	script := writeScript(t, `cp "`+png+`" "$1"`+"\n")
	c := NewCommandCapturer(script+" "+FilePlaceholder, log.Nop())
	stream, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	img, err := stream.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
	stream.Stop()
	if _, err := stream.Frame(context.Background()); !IsCaptureError(err) {
		t.Errorf("Frame after Stop = %v", err)
	}

	stdout := NewCommandCapturer(writeScript(t, `cat "`+png+`"`+"\n"), log.Nop())
	stream, _ = stdout.Open(context.Background())
	defer stream.Stop()
	if _, err := stream.Frame(context.Background()); err != nil {
		t.Errorf("stdout Frame: %v", err)
	}
}

func TestCommandCapturerDenied(t *testing.T) {
	script := writeScript(t, "echo 'capture: permission denied' >&2\nexit 1\n")
	c := NewCommandCapturer(script, log.Nop())
	stream, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Stop()

	_, err = stream.Frame(context.Background())
	var ce *CaptureError
	if !errors.As(err, &ce) || !ce.Denied {
		t.Fatalf("expected denied CaptureError, got %v", err)
	}
}
