package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/go-companion/pkg/devices"
	"github.com/teslashibe/go-companion/pkg/qa"
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/transcript"
	"github.com/teslashibe/go-companion/pkg/vision"
)

type fakeController struct {
	mu    sync.Mutex
	snap  Snapshot
	calls []string
	err   error
}

func (f *fakeController) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) ToggleListening(ctx context.Context) error { return f.record("listen") }
func (f *fakeController) SaveCustomPrompt(ctx context.Context, text string) error {
	return f.record("prompt:" + text)
}
func (f *fakeController) AnalyzeScreen(ctx context.Context) error { return f.record("vision") }
func (f *fakeController) Ask(ctx context.Context, q string) error  { return f.record("ask:" + q) }
func (f *fakeController) RefreshDevices(ctx context.Context) error { return f.record("refresh") }
func (f *fakeController) SelectDevice(ctx context.Context, id string) error {
	return f.record("select:" + id)
}
func (f *fakeController) ToggleContentProtection() error { return f.record("protect") }

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestModel(snap Snapshot) (*Model, *fakeController) {
	ctrl := &fakeController{snap: snap}
	return New(context.Background(), ctrl), ctrl
}

func press(t *testing.T, m *Model, k tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(k)
	if cmd == nil {
		return nil
	}
	msg := cmd()
	m.Update(msg)
	return msg
}

func ctrlKey(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestVoiceColor(t *testing.T) {
	tests := []struct {
		level float64
		want  string
	}{
		{0, "#1FF91F"},
		{0.5, "#F9F91F"},
		{1, "#F91F1F"},
		{-3, "#1FF91F"},
		{7, "#F91F1F"},
	}
	for _, tt := range tests {
		if got := string(VoiceColor(tt.level)); got != tt.want {
			t.Errorf("VoiceColor(%v) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestWaveform(t *testing.T) {
	out := Waveform([]float64{0, 0.5, 1, 2, 0, 0, 0}, 0.3)
	for _, g := range []string{"▁", "█"} {
		if !strings.Contains(out, g) {
			t.Errorf("waveform %q missing %q", out, g)
		}
	}
}

func TestToggleOverlays(t *testing.T) {
	m, _ := newTestModel(Snapshot{CustomPrompt: "be brief"})

	press(t, m, ctrlKey(tea.KeyCtrlAt))
	if m.Mode() != ModeQA {
		t.Fatalf("mode = %v, want QA", m.Mode())
	}
	press(t, m, ctrlKey(tea.KeyCtrlAt))
	if m.Mode() != ModeMain {
		t.Fatalf("mode = %v, want main", m.Mode())
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP, Alt: true})
	if m.Mode() != ModePrompt {
		t.Fatalf("alt+ctrl+p mode = %v", m.Mode())
	}
	if m.editor.Value() != "be brief" {
		t.Errorf("editor = %q", m.editor.Value())
	}
	press(t, m, ctrlKey(tea.KeyEsc))
	if m.Mode() != ModeMain {
		t.Errorf("esc should close the prompt editor")
	}
}

func TestSavePrompt(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{})
	press(t, m, ctrlKey(tea.KeyCtrlP))
	typeText(m, "answer in French")

	msg := press(t, m, ctrlKey(tea.KeyCtrlS))
	if _, ok := msg.(PromptSavedMsg); !ok {
		t.Fatalf("msg = %#v", msg)
	}
	if m.Mode() != ModeMain {
		t.Error("editor should close after save")
	}
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "prompt:answer in French" {
		t.Errorf("calls = %v", calls)
	}
}

func TestSavePromptError(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{})
	ctrl.err = errors.New("disk full")
	press(t, m, ctrlKey(tea.KeyCtrlP))

	press(t, m, ctrlKey(tea.KeyCtrlS))
	if m.Mode() != ModePrompt {
		t.Error("editor should stay open on failure")
	}
	if !strings.Contains(m.View(), "disk full") {
		t.Error("error not rendered")
	}
}

func TestAskFromQAPanel(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{QA: []qa.Pair{{Question: "earlier", Answer: "yes"}}})
	press(t, m, ctrlKey(tea.KeyCtrlAt))

	press(t, m, ctrlKey(tea.KeyEnter))
	if len(ctrl.Calls()) != 0 {
		t.Error("blank question should not be sent")
	}

	typeText(m, "what is a goroutine")
	press(t, m, ctrlKey(tea.KeyEnter))
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "ask:what is a goroutine" {
		t.Errorf("calls = %v", calls)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after sending")
	}
	if !strings.Contains(m.View(), "earlier") {
		t.Error("chat history not rendered")
	}
}

func TestListeningAndVision(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{Vision: vision.StateIdle})
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlL, Alt: true})
	press(t, m, ctrlKey(tea.KeyCtrlV))
	press(t, m, ctrlKey(tea.KeyCtrlE))

	want := []string{"listen", "vision", "protect"}
	if got := ctrl.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestVisionIgnoredWhileBusy(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{Vision: vision.StateUploading})
	if _, cmd := m.Update(ctrlKey(tea.KeyCtrlV)); cmd != nil {
		t.Error("busy vision should not start another request")
	}
	if len(ctrl.Calls()) != 0 {
		t.Errorf("calls = %v", ctrl.Calls())
	}
}

func TestVisionErrorIsQuiet(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{})
	ctrl.err = errors.New("capture failed")
	msg := press(t, m, ctrlKey(tea.KeyCtrlV))
	if _, ok := msg.(RefreshMsg); !ok {
		t.Errorf("msg = %#v, want RefreshMsg", msg)
	}
	if m.err != nil {
		t.Error("vision errors are shown through the alert")
	}
}

func TestMicrophonePicker(t *testing.T) {
	snap := Snapshot{
		Devices: []devices.Device{
			{ID: "default", Label: "Default"},
			{ID: "hw:1,0", Label: "USB Mic"},
		},
		Device: "default",
	}
	m, ctrl := newTestModel(snap)
	press(t, m, ctrlKey(tea.KeyCtrlO))
	if m.Mode() != ModeMicrophones {
		t.Fatalf("mode = %v", m.Mode())
	}
	if !strings.Contains(m.View(), "✓ Default") {
		t.Error("selected device not marked")
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	press(t, m, ctrlKey(tea.KeyDown))
	press(t, m, ctrlKey(tea.KeyEnter))

	want := []string{"refresh", "select:hw:1,0"}
	if got := ctrl.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if m.Mode() != ModeMain {
		t.Error("picker should close after selecting")
	}
}

func TestMicrophonePickerDisabledWhileLoading(t *testing.T) {
	m, _ := newTestModel(Snapshot{DevicesLoading: true})
	press(t, m, ctrlKey(tea.KeyCtrlO))
	if m.Mode() != ModeMain {
		t.Error("picker should not open while devices load")
	}
}

func TestAlertDismissedByAnyKey(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{})
	m.Update(AlertMsg{Message: "Screenshot or Vision API failed: boom"})
	if !strings.Contains(m.View(), "Screenshot or Vision API failed: boom") {
		t.Fatal("alert not rendered")
	}
	press(t, m, ctrlKey(tea.KeyCtrlL))
	if strings.Contains(m.View(), "boom") {
		t.Error("alert still shown")
	}
	if len(ctrl.Calls()) != 0 {
		t.Error("dismissing key should not trigger an action")
	}
}

func TestMainViewShowsLatestPair(t *testing.T) {
	tl := transcript.New()
	tl.AddMessage("q1", transcript.RoleUser, "first question", false)
	tl.AddMessage("a1", transcript.RoleAssistant, "first answer", false)
	tl.AddMessage("q2", transcript.RoleUser, "second question", false)
	tl.AddMessage("a2", transcript.RoleAssistant, "```\nfmt.Println()\n```\nPrints a line.", false)

	m, _ := newTestModel(Snapshot{Status: realtime.StatusConnected, Agent: "generalAI", Items: tl.Items()})
	view := m.View()
	for _, want := range []string{"CONNECTED", "second question", "fmt.Println()", "Prints a line."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "first question") {
		t.Error("history should be hidden by default")
	}

	press(t, m, ctrlKey(tea.KeyCtrlT))
	if !strings.Contains(m.View(), "first question") {
		t.Error("history toggle did not show earlier pairs")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(Snapshot{})
	_, cmd := m.Update(ctrlKey(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestRefreshReadsSnapshot(t *testing.T) {
	m, ctrl := newTestModel(Snapshot{})
	ctrl.mu.Lock()
	ctrl.snap.Listening = true
	ctrl.snap.Status = realtime.StatusConnected
	ctrl.mu.Unlock()

	m.Update(RefreshMsg{})
	if !m.snap.Listening || m.snap.Status != realtime.StatusConnected {
		t.Errorf("snapshot not refreshed: %+v", m.snap)
	}
}
