package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-companion/internal/log"
)

const arecordOutput = `null
    Discard all samples (playback) or generate zero samples (capture)
default
    Default Audio Device
sysdefault:CARD=PCH
    HDA Intel PCH, ALC3246 Analog
    Default Audio Device
hw:CARD=PCH,DEV=0
    HDA Intel PCH, ALC3246 Analog
    Direct hardware device without any conversions
pulse
    PulseAudio Sound Server
plughw:CARD=Webcam,DEV=0
    USB Webcam, USB Audio
`

func TestParseALSA(t *testing.T) {
	devices := ParseALSA(arecordOutput)
	if len(devices) != 6 {
		t.Fatalf("parsed %d devices: %+v", len(devices), devices)
	}
	if devices[3].ID != "hw:CARD=PCH,DEV=0" || devices[3].Label != "HDA Intel PCH, ALC3246 Analog" || devices[3].GroupID != "PCH" {
		t.Errorf("hw device = %+v", devices[3])
	}
	if devices[5].GroupID != "Webcam" {
		t.Errorf("webcam group = %q", devices[5].GroupID)
	}

	hw := hardwareOnly(devices)
	var ids []string
	for _, d := range hw {
		ids = append(ids, d.ID)
	}
	want := []string{"default", "sysdefault:CARD=PCH", "hw:CARD=PCH,DEV=0", "plughw:CARD=Webcam,DEV=0"}
	if len(ids) != len(want) {
		t.Fatalf("hardware = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("hardware = %v, want %v", ids, want)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arecord")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestALSALister(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	l := &ALSALister{Path: writeScript(t, "cat <<'EOF'\n"+arecordOutput+"EOF\n")}
	devices, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != 4 {
		t.Errorf("devices = %+v", devices)
	}

	denied := &ALSALister{Path: writeScript(t, "echo 'arecord: Permission denied' >&2\nexit 1\n")}
	if _, err := denied.List(context.Background()); !IsPermissionError(err) {
		t.Errorf("err = %v, want PermissionError", err)
	}

	broken := &ALSALister{Path: writeScript(t, "exit 3\n")}
	_, err = broken.List(context.Background())
	if err == nil || IsPermissionError(err) {
		t.Errorf("err = %v", err)
	}
}

func TestDisplayLabel(t *testing.T) {
	tests := []struct {
		dev  Device
		want string
	}{
		{Device{ID: "abc", Label: "Headset"}, "Headset"},
		{Device{ID: "0123456789abcdef"}, "Microphone 01234567..."},
		{Device{ID: "short", Label: "  "}, "Microphone short..."},
	}
	for _, tt := range tests {
		if got := tt.dev.DisplayLabel(); got != tt.want {
			t.Errorf("DisplayLabel(%+v) = %q, want %q", tt.dev, got, tt.want)
		}
	}
}

func TestRegistryEnumerateAutoSelects(t *testing.T) {
	lister := NewMockLister(Device{ID: "mic-a", Label: "A"}, Device{ID: "0123456789"})
	r := NewRegistry(lister, WithLogger(log.Nop()))

	changes := 0
	r.OnChange(func() { changes++ })

	devices, err := r.Enumerate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[1].Label != "Microphone 01234567..." {
		t.Errorf("devices = %+v", devices)
	}
	if r.Selected() != "mic-a" {
		t.Errorf("selected = %q", r.Selected())
	}
	if r.Loading() {
		t.Error("still loading")
	}
	if changes < 2 {
		t.Errorf("changes = %d, want loading and done notifications", changes)
	}

	changed, err := r.Select("0123456789")
	if err != nil || !changed {
		t.Fatalf("Select = %v, %v", changed, err)
	}
	if changed, _ := r.Select("0123456789"); changed {
		t.Error("reselecting should not report a change")
	}
	if _, err := r.Select("ghost"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown select = %v", err)
	}

	r.Enumerate(context.Background())
	if r.Selected() != "0123456789" {
		t.Errorf("re-enumerate overrode selection: %q", r.Selected())
	}
}

func TestRegistryPermissionDenied(t *testing.T) {
	lister := NewMockLister(Device{ID: "a"})
	r := NewRegistry(lister, WithLogger(log.Nop()))
	r.Enumerate(context.Background())

	lister.SetError(&PermissionError{Err: errors.New("denied")})
	_, err := r.Enumerate(context.Background())
	if !IsPermissionError(err) || !IsPermissionError(r.Err()) {
		t.Fatalf("err = %v / %v", err, r.Err())
	}
	if len(r.Devices()) != 1 {
		t.Error("failed enumeration should keep the previous list")
	}

	lister.SetError(nil)
	r.Enumerate(context.Background())
	if r.Err() != nil {
		t.Errorf("Err after success = %v", r.Err())
	}
}

func TestRegistryWatchNotifier(t *testing.T) {
	lister := NewMockLister(Device{ID: "a"})
	r := NewRegistry(lister, WithLogger(log.Nop()))
	r.Enumerate(context.Background())

	updated := make(chan struct{}, 8)
	r.OnChange(func() { updated <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Watch(ctx, time.Hour)

	lister.SimulateChange(Device{ID: "a"}, Device{ID: "b"})
	deadline := time.After(2 * time.Second)
	for len(r.Devices()) != 2 {
		select {
		case <-updated:
		case <-deadline:
			t.Fatal("watch did not re-enumerate")
		}
	}
}

type pollLister struct {
	mu      sync.Mutex
	devices []Device
	calls   int
}

func (p *pollLister) List(context.Context) ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return append([]Device(nil), p.devices...), nil
}

func (p *pollLister) set(devices ...Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
}

func TestRegistryWatchPolls(t *testing.T) {
	lister := &pollLister{devices: []Device{{ID: "a"}}}
	r := NewRegistry(lister, WithLogger(log.Nop()))
	r.Enumerate(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Watch(ctx, 5*time.Millisecond)

	lister.set(Device{ID: "a"}, Device{ID: "b"}, Device{ID: "c"})
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Devices()) != 3 {
		if time.Now().After(deadline) {
			t.Fatal("poll did not pick up the change")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
