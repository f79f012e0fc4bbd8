// Package devices tracks the microphones the companion can capture from.
//
// A Registry asks a Lister for the current input devices, keeps the last
// list and the selected device id, and re-enumerates when the lister
// reports a topology change or, failing that, on a polling interval.
package devices

import (
	"context"
	"strings"
)

// Device is one audio input device.
type Device struct {
	ID      string `json:"deviceId"`
	Label   string `json:"label"`
	GroupID string `json:"groupId,omitempty"`
}

// DisplayLabel returns the label, or a short id based name when the
// platform gave none.
func (d Device) DisplayLabel() string {
	if strings.TrimSpace(d.Label) != "" {
		return d.Label
	}
	id := d.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Microphone " + id + "..."
}

// Lister enumerates audio input devices.
type Lister interface {
	List(ctx context.Context) ([]Device, error)
}

// Notifier is implemented by listers that can report topology changes.
// Each receive means the device list may have changed.
type Notifier interface {
	Changes() <-chan struct{}
}

func fingerprint(devices []Device) string {
	var b strings.Builder
	for _, d := range devices {
		b.WriteString(d.ID)
		b.WriteByte(0)
		b.WriteString(d.Label)
		b.WriteByte(0)
	}
	return b.String()
}
