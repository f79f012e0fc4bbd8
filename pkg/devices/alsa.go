package devices

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ALSALister lists capture devices with `arecord -L`.
type ALSALister struct {
	// Path is the arecord binary. Empty means look it up on PATH.
	Path string

	// IncludeVirtual keeps plugin devices such as "null" and "pulse".
	IncludeVirtual bool
}

// List runs arecord and parses its device list.
func (l *ALSALister) List(ctx context.Context) ([]Device, error) {
	path := l.Path
	if path == "" {
		var err error
		path, err = exec.LookPath("arecord")
		if err != nil {
			return nil, fmt.Errorf("devices: arecord not found: %w", err)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-L")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(msg), "permission denied") {
			return nil, &PermissionError{Err: errors.New(msg)}
		}
		if msg != "" {
			return nil, fmt.Errorf("devices: arecord -L: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("devices: arecord -L: %w", err)
	}

	devices := ParseALSA(stdout.String())
	if !l.IncludeVirtual {
		devices = hardwareOnly(devices)
	}
	return devices, nil
}

// ParseALSA parses `arecord -L` output. Unindented lines name a device;
// the first indented line after it is its description.
func ParseALSA(out string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			devices = append(devices, Device{ID: strings.TrimSpace(line), GroupID: cardOf(line)})
			continue
		}
		if n := len(devices); n > 0 && devices[n-1].Label == "" {
			devices[n-1].Label = strings.TrimSpace(line)
		}
	}
	return devices
}

// cardOf returns the CARD= value of an ALSA device name.
func cardOf(name string) string {
	_, rest, ok := strings.Cut(name, "CARD=")
	if !ok {
		return ""
	}
	card, _, _ := strings.Cut(rest, ",")
	return strings.TrimSpace(card)
}

func hardwareOnly(devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if d.ID == "null" {
			continue
		}
		if d.GroupID == "" && d.ID != "default" {
			continue
		}
		out = append(out, d)
	}
	return out
}

var _ Lister = (*ALSALister)(nil)
