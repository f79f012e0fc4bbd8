package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/teslashibe/go-companion/pkg/agents"
	"github.com/teslashibe/go-companion/pkg/devices"
)

func TestPrintAgents(t *testing.T) {
	reg := agents.NewRegistry()
	err := reg.LoadYAML([]byte(`
scenarios:
  support:
    - name: triage
      instructions: Route the caller.
      handoffs: [billing]
    - name: billing
      instructions: Handle invoices.
`))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	var buf bytes.Buffer
	printAgents(&buf, reg, "support")
	out := buf.String()

	if !strings.Contains(out, "* support") || !strings.Contains(out, "triage, billing") {
		t.Errorf("support line missing:\n%s", out)
	}
	if !strings.Contains(out, "  generalAI") {
		t.Errorf("built-in scenario missing:\n%s", out)
	}
}

func TestPrintAgentsUnknownFallsBack(t *testing.T) {
	var buf bytes.Buffer
	printAgents(&buf, agents.NewRegistry(), "nope")
	if !strings.HasPrefix(buf.String(), "* generalAI") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestListDevices(t *testing.T) {
	lister := devices.NewMockLister(
		devices.Device{ID: "default", Label: "Default"},
		devices.Device{ID: "hw:1,0abcdef"},
	)
	var buf bytes.Buffer
	if err := listDevices(context.Background(), lister, &buf); err != nil {
		t.Fatalf("listDevices: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "* default") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Microphone hw:1,0ab...") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestListDevicesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := listDevices(context.Background(), devices.NewMockLister(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No microphones found") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestListDevicesPermission(t *testing.T) {
	lister := devices.NewMockLister()
	lister.SetError(&devices.PermissionError{Err: errors.New("denied")})
	err := listDevices(context.Background(), lister, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("err = %v", err)
	}
}

func TestPromptCommands(t *testing.T) {
	t.Setenv("PREFS_BACKEND", "json")
	t.Setenv("PREFS_PATH", t.TempDir()+"/prefs.json")
	envDir = t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		if err := rootCmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if got := run("prompt", "get"); !strings.Contains(got, "(no custom prompt)") {
		t.Errorf("empty get = %q", got)
	}
	run("prompt", "set", "answer", "in", "French")
	if got := run("prompt", "get"); strings.TrimSpace(got) != "answer in French" {
		t.Errorf("get = %q", got)
	}
	run("prompt", "clear")
	if got := run("prompt", "get"); !strings.Contains(got, "(no custom prompt)") {
		t.Errorf("get after clear = %q", got)
	}
}
