package companion

import (
	"context"

	"github.com/teslashibe/go-companion/pkg/transcript"
	"github.com/teslashibe/go-companion/pkg/ui"
	"github.com/teslashibe/go-companion/pkg/web"
)

// Snapshot implements ui.Controller.
func (a *App) Snapshot() ui.Snapshot {
	pairs := a.qa.Pairs()
	return ui.Snapshot{
		Status:           a.session.Status(),
		Listening:        a.session.Listening(),
		Scenario:         a.session.AgentKey(),
		Agent:            a.session.SelectedAgent(),
		CustomPrompt:     a.session.CustomPrompt(),
		Devices:          a.devices.Devices(),
		Device:           a.devices.Selected(),
		DevicesLoading:   a.devices.Loading(),
		DevicesErr:       a.devices.Err(),
		Level:            a.meter.Reading(),
		Items:            a.transcript.Items(),
		QA:               pairs,
		QALoading:        a.qa.Loading(),
		Vision:           a.vision.State(),
		ContentProtected: a.host.ContentProtected(),
	}
}

// ToggleListening starts listening, connecting first if needed, or stops.
func (a *App) ToggleListening(ctx context.Context) error {
	if a.session.Listening() {
		a.session.StopListening()
		return nil
	}
	return a.session.StartListening(ctx)
}

// SaveCustomPrompt persists text and reconnects a live session with it.
func (a *App) SaveCustomPrompt(ctx context.Context, text string) error {
	return a.session.SetCustomPrompt(ctx, text)
}

// AnalyzeScreen runs one vision request.
func (a *App) AnalyzeScreen(ctx context.Context) error {
	return a.vision.Analyze(ctx)
}

// Ask sends a free-form question to the Q&A panel.
func (a *App) Ask(ctx context.Context, question string) error {
	return a.qa.Ask(ctx, question)
}

// RefreshDevices re-enumerates microphones.
func (a *App) RefreshDevices(ctx context.Context) error {
	_, err := a.devices.Enumerate(ctx)
	return err
}

// SelectDevice switches microphones. A live session is disconnected.
func (a *App) SelectDevice(ctx context.Context, id string) error {
	if _, err := a.devices.Select(id); err != nil {
		return err
	}
	a.session.SelectDevice(id)
	return nil
}

// ToggleContentProtection flips screen-capture exclusion.
func (a *App) ToggleContentProtection() error {
	return a.host.SetContentProtection(!a.host.ContentProtected())
}

// Status implements web.Source.
func (a *App) Status() web.Status {
	st := web.Status{
		Connection:       a.session.Status().String(),
		Listening:        a.session.Listening(),
		Device:           a.devices.Selected(),
		ContentProtected: a.host.ContentProtected(),
		Scenario:         a.session.AgentKey(),
		Agent:            a.session.SelectedAgent(),
		Vision:           string(a.vision.State()),
		QALoading:        a.qa.Loading(),
	}
	for _, d := range a.devices.Devices() {
		if d.ID == st.Device {
			st.DeviceLabel = d.DisplayLabel()
			break
		}
	}
	return st
}

// Transcript implements web.Source.
func (a *App) Transcript() []transcript.Item {
	return a.transcript.Items()
}

var (
	_ ui.Controller = (*App)(nil)
	_ web.Source    = (*App)(nil)
)
