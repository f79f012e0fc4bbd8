// Package session owns the realtime session lifecycle of the companion.
//
// The Orchestrator is the only path that changes connection status or the
// listening flag. It fetches an ephemeral credential from the backend,
// resolves the agent scenario, hands both to a realtime.Transport and
// bridges transport events into the transcript log.
//
// Every Connect captures a generation number. Disconnect and transport
// drops advance it, so a connect that completes after the user gave up is
// torn down instead of reviving the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-companion/pkg/agents"
	"github.com/teslashibe/go-companion/pkg/prefs"
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/transcript"
)

// DefaultReconnectDelay separates the disconnect and reconnect that apply
// a new custom prompt.
const DefaultReconnectDelay = 300 * time.Millisecond

// GreetingText is the simulated user message sent on first listen.
const GreetingText = "hi"

// CredentialSource mints ephemeral realtime credentials.
// *backend.Client implements it.
type CredentialSource interface {
	FetchCredential(ctx context.Context) (*oauth2.Token, error)
}

// LevelMeter is the microphone level meter run while listening.
// *audioio.Meter implements it.
type LevelMeter interface {
	Start(ctx context.Context, deviceID string) error
	Stop()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l.With("component", "session.orchestrator")
		}
	}
}

// WithTranscript sets the transcript log events are written to.
func WithTranscript(t *transcript.Log) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.transcript = t
		}
	}
}

// WithPrefs sets where the custom prompt is persisted.
func WithPrefs(s prefs.Store) Option {
	return func(o *Orchestrator) { o.prefs = s }
}

// WithMeter sets the level meter started while listening.
func WithMeter(m LevelMeter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

// WithRegistry sets the agent scenarios.
func WithRegistry(r *agents.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithGuardrails sets the output guardrails passed to every session.
func WithGuardrails(g ...realtime.OutputGuardrail) Option {
	return func(o *Orchestrator) { o.guardrails = g }
}

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.reconnectDelay = d }
}

// WithAgentKey sets the scenario used by StartListening and reconnects
// before any explicit Connect.
func WithAgentKey(key string) Option {
	return func(o *Orchestrator) { o.agentKey = key }
}

// Orchestrator drives one realtime session at a time.
type Orchestrator struct {
	transport realtime.Transport
	creds     CredentialSource

	transcript     *transcript.Log
	prefs          prefs.Store
	meter          LevelMeter
	registry       *agents.Registry
	guardrails     []realtime.OutputGuardrail
	reconnectDelay time.Duration
	logger         *slog.Logger

	mu            sync.Mutex
	status        realtime.Status
	gen           uint64
	listening     bool
	agentKey      string
	agents        agents.Set
	selectedAgent string
	device        string
	customPrompt  string
	reconnect     *time.Timer

	cbMu     sync.RWMutex
	onChange func()
	onError  func(error)
}

// New creates an orchestrator around transport and creds and takes over
// the transport's callbacks.
func New(transport realtime.Transport, creds CredentialSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport:      transport,
		creds:          creds,
		transcript:     transcript.New(),
		registry:       agents.NewRegistry(),
		reconnectDelay: DefaultReconnectDelay,
		logger:         slog.Default().With("component", "session.orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	_, set := o.registry.Resolve(o.agentKey)
	if root, ok := set.Primary(); ok {
		o.selectedAgent = root.Name
	}

	transport.OnStatusChange(o.handleStatus)
	transport.OnEvent(o.handleEvent)
	return o
}

// OnChange sets a callback run after any state change.
func (o *Orchestrator) OnChange(fn func()) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onChange = fn
}

// OnError sets a callback for errors reported by the live session.
func (o *Orchestrator) OnError(fn func(error)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onError = fn
}

// LoadCustomPrompt reads the persisted custom prompt into the orchestrator.
func (o *Orchestrator) LoadCustomPrompt(ctx context.Context) (string, error) {
	if o.prefs == nil {
		return "", nil
	}
	text, err := prefs.CustomPrompt(ctx, o.prefs)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	o.customPrompt = text
	o.mu.Unlock()
	return text, nil
}

// Connect opens a session for the agentSetKey scenario. It does nothing
// unless the status is DISCONNECTED. A non-empty override replaces the
// instructions of the first agent. Any failure returns the status to
// DISCONNECTED.
func (o *Orchestrator) Connect(ctx context.Context, agentSetKey, override string) error {
	o.mu.Lock()
	if o.status != realtime.StatusDisconnected {
		o.mu.Unlock()
		return nil
	}
	o.status = realtime.StatusConnecting
	o.gen++
	gen := o.gen
	selected := o.selectedAgent
	device := o.device
	o.mu.Unlock()
	o.changed()

	cred, err := o.creds.FetchCredential(ctx)
	if err != nil {
		o.logger.Error("credential fetch failed", "error", err)
		o.fail(gen)
		return err
	}
	if !o.current(gen) {
		return ErrAborted
	}

	key, set := o.registry.Resolve(agentSetKey)
	if len(set) == 0 {
		o.fail(gen)
		return ErrNoAgents
	}
	if agentSetKey != "" && key != agentSetKey {
		o.logger.Warn("unknown scenario, using default", "requested", agentSetKey, "scenario", key)
	}
	set = set.Reorder(selected).WithInstructions(override)

	o.mu.Lock()
	o.agentKey = key
	o.agents = set
	o.selectedAgent = set[0].Name
	o.mu.Unlock()

	o.logger.Info("connecting", "scenario", key, "agent", set[0].Name, "device", device, "custom_prompt", override != "")
	err = o.transport.Connect(ctx, realtime.ConnectOptions{
		Credential: cred,
		Agents:     set,
		DeviceID:   device,
		Guardrails: o.guardrails,
	})
	if err != nil {
		if errors.Is(err, realtime.ErrConnectAborted) {
			return ErrAborted
		}
		o.logger.Error("transport connect failed", "error", err)
		o.fail(gen)
		return err
	}

	o.mu.Lock()
	if o.gen != gen || o.status != realtime.StatusConnecting {
		o.mu.Unlock()
		o.logger.Info("connect finished after disconnect, closing")
		_ = o.transport.Disconnect()
		return ErrAborted
	}
	o.status = realtime.StatusConnected
	o.mu.Unlock()

	o.logger.Info("connected", "scenario", key, "agent", set[0].Name)
	o.changed()
	return nil
}

// Disconnect closes the session and clears the listening flag. It is
// always safe to call and cancels a pending prompt reconnect.
func (o *Orchestrator) Disconnect() {
	o.disconnect(true)
}

func (o *Orchestrator) disconnect(cancelReconnect bool) {
	o.mu.Lock()
	if cancelReconnect && o.reconnect != nil {
		o.reconnect.Stop()
		o.reconnect = nil
	}
	prev := o.status
	o.gen++
	o.status = realtime.StatusDisconnected
	o.listening = false
	o.mu.Unlock()

	o.stopMeter()
	if err := o.transport.Disconnect(); err != nil {
		o.logger.Warn("transport disconnect failed", "error", err)
	}
	if prev != realtime.StatusDisconnected {
		o.logger.Info("disconnected", "from", prev.String())
	}
	o.changed()
}

// StartListening unmutes the microphone and turns on server VAD. When
// disconnected it connects first and then sends a greeting message so the
// assistant speaks first.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	switch o.Status() {
	case realtime.StatusConnected:
		return o.listen(ctx, false)
	case realtime.StatusConnecting:
		return ErrConnecting
	}

	o.mu.Lock()
	key, prompt := o.agentKey, o.customPrompt
	o.mu.Unlock()

	if err := o.Connect(ctx, key, prompt); err != nil {
		return err
	}
	if o.Status() != realtime.StatusConnected {
		return ErrAborted
	}
	return o.listen(ctx, true)
}

func (o *Orchestrator) listen(ctx context.Context, greet bool) error {
	o.mu.Lock()
	o.listening = true
	device := o.device
	o.mu.Unlock()

	if err := o.transport.SendEvent(realtime.SessionUpdate(realtime.SessionConfig{
		TurnDetection: realtime.ListeningTurnDetection(),
	})); err != nil {
		o.logger.Warn("session update failed", "error", err)
	}
	if err := o.transport.Mute(false); err != nil {
		o.logger.Warn("unmute failed", "error", err)
	}
	if greet {
		o.sendUserText(GreetingText)
	}
	if o.meter != nil {
		if err := o.meter.Start(context.WithoutCancel(ctx), device); err != nil {
			o.logger.Warn("level meter failed to start", "device", device, "error", err)
		}
	}

	o.logger.Info("listening", "greeting", greet)
	o.changed()
	return nil
}

// sendUserText adds a user message to the transcript and asks for a reply.
func (o *Orchestrator) sendUserText(text string) {
	id := transcript.NewShortID()
	o.transcript.AddMessage(id, transcript.RoleUser, text, true)

	if err := o.transport.SendEvent(realtime.UserTextMessage(id, text)); err != nil {
		o.logger.Warn("simulated user message failed", "error", err)
		return
	}
	if err := o.transport.SendEvent(realtime.ResponseCreate()); err != nil {
		o.logger.Warn("response create failed", "error", err)
	}
}

// StopListening mutes the microphone and cancels the in-progress response.
// The connection stays open.
func (o *Orchestrator) StopListening() {
	o.mu.Lock()
	o.listening = false
	o.mu.Unlock()

	if err := o.transport.Mute(true); err != nil {
		o.logger.Warn("mute failed", "error", err)
	}
	if err := o.transport.Interrupt(); err != nil && !realtime.IsNotConnected(err) {
		o.logger.Warn("interrupt failed", "error", err)
	}
	o.stopMeter()
	o.logger.Info("stopped listening")
	o.changed()
}

// SetCustomPrompt stores and persists text. A live session is closed and
// reopened after the reconnect delay so the new instructions apply. A call
// made while that reconnect is pending restarts the delay.
func (o *Orchestrator) SetCustomPrompt(ctx context.Context, text string) error {
	o.mu.Lock()
	o.customPrompt = text
	wasConnected := o.status == realtime.StatusConnected
	pending := o.reconnect != nil
	if pending {
		o.reconnect.Stop()
		o.reconnect = nil
	}
	o.mu.Unlock()

	var persistErr error
	if o.prefs != nil {
		if err := prefs.SetCustomPrompt(ctx, o.prefs, text); err != nil {
			o.logger.Error("failed to persist custom prompt", "error", err)
			persistErr = fmt.Errorf("session: save custom prompt: %w", err)
		}
	}

	if wasConnected || pending {
		if wasConnected {
			o.disconnect(true)
		}
		o.mu.Lock()
		var t *time.Timer
		t = time.AfterFunc(o.reconnectDelay, func() {
			o.mu.Lock()
			if o.reconnect != t {
				o.mu.Unlock()
				return
			}
			o.reconnect = nil
			key, prompt := o.agentKey, o.customPrompt
			o.mu.Unlock()
			if err := o.Connect(context.Background(), key, prompt); err != nil && !errors.Is(err, ErrAborted) {
				o.logger.Error("reconnect with new prompt failed", "error", err)
				o.reportError(err)
			}
		})
		o.reconnect = t
		o.mu.Unlock()
		o.logger.Info("reconnecting to apply custom prompt", "delay", o.reconnectDelay)
	}
	o.changed()
	return persistErr
}

// SelectDevice switches the capture device. A live or connecting session
// is disconnected right away. Reconnecting is left to the caller.
func (o *Orchestrator) SelectDevice(deviceID string) {
	o.mu.Lock()
	changed := o.device != deviceID
	o.device = deviceID
	status := o.status
	o.mu.Unlock()

	if !changed {
		return
	}
	o.logger.Info("capture device changed", "device", deviceID, "status", status.String())
	if status != realtime.StatusDisconnected {
		o.disconnect(true)
		return
	}
	o.changed()
}

// Status returns the session status.
func (o *Orchestrator) Status() realtime.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Listening reports whether the microphone is live.
func (o *Orchestrator) Listening() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listening
}

// SelectedAgent returns the active agent name.
func (o *Orchestrator) SelectedAgent() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectedAgent
}

// AgentKey returns the scenario key of the last connect.
func (o *Orchestrator) AgentKey() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agentKey
}

// CustomPrompt returns the custom instructions text.
func (o *Orchestrator) CustomPrompt() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.customPrompt
}

// Device returns the selected capture device id.
func (o *Orchestrator) Device() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.device
}

// Transcript returns the log events are written to.
func (o *Orchestrator) Transcript() *transcript.Log {
	return o.transcript
}

// SendText sends a typed user message into the live session.
func (o *Orchestrator) SendText(text string) error {
	if o.Status() != realtime.StatusConnected {
		return realtime.ErrNotConnected
	}
	o.sendUserText(text)
	return nil
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == gen
}

// fail returns attempt gen to DISCONNECTED unless it was superseded.
func (o *Orchestrator) fail(gen uint64) {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return
	}
	o.status = realtime.StatusDisconnected
	o.listening = false
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) stopMeter() {
	if o.meter != nil {
		o.meter.Stop()
	}
}

func (o *Orchestrator) changed() {
	o.cbMu.RLock()
	fn := o.onChange
	o.cbMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (o *Orchestrator) reportError(err error) {
	o.cbMu.RLock()
	fn := o.onError
	o.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
