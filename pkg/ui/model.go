// Package ui is the terminal presentation layer of the companion.
package ui

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/teslashibe/go-companion/pkg/audioio"
	"github.com/teslashibe/go-companion/pkg/devices"
	"github.com/teslashibe/go-companion/pkg/qa"
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/transcript"
	"github.com/teslashibe/go-companion/pkg/vision"
)

// Snapshot is everything the view renders, read in one call.
type Snapshot struct {
	Status       realtime.Status
	Listening    bool
	Scenario     string
	Agent        string
	CustomPrompt string

	Devices        []devices.Device
	Device         string
	DevicesLoading bool
	DevicesErr     error

	Level audioio.Reading

	Items     []transcript.Item
	QA        []qa.Pair
	QALoading bool

	Vision           vision.State
	ContentProtected bool
}

// Controller is what the UI drives. Methods may block; the model calls
// them from commands, never from Update.
type Controller interface {
	Snapshot() Snapshot
	ToggleListening(ctx context.Context) error
	SaveCustomPrompt(ctx context.Context, text string) error
	AnalyzeScreen(ctx context.Context) error
	Ask(ctx context.Context, question string) error
	RefreshDevices(ctx context.Context) error
	SelectDevice(ctx context.Context, id string) error
	ToggleContentProtection() error
}

// Mode is the overlay currently shown.
type Mode int

const (
	ModeMain Mode = iota
	ModeQA
	ModePrompt
	ModeMicrophones
)

// Model is the bubbletea model.
type Model struct {
	ctx  context.Context
	ctrl Controller
	keys KeyMap

	snap        Snapshot
	mode        Mode
	showHistory bool
	err         error
	alert       string

	input   textinput.Model
	editor  textarea.Model
	scroll  viewport.Model
	mics    list.Model
	spinner spinner.Model

	width  int
	height int
}

// New creates the model. ctx bounds every action the UI starts.
func New(ctx context.Context, ctrl Controller) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything..."
	ti.CharLimit = 2000
	ti.Width = 60

	ta := textarea.New()
	ta.Placeholder = "Instructions added to every agent..."
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(6)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SelectedStyle

	l := list.New(nil, list.NewDefaultDelegate(), 50, 12)
	l.Title = "Select Microphone"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		keys:    DefaultKeyMap,
		input:   ti,
		editor:  ta,
		scroll:  viewport.New(60, 12),
		mics:    l,
		spinner: sp,
		width:   80,
		height:  24,
	}
	m.snap = ctrl.Snapshot()
	return m
}

// Mode returns the active overlay.
func (m *Model) Mode() Mode {
	return m.mode
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case RefreshMsg:
		m.refresh()
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		m.refresh()
		return m, nil

	case AlertMsg:
		m.alert = msg.Message
		return m, nil

	case PromptSavedMsg:
		m.closeOverlay()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.alert != "" {
		m.alert = ""
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.ToggleQA):
		m.toggle(ModeQA)
		return m, nil
	case key.Matches(msg, m.keys.TogglePrompt):
		m.toggle(ModePrompt)
		return m, nil
	case key.Matches(msg, m.keys.Microphones):
		if m.snap.DevicesLoading {
			return m, nil
		}
		m.toggle(ModeMicrophones)
		return m, nil
	case key.Matches(msg, m.keys.ToggleListening):
		m.err = nil
		return m, m.action(func(ctx context.Context) error { return m.ctrl.ToggleListening(ctx) })
	case key.Matches(msg, m.keys.Vision):
		if m.snap.Vision != vision.StateIdle && m.snap.Vision != "" {
			return m, nil
		}
		// Failures arrive as an AlertMsg from the flow.
		return m, m.quiet(func(ctx context.Context) error { return m.ctrl.AnalyzeScreen(ctx) })
	case key.Matches(msg, m.keys.ToggleProtection):
		return m, m.action(func(context.Context) error { return m.ctrl.ToggleContentProtection() })
	case key.Matches(msg, m.keys.Close) && m.mode != ModeMain:
		m.closeOverlay()
		return m, nil
	}

	switch m.mode {
	case ModeQA:
		if key.Matches(msg, m.keys.Submit) {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.action(func(ctx context.Context) error { return m.ctrl.Ask(ctx, q) })
		}
	case ModePrompt:
		if key.Matches(msg, m.keys.Save) {
			text := m.editor.Value()
			return m, func() tea.Msg {
				if err := m.ctrl.SaveCustomPrompt(m.ctx, text); err != nil {
					return ErrorMsg{Err: err}
				}
				return PromptSavedMsg{}
			}
		}
	case ModeMicrophones:
		if key.Matches(msg, m.keys.Refresh) {
			return m, m.action(func(ctx context.Context) error { return m.ctrl.RefreshDevices(ctx) })
		}
		if key.Matches(msg, m.keys.Submit) {
			item, ok := m.mics.SelectedItem().(micItem)
			if !ok {
				return m, nil
			}
			m.closeOverlay()
			return m, m.action(func(ctx context.Context) error { return m.ctrl.SelectDevice(ctx, item.dev.ID) })
		}
	case ModeMain:
		if key.Matches(msg, m.keys.History) {
			m.showHistory = !m.showHistory
			return m, nil
		}
	}
	return m.updateFocused(msg)
}

func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case ModeQA:
		var vcmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.scroll, vcmd = m.scroll.Update(msg)
		return m, tea.Batch(cmd, vcmd)
	case ModePrompt:
		m.editor, cmd = m.editor.Update(msg)
	case ModeMicrophones:
		m.mics, cmd = m.mics.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggle(mode Mode) {
	if m.mode == mode {
		m.closeOverlay()
		return
	}
	m.closeOverlay()
	m.mode = mode
	switch mode {
	case ModeQA:
		m.input.Focus()
		m.syncQA()
	case ModePrompt:
		m.editor.SetValue(m.snap.CustomPrompt)
		m.editor.Focus()
	case ModeMicrophones:
		m.syncMics()
	}
}

func (m *Model) closeOverlay() {
	m.input.Blur()
	m.editor.Blur()
	m.mode = ModeMain
}

func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	switch m.mode {
	case ModeQA:
		m.syncQA()
	case ModeMicrophones:
		m.syncMics()
	}
}

func (m *Model) syncQA() {
	m.scroll.SetContent(renderChat(m.snap.QA, m.scroll.Width))
	m.scroll.GotoBottom()
}

func (m *Model) syncMics() {
	items := make([]list.Item, 0, len(m.snap.Devices))
	selected := 0
	for i, d := range m.snap.Devices {
		items = append(items, micItem{dev: d, selected: d.ID == m.snap.Device})
		if d.ID == m.snap.Device {
			selected = i
		}
	}
	m.mics.SetItems(items)
	m.mics.Select(selected)
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	inner := max(20, w-8)
	m.input.Width = inner - 4
	m.editor.SetWidth(inner)
	m.scroll.Width = inner
	m.scroll.Height = max(5, h-10)
	m.mics.SetSize(min(inner, 60), max(6, h-8))
	if m.mode == ModeQA {
		m.syncQA()
	}
}

// action runs fn as a command and reports its error inline. A cancelled
// context is not an error: it means a newer request replaced this one.
func (m *Model) action(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			return ErrorMsg{Err: err}
		}
		return RefreshMsg{}
	}
}

// quiet runs fn as a command and drops its error.
func (m *Model) quiet(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		fn(m.ctx)
		return RefreshMsg{}
	}
}

type micItem struct {
	dev      devices.Device
	selected bool
}

func (i micItem) Title() string {
	if i.selected {
		return "✓ " + i.dev.DisplayLabel()
	}
	return "  " + i.dev.DisplayLabel()
}

func (i micItem) Description() string { return i.dev.ID }
func (i micItem) FilterValue() string { return i.dev.DisplayLabel() }

// IsTTY reports whether stdout is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewProgram creates the full-screen program for m.
func NewProgram(ctx context.Context, m *Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}
