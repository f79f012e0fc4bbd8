package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-companion/pkg/qa"
	"github.com/teslashibe/go-companion/pkg/realtime"
	"github.com/teslashibe/go-companion/pkg/transcript"
	"github.com/teslashibe/go-companion/pkg/vision"
)

// View renders the current mode.
func (m *Model) View() string {
	var body string
	switch m.mode {
	case ModeQA:
		body = m.viewQA()
	case ModePrompt:
		body = m.viewPrompt()
	case ModeMicrophones:
		body = m.viewMicrophones()
	default:
		body = m.viewMain()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")
	b.WriteString(body)
	if m.alert != "" {
		b.WriteString("\n\n")
		b.WriteString(ModalStyle.BorderForeground(lipgloss.Color(errorColor)).Render(
			ErrorStyle.Render(m.alert) + "\n\n" + DimStyle.Render("press any key")))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("✗ " + m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m *Model) viewHeader() string {
	s := m.snap
	var dot string
	switch s.Status {
	case realtime.StatusConnected:
		dot = SuccessStyle.Render("●")
	case realtime.StatusConnecting:
		dot = WarningStyle.Render("●")
	default:
		dot = DimStyle.Render("●")
	}

	parts := []string{dot + " " + s.Status.String()}
	if s.Agent != "" {
		parts = append(parts, TitleStyle.Render(s.Agent))
	}
	if s.Listening {
		parts = append(parts, Waveform(s.Level.Bars, s.Level.Level))
	} else {
		parts = append(parts, DimStyle.Render("mic off"))
	}
	if s.Vision != vision.StateIdle && s.Vision != "" {
		parts = append(parts, m.spinner.View()+" "+strings.ToLower(string(s.Vision)))
	}
	if s.ContentProtected {
		parts = append(parts, DimStyle.Render("protected"))
	} else {
		parts = append(parts, WarningStyle.Render("visible to capture"))
	}
	return strings.Join(parts, DimStyle.Render("  ·  "))
}

func (m *Model) viewMain() string {
	pairs := transcript.Pairs(m.snap.Items)
	latest, ok := transcript.Latest(pairs)
	if !ok {
		return DimStyle.Render("Press ctrl+l to start listening, ctrl+v to analyze the screen.")
	}

	width := max(20, m.width-4)
	var b strings.Builder
	b.WriteString(renderPair(latest, width))

	if m.showHistory {
		history := transcript.History(pairs)
		if len(history) > 0 {
			b.WriteString("\n\n")
			b.WriteString(DimStyle.Render(fmt.Sprintf("── history (%d) ──", len(history))))
			for _, p := range history {
				b.WriteString("\n")
				b.WriteString(DimStyle.Render(p.Timestamp) + " " + QuestionStyle.Render(p.Question))
				if p.Answer != "" {
					b.WriteString("\n" + truncate(p.Answer, width))
				}
			}
		}
	}
	return b.String()
}

func renderPair(p transcript.QAPair, width int) string {
	var b strings.Builder
	b.WriteString(DimStyle.Render(p.Timestamp) + " " + QuestionStyle.Render(p.Question))
	if p.Answer == "" {
		return b.String()
	}
	code, explanation := transcript.SplitAnswer(p.Answer)
	if code != "" {
		b.WriteString("\n")
		b.WriteString(CodeStyle.Width(width).Render(code))
	}
	if explanation != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(explanation))
	}
	return b.String()
}

func (m *Model) viewQA() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Q&A"))
	b.WriteString("\n")
	b.WriteString(m.scroll.View())
	b.WriteString("\n")
	if m.snap.QALoading {
		b.WriteString(m.spinner.View() + " Thinking...\n")
	}
	b.WriteString(BoxStyle.Render(m.input.View()))
	return b.String()
}

func renderChat(pairs []qa.Pair, width int) string {
	if len(pairs) == 0 {
		return DimStyle.Render("No questions yet.")
	}
	bubble := max(10, width*3/4)
	var blocks []string
	for _, p := range pairs {
		q := UserBubbleStyle.MaxWidth(bubble).Render(p.Question)
		blocks = append(blocks, lipgloss.PlaceHorizontal(width, lipgloss.Right, q))
		if p.Answer != "" {
			blocks = append(blocks, AssistantBubbleStyle.MaxWidth(bubble).Render(p.Answer))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) viewPrompt() string {
	return ModalStyle.Render(
		TitleStyle.Render("Custom AI Prompt") + "\n\n" +
			m.editor.View() + "\n\n" +
			DimStyle.Render("ctrl+s save · esc cancel"))
}

func (m *Model) viewMicrophones() string {
	if m.snap.DevicesErr != nil {
		return ErrorStyle.Render(m.snap.DevicesErr.Error()) + "\n" + DimStyle.Render("r refresh · esc close")
	}
	if len(m.snap.Devices) == 0 {
		return DimStyle.Render("No microphones found.") + "\n" + DimStyle.Render("r refresh · esc close")
	}
	return m.mics.View() + "\n" + DimStyle.Render("enter select · r refresh · esc close")
}

func (m *Model) viewFooter() string {
	k := m.keys
	help := []string{
		k.ToggleListening.Help().Key + " " + k.ToggleListening.Help().Desc,
		k.Vision.Help().Key + " " + k.Vision.Help().Desc,
		k.ToggleQA.Help().Key + " " + k.ToggleQA.Help().Desc,
		k.TogglePrompt.Help().Key + " " + k.TogglePrompt.Help().Desc,
		k.Microphones.Help().Key + " " + k.Microphones.Help().Desc,
		k.History.Help().Key + " " + k.History.Help().Desc,
		k.ToggleProtection.Help().Key + " " + k.ToggleProtection.Help().Desc,
		k.Quit.Help().Key + " " + k.Quit.Help().Desc,
	}
	return StatusBarStyle.Render(strings.Join(help, " · "))
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if width < 2 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
