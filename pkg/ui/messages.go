package ui

// RefreshMsg asks the model to re-read the controller snapshot. Send it
// from any goroutine with tea.Program.Send whenever state changes.
type RefreshMsg struct{}

// ErrorMsg shows err on the inline error line.
type ErrorMsg struct {
	Err error
}

// AlertMsg shows a blocking alert until a key is pressed.
type AlertMsg struct {
	Message string
}

// PromptSavedMsg closes the prompt editor after a successful save.
type PromptSavedMsg struct{}
