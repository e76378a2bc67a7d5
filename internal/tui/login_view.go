package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LoginForm collects a username and password for login or signup.
type LoginForm struct {
	inputs [2]textinput.Model
	focus  int
	Signup bool
}

func NewLoginForm() LoginForm {
	user := textinput.New()
	user.Prompt = "Username  "
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Prompt = "Password  "
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return LoginForm{inputs: [2]textinput.Model{user, pass}}
}

// Values returns the trimmed username and the password as typed.
func (f LoginForm) Values() (username, password string) {
	return strings.TrimSpace(f.inputs[0].Value()), f.inputs[1].Value()
}

// Toggle switches between login and signup.
func (f *LoginForm) Toggle() {
	f.Signup = !f.Signup
}

// ClearPassword empties the password field and focuses it.
func (f *LoginForm) ClearPassword() tea.Cmd {
	f.inputs[1].SetValue("")
	return f.setFocus(1)
}

func (f *LoginForm) setFocus(i int) tea.Cmd {
	f.focus = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// Update moves focus on tab, shift+tab, up and down, and passes every other
// message to the focused input.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f, f.setFocus((f.focus + 1) % len(f.inputs))
		case "shift+tab", "up":
			return f, f.setFocus((f.focus + len(f.inputs) - 1) % len(f.inputs))
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// View renders the form. status is shown under the inputs: an error, or a
// spinner while the request is in flight.
func (f LoginForm) View(status string, isErr bool) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	title := "Log in"
	other := "sign up"
	if f.Signup {
		title, other = "Create account", "log in"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tradersecho · "+title) + "\n\n")
	for _, in := range f.inputs {
		b.WriteString(normalStyle.Render(in.View()) + "\n")
	}
	if status != "" {
		b.WriteString("\n")
		if isErr {
			b.WriteString(errStyle.Render(status))
		} else {
			b.WriteString(normalStyle.Render(status))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + hintStyle.Render("tab next field · enter submit · ctrl+t "+other+" · ctrl+c quit"))
	return boxStyle.Render(b.String())
}
