// Package ui renders terminal output and reads interactive input.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)

	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	sectionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Console is the interactive terminal surface. It satisfies the refinement
// engine's Interactor interface.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole wires a console to the given streams.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Banner prints the styled application header.
func (c *Console) Banner(title string) {
	fmt.Fprintln(c.out, bannerStyle.Render(title))
}

// Prompt shows a question and reads one line of input.
func (c *Console) Prompt(question string) (string, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, questionStyle.Render(question))
	fmt.Fprint(c.out, promptStyle.Render("> "))
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Ask shows a free-form prompt (no question styling) and reads one line.
func (c *Console) Ask(label string) (string, error) {
	fmt.Fprint(c.out, promptStyle.Render(label+" "))
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Info prints a muted status line.
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, infoStyle.Render(msg))
}

// Success prints a highlighted success line.
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.out, successStyle.Render("✓ "+msg))
}

// Warn prints a warning line.
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, warnStyle.Render("! "+msg))
}

// Error prints an error line.
func (c *Console) Error(msg string) {
	fmt.Fprintln(c.out, errorStyle.Render("✗ "+msg))
}

// Section prints a section header.
func (c *Console) Section(title string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, sectionStyle.Render("── "+title+" ──"))
}

// Print writes raw text followed by a newline.
func (c *Console) Print(text string) {
	fmt.Fprintln(c.out, text)
}
