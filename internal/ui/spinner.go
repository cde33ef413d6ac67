package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a waiting indicator on its own goroutine while a
// blocking call runs.
type Spinner struct {
	out  io.Writer
	msg  string
	stop chan struct{}
	done chan struct{}
}

// StartSpinner begins animating msg until Stop is called.
func StartSpinner(out io.Writer, msg string) *Spinner {
	s := &Spinner{
		out:  out,
		msg:  msg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-s.stop:
			// Clear the spinner line before handing the terminal back.
			fmt.Fprintf(s.out, "\r%*s\r", len(s.msg)+4, "")
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r%s %s", spinnerStyle.Render(spinnerFrames[frame]), s.msg)
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}

// Stop halts the animation and clears the line. Safe to call once.
func (s *Spinner) Stop() {
	close(s.stop)
	<-s.done
}
