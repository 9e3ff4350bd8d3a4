package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// SpinnerDots are the default spinner frames
var SpinnerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var spinColor = color.New(color.FgCyan)

// Spinner animates a message while something slow happens, such as waiting
// for a simulation's mirror to come up. On a writer that is not a terminal
// it prints the message once instead of animating.
type Spinner struct {
	mu       sync.Mutex
	out      io.Writer
	animate  bool
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewSpinner creates a spinner on the helper output
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(helperOut, message)
}

// NewSpinnerTo creates a spinner that draws on w
func NewSpinnerTo(w io.Writer, message string) *Spinner {
	animate := false
	if f, ok := w.(*os.File); ok {
		animate = term.IsTerminal(int(f.Fd()))
	}
	return &Spinner{
		out:      w,
		animate:  animate,
		message:  message,
		frames:   SpinnerDots,
		interval: 100 * time.Millisecond,
	}
}

// Start begins drawing. Starting an active spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	if !s.animate {
		_, _ = fmt.Fprintf(s.out, "%s...\n", s.message)
		close(s.done)
		return
	}

	go s.spin(s.stopChan, s.done)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	width := 0
	for i := 0; ; i++ {
		s.mu.Lock()
		line := spinColor.Sprint(s.frames[i%len(s.frames)]) + " " + s.message
		if n := len(s.message) + 2; n > width {
			width = n
		}
		s.mu.Unlock()
		_, _ = fmt.Fprintf(s.out, "\r%s", line)

		select {
		case <-stop:
			_, _ = fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", width+2))
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the spinner line and waits for the animation to end
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	Success(message)
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	Error(IconError + " " + message)
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn with a spinner showing message
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()

	if err != nil {
		spinner.Error(fmt.Sprintf("%s failed: %v", message, err))
	} else {
		spinner.Success(fmt.Sprintf("%s done", message))
	}

	return err
}
