package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// Controller runs the live UI and implements runner.RunObserver.
type Controller struct {
	events  chan Event
	program *tea.Program
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ runner.RunObserver = (*Controller)(nil)

// Start launches a live UI controller that writes to stdout. The program
// reads no input, so SIGINT reaches the caller's context.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model,
		tea.WithOutput(stdout),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
		tea.WithAltScreen(),
	)
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop. It is safe to call more than once.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnRunStart forwards run start events to the UI.
func (c *Controller) OnRunStart(runID, document string, total int) {
	c.send(Event{Kind: EventRunStart, RunID: runID, Document: document, Total: total})
}

// OnQuestionEvent forwards question status updates to the UI.
func (c *Controller) OnQuestionEvent(event runner.QuestionEvent) {
	c.send(Event{Kind: EventQuestion, Question: event})
}

// OnRunEnd forwards the summary and closes the UI.
func (c *Controller) OnRunEnd(rep report.Report) {
	c.send(Event{Kind: EventRunEnd, Summary: rep.Summary})
	c.Close()
}

// send delivers an event unless the UI has already exited.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	case <-c.done:
	}
}
