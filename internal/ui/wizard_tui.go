package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/planperfect/planperfect/internal/progress"
	"github.com/planperfect/planperfect/internal/wizard"
)

// StepEditor collects the input of one step as a line of text.
type StepEditor[S any] struct {
	// Prompt is shown above the input box. Empty hides the box.
	Prompt string

	// Summary renders what the step currently holds.
	Summary func(s S) string

	// Apply parses input into the state.
	Apply func(s *S, input string) error

	// Interactive, when set, replaces the input box: enter runs it
	// outside the program and applies its result.
	Interactive func(s *S) error
}

type wizardStatusMsg wizard.Status

type wizardActionMsg struct{ err error }

type wizardInteractiveDoneMsg struct{ err error }

// WizardModel drives a wizard.Machine: a step indicator, the editor of the
// current step and the staged progress of processing steps.
type WizardModel[S any] struct {
	ctx     context.Context
	title   string
	machine *wizard.Machine[S]
	editors map[string]StepEditor[S]

	status  wizard.Status
	lastErr error
	done    bool

	Input   textinput.Model
	Spinner spinner.Model
	toasts  toastStack
}

// NewWizardModel creates the stepper for m.
func NewWizardModel[S any](ctx context.Context, title string, m *wizard.Machine[S], editors map[string]StepEditor[S]) WizardModel[S] {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StylePrimary

	w := WizardModel[S]{
		ctx:     ctx,
		title:   title,
		machine: m,
		editors: editors,
		status:  m.Status(),
		Input:   ti,
		Spinner: sp,
		toasts:  newToastStack(3),
	}
	w.syncPrompt()
	return w
}

// Done reports whether the flow finished.
func (w WizardModel[S]) Done() bool { return w.done }

// Init starts a flow whose first step is a processing step.
func (w WizardModel[S]) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, w.Spinner.Tick, toastTick(), w.action(w.machine.Start))
}

func (w WizardModel[S]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wizardStatusMsg:
		prev := w.status.Index
		w.status = wizard.Status(msg)
		w.done = w.status.Phase == wizard.PhaseDone
		if w.status.Index != prev {
			w.Input.Reset()
			w.syncPrompt()
		}
		return w, nil

	case wizardActionMsg:
		w.lastErr = msg.err
		w.status = w.machine.Status()
		w.done = w.status.Phase == wizard.PhaseDone
		w.syncPrompt()
		return w, nil

	case wizardInteractiveDoneMsg:
		w.lastErr = msg.err
		w.status = w.machine.Status()
		w.syncPrompt()
		return w, nil

	case ToastMsg:
		w.toasts = w.toasts.push(notifyToast(msg))
		return w, nil

	case toastTickMsg:
		w.toasts = w.toasts.prune(time.Time(msg))
		return w, toastTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.Spinner, cmd = w.Spinner.Update(msg)
		return w, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return w, tea.Quit
		case tea.KeyEnter:
			return w.handleEnter()
		case tea.KeyShiftTab, tea.KeyCtrlB:
			return w, w.action(w.machine.Prev)
		}
		if w.status.Phase == wizard.PhaseFailed && msg.String() == "r" && w.Input.Value() == "" {
			return w, w.action(w.machine.Retry)
		}
	}

	var cmd tea.Cmd
	w.Input, cmd = w.Input.Update(msg)
	return w, cmd
}

func (w WizardModel[S]) action(fn func(context.Context) error) tea.Cmd {
	ctx := w.ctx
	return func() tea.Msg { return wizardActionMsg{err: fn(ctx)} }
}

// handleEnter applies typed input to the current step, or moves on when
// the box is empty. ":<n>" jumps to step n from the indicator.
func (w WizardModel[S]) handleEnter() (tea.Model, tea.Cmd) {
	if w.done {
		return w, tea.Quit
	}
	if w.status.Phase == wizard.PhaseProcessing {
		return w, nil
	}

	text := strings.TrimSpace(w.Input.Value())
	if strings.HasPrefix(text, ":") {
		w.Input.Reset()
		n, err := strconv.Atoi(strings.TrimPrefix(text, ":"))
		if err != nil || n < 1 || n > w.status.Total {
			w.lastErr = fmt.Errorf("no step %q", strings.TrimPrefix(text, ":"))
			return w, nil
		}
		return w, w.action(func(ctx context.Context) error { return w.machine.Jump(ctx, n-1) })
	}

	ed, hasEditor := w.editors[w.status.StepID]
	if w.status.Phase == wizard.PhaseEditing && hasEditor {
		if ed.Interactive != nil && (text == "edit" || (text == "" && !w.machine.CanNext())) {
			w.Input.Reset()
			return w, w.interactive(ed.Interactive)
		}
		if text != "" && ed.Apply != nil {
			w.Input.Reset()
			var applyErr error
			if err := w.machine.Edit(func(s *S) { applyErr = ed.Apply(s, text) }); err != nil {
				w.lastErr = err
				return w, nil
			}
			w.lastErr = applyErr
			w.status = w.machine.Status()
			return w, nil
		}
	}

	if w.status.Phase == wizard.PhaseEditing {
		return w, w.action(w.machine.Next)
	}
	return w, nil
}

// interactive suspends the program while fn runs its own prompt.
func (w WizardModel[S]) interactive(fn func(s *S) error) tea.Cmd {
	m := w.machine
	return tea.Exec(execFunc(func() error {
		state := m.State()
		if err := fn(&state); err != nil {
			return err
		}
		return m.Edit(func(s *S) { *s = state })
	}), func(err error) tea.Msg { return wizardInteractiveDoneMsg{err: err} })
}

func (w *WizardModel[S]) syncPrompt() {
	ed, ok := w.editors[w.status.StepID]
	switch {
	case !ok || w.status.Phase != wizard.PhaseEditing:
		w.Input.Placeholder = "press enter to continue"
	case ed.Interactive != nil:
		w.Input.Placeholder = "press enter to choose"
	case ed.Prompt != "":
		w.Input.Placeholder = ed.Prompt
	default:
		w.Input.Placeholder = "press enter to continue"
	}
}

func (w WizardModel[S]) renderSteps() string {
	steps := w.machine.Steps()
	parts := make([]string, 0, len(steps))
	for i, st := range steps {
		label := fmt.Sprintf("%d %s", i+1, st.Icon)
		switch {
		case i == w.status.Index && !w.done:
			parts = append(parts, StylePrimary.Bold(true).Render(label+" "+st.Title))
		case i < w.status.Index || w.done:
			parts = append(parts, StyleSuccess.Render(label))
		case i <= w.status.Furthest:
			parts = append(parts, StyleText.Render(label))
		default:
			parts = append(parts, StyleSubtle.Render(label))
		}
	}
	return strings.Join(parts, StyleSubtle.Render(" › "))
}

func (w WizardModel[S]) renderProgress(p *progress.Snapshot, stages []string) string {
	var b strings.Builder
	for i, label := range stages {
		switch {
		case p == nil || i > p.Stage:
			b.WriteString(StyleSubtle.Render("  ○ "+label) + "\n")
		case i < p.Stage || p.State == progress.StateCompleted:
			b.WriteString(StylePrefixDone.Render("  ✓ ") + label + "\n")
		default:
			b.WriteString("  " + w.Spinner.View() + " " + label + "\n")
		}
	}
	return b.String()
}

func (w WizardModel[S]) View() string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render(w.title) + "\n")
	b.WriteString(w.renderSteps() + "\n\n")

	if w.done {
		b.WriteString(StyleSuccess.Render("✓ All done.") + "\n")
		if ed, ok := w.editors[w.machine.Steps()[w.status.Index].ID]; ok && ed.Summary != nil {
			b.WriteString(ed.Summary(w.machine.State()) + "\n")
		}
		b.WriteString("\n" + StyleSubtle.Render("press enter to exit"))
		return b.String()
	}

	step := w.machine.Steps()[w.status.Index]
	b.WriteString(StyleTitle.Render(step.Icon+" "+step.Title) + "\n\n")

	switch w.status.Phase {
	case wizard.PhaseProcessing:
		if len(step.Stages) > 0 {
			b.WriteString(w.renderProgress(w.status.Progress, step.Stages))
		} else {
			b.WriteString(w.Spinner.View() + " Working...\n")
		}
	case wizard.PhaseFailed:
		msg := "Something went wrong."
		if w.status.Err != nil {
			msg = w.status.Err.Error()
		}
		b.WriteString(StyleError.Render("✗ "+msg) + "\n")
		b.WriteString(StyleSubtle.Render("press r to retry or shift+tab to go back") + "\n")
	default:
		if ed, ok := w.editors[step.ID]; ok && ed.Summary != nil {
			if sum := ed.Summary(w.machine.State()); sum != "" {
				b.WriteString(sum + "\n\n")
			}
		}
		b.WriteString(StyleInputBox.Render(w.Input.View()) + "\n")
	}

	if w.lastErr != nil {
		b.WriteString(StyleError.Render(w.lastErr.Error()) + "\n")
	}
	if toasts := w.toasts.view(); toasts != "" {
		b.WriteString(toasts + "\n")
	}
	b.WriteString("\n" + StyleSubtle.Render("enter next • shift+tab back • :n jump • esc quit"))
	return b.String()
}

// RunWizard runs m until the user quits or the flow is done. It reports
// whether the flow finished.
func RunWizard[S any](ctx context.Context, title string, m *wizard.Machine[S], editors map[string]StepEditor[S], sink *ProgramSink) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWizardModel(ctx, title, m, editors), tea.WithContext(ctx))

	statuses := newLatest[wizard.Status]()
	unsub := m.Subscribe(statuses.put)
	defer unsub()
	go statuses.forward(ctx, p, func(st wizard.Status) tea.Msg { return wizardStatusMsg(st) })

	if sink != nil {
		sink.Attach(p)
		defer sink.Attach(nil)
	}

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return false, fmt.Errorf("run wizard: %w", err)
	}
	if fm, ok := final.(WizardModel[S]); ok {
		return fm.Done(), nil
	}
	return false, nil
}

// execFunc adapts a function to tea.ExecCommand.
type execFunc func() error

func (f execFunc) Run() error        { return f() }
func (execFunc) SetStdin(io.Reader)  {}
func (execFunc) SetStdout(io.Writer) {}
func (execFunc) SetStderr(io.Writer) {}
