package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/planperfect/planperfect/internal/agent"
	"github.com/planperfect/planperfect/internal/api"
)

// Layout constants
const (
	DefaultViewportWidth  = 80
	DefaultViewportHeight = 15
	MinViewportHeight     = 6
	DefaultTextareaHeight = 3
	HeaderFooterHeight    = 10
	MaxMsgWidth           = 76
)

// ChatSession is the assistant session driven by the chat screen.
type ChatSession interface {
	View() agent.View
	Send(ctx context.Context, text string, file *api.Image) (agent.Message, error)
	Clear(ctx context.Context) error
}

// FileLoader turns a path typed after /attach into an image.
type FileLoader func(path string) (*api.Image, error)

type chatViewMsg agent.View

type chatSendDoneMsg struct {
	reply agent.Message
	err   error
}

type chatClearDoneMsg struct{ err error }

// ChatModel is the assistant screen: transcript, live steps while the agent
// works, and an input box.
type ChatModel struct {
	ctx      context.Context
	session  ChatSession
	loadFile FileLoader

	view       agent.View
	attachment *api.Image
	lastErr    error

	Input    textarea.Model
	Viewport viewport.Model
	Spinner  spinner.Model
	toasts   toastStack
}

// NewChatModel creates the chat screen for s.
func NewChatModel(ctx context.Context, s ChatSession, loadFile FileLoader) ChatModel {
	ti := textarea.New()
	ti.Placeholder = "Ask about styles, furniture or your floor plan. /attach <path>, /clear, /quit"
	ti.Focus()
	ti.CharLimit = 0
	ti.SetWidth(DefaultViewportWidth - 4)
	ti.SetHeight(DefaultTextareaHeight)
	ti.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StylePrimary

	m := ChatModel{
		ctx:      ctx,
		session:  s,
		loadFile: loadFile,
		view:     s.View(),
		Input:    ti,
		Viewport: viewport.New(DefaultViewportWidth, DefaultViewportHeight),
		Spinner:  sp,
		toasts:   newToastStack(3),
	}
	m.refresh()
	return m
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.Spinner.Tick, toastTick())
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = max(msg.Height-HeaderFooterHeight, MinViewportHeight)
		m.Input.SetWidth(msg.Width - 6)
		m.refresh()
		return m, nil

	case chatViewMsg:
		m.view = agent.View(msg)
		m.refresh()
		return m, nil

	case chatSendDoneMsg:
		m.lastErr = msg.err
		m.view = m.session.View()
		m.refresh()
		return m, nil

	case chatClearDoneMsg:
		m.lastErr = msg.err
		m.view = m.session.View()
		m.refresh()
		return m, nil

	case ToastMsg:
		m.toasts = m.toasts.push(notifyToast(msg))
		return m, nil

	case toastTickMsg:
		m.toasts = m.toasts.prune(time.Time(msg))
		return m, toastTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleSend()
		case tea.KeyPgUp:
			m.Viewport.ScrollUp(max(m.Viewport.Height/2, 1))
			return m, nil
		case tea.KeyPgDown:
			m.Viewport.ScrollDown(max(m.Viewport.Height/2, 1))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// handleSend interprets the input box. The box is cleared at once; the
// user turn shows up through the session before the reply arrives.
func (m ChatModel) handleSend() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.Input.Value())

	switch {
	case text == "/quit":
		return m, tea.Quit
	case text == "/clear":
		m.Input.Reset()
		ctx, s := m.ctx, m.session
		return m, func() tea.Msg { return chatClearDoneMsg{err: s.Clear(ctx)} }
	case strings.HasPrefix(text, "/attach"):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/attach"))
		m.Input.Reset()
		if path == "" || m.loadFile == nil {
			m.lastErr = errors.New("usage: /attach <image path>")
			m.refresh()
			return m, nil
		}
		img, err := m.loadFile(path)
		m.lastErr = err
		if err == nil {
			m.attachment = img
		}
		m.refresh()
		return m, nil
	}

	if text == "" && m.attachment == nil {
		return m, nil
	}
	if m.view.Sending {
		return m, nil
	}

	m.Input.Reset()
	file := m.attachment
	m.attachment = nil
	m.lastErr = nil
	ctx, s := m.ctx, m.session
	return m, func() tea.Msg {
		reply, err := s.Send(ctx, text, file)
		return chatSendDoneMsg{reply: reply, err: err}
	}
}

func (m *ChatModel) refresh() {
	m.Viewport.SetContent(m.renderTranscript())
	m.Viewport.GotoBottom()
}

func (m ChatModel) renderTranscript() string {
	width := min(MaxMsgWidth, max(m.Viewport.Width-2, 20))
	var b strings.Builder
	for _, msg := range m.view.Messages {
		switch msg.Role {
		case agent.RoleUser:
			b.WriteString(StylePrefixUser.Render("You ›") + " ")
		default:
			b.WriteString(StylePrefixAgent.Render("Assistant ›") + " ")
		}
		b.WriteString(WrapText(msg.Content, width))
		b.WriteString("\n")
		if msg.Attachment != nil {
			line := "  ⎘ " + msg.Attachment.Name
			if msg.Attachment.PreviewURL != "" {
				line += " " + msg.Attachment.PreviewURL
			}
			b.WriteString(StyleSubtle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ChatModel) renderLive() string {
	if !m.view.Working() {
		return ""
	}
	if len(m.view.LiveSteps) == 0 {
		return m.Spinner.View() + " " + StyleSubtle.Render("Thinking...")
	}
	lines := make([]string, 0, len(m.view.LiveSteps))
	for _, st := range m.view.LiveSteps {
		if st.Active {
			lines = append(lines, m.Spinner.View()+" "+st.Label)
		} else {
			lines = append(lines, StylePrefixDone.Render("✓")+" "+StyleSubtle.Render(st.Label))
		}
	}
	return strings.Join(lines, "\n")
}

func (m ChatModel) renderOutputs() string {
	if m.view.Outputs.Count() == 0 {
		return ""
	}
	var parts []string
	for _, cat := range agent.OutputCategories {
		if n := len(m.view.Outputs[cat]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(Label(cat))))
		}
	}
	return StyleSubtle.Render("Outputs: " + strings.Join(parts, " · "))
}

func (m ChatModel) View() string {
	var b strings.Builder

	header := "PlanPerfect Assistant"
	if m.view.Model != "" {
		header += StyleSubtle.Render(" (" + m.view.Model + ")")
	}
	b.WriteString(StyleHeader.Render(header) + "\n\n")
	b.WriteString(m.Viewport.View() + "\n")

	if live := m.renderLive(); live != "" {
		b.WriteString("\n" + live + "\n")
	}
	if outs := m.renderOutputs(); outs != "" {
		b.WriteString(outs + "\n")
	}
	if m.attachment != nil {
		b.WriteString(StylePrefixInfo.Render("⎘ "+m.attachment.Name+" will be sent with your next message") + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(StyleError.Render(m.lastErr.Error()) + "\n")
	}
	if toasts := m.toasts.view(); toasts != "" {
		b.WriteString(toasts + "\n")
	}

	b.WriteString(StyleInputBox.Render(m.Input.View()) + "\n")
	b.WriteString(StyleSubtle.Render("enter send • pgup/pgdn scroll • esc quit"))
	return b.String()
}

// RunChat runs the chat screen until the user quits. Session updates and
// toasts are forwarded into the program.
func RunChat(ctx context.Context, s *agent.Session, sink *ProgramSink, loadFile FileLoader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewChatModel(ctx, s, loadFile), tea.WithAltScreen(), tea.WithContext(ctx))

	views := newLatest[agent.View]()
	unsub := s.Subscribe(views.put)
	defer unsub()
	go views.forward(ctx, p, func(v agent.View) tea.Msg { return chatViewMsg(v) })

	if sink != nil {
		sink.Attach(p)
		defer sink.Attach(nil)
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
