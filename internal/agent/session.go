// Package agent is the design assistant session: the transcript, the
// outputs the agent produced, and the live step list fed by the realtime
// channels while the agent works.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/preview"
	"github.com/planperfect/planperfect/internal/realtime"
	"github.com/planperfect/planperfect/internal/session"
	"golang.org/x/sync/errgroup"
)

// Greeting is the assistant message every empty transcript starts with.
const Greeting = "Hi! I'm your PlanPerfect design assistant. Ask me about styles, furniture, colours or your floor plan."

var (
	// ErrSendInFlight rejects a send while the previous turn is unanswered.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrEmptyMessage rejects a send with no text and no attachment.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotAttached is returned by Detach before Attach.
	ErrNotAttached = errors.New("session is not attached to realtime updates")
)

// Role is who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment is an image sent with a user turn.
type Attachment struct {
	Name       string
	MIME       string
	PreviewURL string
}

// Message is one transcript entry.
type Message struct {
	ID         string
	Role       Role
	Content    string
	Attachment *Attachment
	Time       time.Time
}

// LiveStep is one entry of the progress list shown while the agent works.
// Every entry but the latest is complete.
type LiveStep struct {
	Label  string
	Active bool
}

// Output categories the agent writes into its outputs map.
const (
	OutputWebSearches     = "web_searches"
	OutputGeneratedImages = "generated_images"
	OutputFloorPlans      = "floor_plans"
	OutputColors          = "colors"
	OutputFurniture       = "furniture"
	OutputStyles          = "styles"
	OutputRecommendations = "recommendations"
)

// OutputCategories lists the categories in display order.
var OutputCategories = []string{
	OutputWebSearches,
	OutputGeneratedImages,
	OutputFloorPlans,
	OutputColors,
	OutputFurniture,
	OutputStyles,
	OutputRecommendations,
}

// Outputs maps a category to the raw items the agent produced for it.
type Outputs map[string][]json.RawMessage

// Count returns the number of items across all categories.
func (o Outputs) Count() int {
	n := 0
	for _, items := range o {
		n += len(items)
	}
	return n
}

// View is everything a renderer needs.
type View struct {
	Messages    []Message
	LiveSteps   []LiveStep
	Outputs     Outputs
	Status      string
	CurrentStep string
	Model       string
	Sending     bool
}

// Working reports whether the agent is processing a turn.
func (v View) Working() bool {
	return v.Sending || (v.Status != "" && v.Status != realtime.StatusIdle)
}

// Backend is the subset of the API client the session uses.
type Backend interface {
	AgentQuery(ctx context.Context, uid, query string) (string, error)
	AgentQueryWithFiles(ctx context.Context, uid, query string, files []api.Image) (string, error)
	AgentModel(ctx context.Context) (string, error)
	LoadAgentSession(ctx context.Context, uid string) (*api.AgentSession, error)
	ClearAgentSession(ctx context.Context, uid string) error
}

// UserSource yields the signed-in user.
type UserSource interface {
	RequireUser() (session.User, error)
}

// Options configures a Session.
type Options struct {
	Backend  Backend
	Users    UserSource
	Notifier notify.Notifier
	Previews preview.Publisher
	Store    realtime.Store
}

// Session is one assistant page.
type Session struct {
	backend  Backend
	users    UserSource
	notifier notify.Notifier
	previews preview.Publisher
	store    realtime.Store
	now      func() time.Time

	mu       sync.Mutex
	messages []Message
	live     []LiveStep
	outputs  Outputs
	files    []Attachment
	status   string
	current  string
	model    string
	sending  bool
	loaded   bool
	scope    *realtime.Scope

	pubMu sync.Mutex
	view  *session.Value[View]
}

// New creates a session showing only the greeting.
func New(opts Options) *Session {
	s := &Session{
		backend:  opts.Backend,
		users:    opts.Users,
		notifier: opts.Notifier,
		previews: opts.Previews,
		store:    opts.Store,
		now:      time.Now,
		outputs:  Outputs{},
	}
	s.messages = []Message{s.greeting()}
	s.view = session.NewValue(s.snapshotLocked())
	return s
}

// View returns the current state.
func (s *Session) View() View { return s.view.Get() }

// Subscribe is notified after every change.
func (s *Session) Subscribe(fn func(View)) func() { return s.view.Subscribe(fn) }

// Load fetches the stored transcript, outputs and model name. Only the first
// call reaches the backend.
func (s *Session) Load(ctx context.Context) error {
	user, err := s.users.RequireUser()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.loaded = true
	s.mu.Unlock()

	var stored *api.AgentSession
	var model string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stored, err = s.backend.LoadAgentSession(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		m, err := s.backend.AgentModel(gctx)
		if err != nil {
			// The model label is decorative.
			slog.Debug("agent model lookup failed", "error", err)
			return nil
		}
		model = m
		return nil
	})
	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.loaded = false
		s.mu.Unlock()
		s.report(err, "Could not load your previous conversation.")
		return fmt.Errorf("load agent session: %w", err)
	}

	s.mutate(func() {
		s.model = model
		if msgs := s.messagesFromSteps(stored.Steps); len(msgs) > 0 {
			s.messages = msgs
		}
		if outs, err := decodeOutputs(stored.Outputs); err != nil {
			slog.Warn("ignoring malformed agent outputs", "error", err)
		} else if outs != nil {
			s.outputs = outs
		}
	})
	return nil
}

// Attach subscribes to the current step, status and outputs channels until
// ctx ends or Detach is called.
func (s *Session) Attach(ctx context.Context) error {
	user, err := s.users.RequireUser()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.scope != nil {
		s.mu.Unlock()
		return nil
	}
	scope := realtime.NewScope(ctx, s.store)
	s.scope = scope
	s.mu.Unlock()

	subs := []struct {
		channel string
		fn      realtime.Handler
	}{
		{realtime.ChannelStatus, s.onStatus},
		{realtime.ChannelCurrentStep, s.onCurrentStep},
		{realtime.ChannelOutputs, s.onOutputs},
	}
	for _, sub := range subs {
		if err := scope.Subscribe(realtime.UserPath(user.ID, sub.channel), sub.fn); err != nil {
			s.Detach()
			return fmt.Errorf("subscribe %s: %w", sub.channel, err)
		}
	}
	return nil
}

// Detach releases the realtime subscriptions.
func (s *Session) Detach() error {
	s.mu.Lock()
	scope := s.scope
	s.scope = nil
	s.mu.Unlock()
	if scope == nil {
		return ErrNotAttached
	}
	scope.Close()
	return nil
}

// Send appends the user turn at once, then the assistant's reply when the
// backend answers. Only one turn can be in flight.
func (s *Session) Send(ctx context.Context, text string, file *api.Image) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return Message{}, ErrEmptyMessage
	}
	user, err := s.users.RequireUser()
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return Message{}, ErrSendInFlight
	}
	s.sending = true
	s.mu.Unlock()

	msg := Message{ID: uuid.NewString(), Role: RoleUser, Content: text, Time: s.now()}
	if file != nil {
		att := Attachment{Name: file.Name, MIME: file.MIME}
		if s.previews != nil {
			att.PreviewURL = s.previews.Create(file.Name, file.MIME, file.Data)
		}
		msg.Attachment = &att
	}
	s.mutate(func() {
		s.messages = append(s.messages, msg)
		if msg.Attachment != nil {
			s.files = append(s.files, *msg.Attachment)
		}
	})

	var reply string
	if file != nil {
		reply, err = s.backend.AgentQueryWithFiles(ctx, user.ID, text, []api.Image{*file})
	} else {
		reply, err = s.backend.AgentQuery(ctx, user.ID, text)
	}

	if err != nil {
		s.mutate(func() { s.sending = false })
		s.report(err, "The assistant could not answer. Please try again.")
		return Message{}, err
	}

	answer := Message{ID: uuid.NewString(), Role: RoleAssistant, Content: reply, Time: s.now()}
	s.mutate(func() {
		s.messages = append(s.messages, answer)
		s.sending = false
	})
	return answer, nil
}

// Clear wipes the conversation on the backend, then locally: the transcript
// goes back to the greeting, outputs and files are dropped and their
// previews revoked. A failed backend call changes nothing locally.
func (s *Session) Clear(ctx context.Context) error {
	user, err := s.users.RequireUser()
	if err != nil {
		return err
	}
	if err := s.backend.ClearAgentSession(ctx, user.ID); err != nil {
		s.report(err, "Could not clear the conversation.")
		return fmt.Errorf("clear agent session: %w", err)
	}

	var revoke []string
	s.mutate(func() {
		for _, f := range s.files {
			if f.PreviewURL != "" {
				revoke = append(revoke, f.PreviewURL)
			}
		}
		s.files = nil
		s.messages = []Message{s.greeting()}
		s.outputs = Outputs{}
		s.live = nil
	})
	s.revoke(revoke)
	if s.notifier != nil {
		s.notifier.Success("Conversation cleared.")
	}
	return nil
}

// ModelName returns the model label loaded by Load.
func (s *Session) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Close detaches and revokes every preview the session still holds.
func (s *Session) Close() {
	_ = s.Detach()
	var revoke []string
	s.mutate(func() {
		for _, f := range s.files {
			if f.PreviewURL != "" {
				revoke = append(revoke, f.PreviewURL)
			}
		}
		s.files = nil
	})
	s.revoke(revoke)
}

func (s *Session) onCurrentStep(snap realtime.Snapshot) {
	label := strings.TrimSpace(snap.String())
	s.mutate(func() {
		s.current = label
		// Labels written after processing stopped belong to no run.
		if label == "" || !running(s.status) {
			return
		}
		if n := len(s.live); n > 0 && s.live[n-1].Label == label {
			return
		}
		for i := range s.live {
			s.live[i].Active = false
		}
		s.live = append(s.live, LiveStep{Label: label, Active: true})
	})
}

func (s *Session) onStatus(snap realtime.Snapshot) {
	status := snap.String()
	s.mutate(func() {
		s.status = status
		if !running(status) {
			s.live = nil
		}
	})
}

func running(status string) bool {
	return status != "" && status != realtime.StatusIdle
}

func (s *Session) onOutputs(snap realtime.Snapshot) {
	var raw map[string]json.RawMessage
	if err := snap.Decode(&raw); err != nil {
		slog.Warn("ignoring malformed outputs update", "error", err)
		return
	}
	outs, err := decodeOutputs(raw)
	if err != nil {
		slog.Warn("ignoring malformed outputs update", "error", err)
		return
	}
	s.mutate(func() {
		if outs == nil {
			outs = Outputs{}
		}
		s.outputs = outs
	})
}

func decodeOutputs(raw map[string]json.RawMessage) (Outputs, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(Outputs, len(raw))
	for cat, data := range raw {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			// A category holding a single object counts as one item.
			items = []json.RawMessage{data}
		}
		if len(items) > 0 {
			out[cat] = items
		}
	}
	return out, nil
}

func (s *Session) messagesFromSteps(steps []api.AgentStep) []Message {
	var msgs []Message
	for _, st := range steps {
		var role Role
		switch st.Type {
		case api.StepUserQuery:
			role = RoleUser
		case api.StepResponse:
			role = RoleAssistant
		default:
			continue
		}
		ts, err := time.Parse(time.RFC3339, st.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		msgs = append(msgs, Message{ID: uuid.NewString(), Role: role, Content: st.Content, Time: ts})
	}
	if len(msgs) > 0 && msgs[0].Role != RoleAssistant {
		msgs = append([]Message{s.greeting()}, msgs...)
	}
	return msgs
}

func (s *Session) greeting() Message {
	return Message{ID: uuid.NewString(), Role: RoleAssistant, Content: Greeting, Time: s.now()}
}

// mutate applies fn under the lock and publishes the resulting view.
// Publishing is serialized so subscribers never see an older view last.
func (s *Session) mutate(fn func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	fn()
	v := s.snapshotLocked()
	s.mu.Unlock()
	s.view.Set(v)
}

func (s *Session) snapshotLocked() View {
	outs := make(Outputs, len(s.outputs))
	for k, v := range s.outputs {
		outs[k] = append([]json.RawMessage(nil), v...)
	}
	return View{
		Messages:    append([]Message(nil), s.messages...),
		LiveSteps:   append([]LiveStep(nil), s.live...),
		Outputs:     outs,
		Status:      s.status,
		CurrentStep: s.current,
		Model:       s.model,
		Sending:     s.sending,
	}
}

func (s *Session) revoke(urls []string) {
	if s.previews == nil {
		return
	}
	for _, u := range urls {
		if err := s.previews.Revoke(u); err != nil {
			slog.Warn("revoke attachment preview failed", "url", u, "error", err)
		}
	}
}

func (s *Session) report(err error, fallback string) {
	if s.notifier != nil {
		s.notifier.Report(err, fallback)
	}
}
