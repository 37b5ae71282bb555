// Package session is the onboarding state machine: it decides which step the
// user is on from the persisted record and runs the actions that move between
// steps (register a name, look up a partner, send affection, reset).
//
// Every action runs to completion before the next one starts. A failed action
// leaves the in-memory state equal to what the store would load.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jask/lovenudge/internal/inbox"
	"github.com/jask/lovenudge/internal/pushtoken"
	"github.com/jask/lovenudge/internal/relay"
	"github.com/jask/lovenudge/internal/store"
)

const defaultTitle = "Love nudge"

// Store persists the session record.
type Store interface {
	Load(ctx context.Context) store.Record
	SetUserName(ctx context.Context, name string) error
	SetLocalPushToken(ctx context.Context, token string) error
	SetPartnerPushToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Relay is the remote notification relay.
type Relay interface {
	SaveUser(ctx context.Context, name, token string) error
	GetUser(ctx context.Context, username string) (string, error)
	SendNotification(ctx context.Context, n relay.Notification) error
}

// Options configure a Session.
type Options struct {
	Logger *zap.Logger
	// Title is the notification title. Empty means the sender's user name.
	Title string
	// Inbox supplies the latest notification received on this device.
	Inbox inbox.Source
}

// Session owns the onboarding state. Its collaborators are injected.
type Session struct {
	mu     sync.Mutex
	store  Store
	relay  Relay
	tokens pushtoken.Source
	inbox  inbox.Source
	log    *zap.Logger
	title  string
	state  State
}

func New(st Store, rl Relay, tokens pushtoken.Source, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:  st,
		relay:  rl,
		tokens: tokens,
		inbox:  opts.Inbox,
		log:    log,
		title:  strings.TrimSpace(opts.Title),
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load reads the store and derives the initial step. It never fails: storage
// problems read as absent values and a missing token source is ignored.
func (s *Session) Load(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.store.Load(ctx)
	st := State{
		Step:             ComputeInitialStep(rec),
		UserName:         rec.UserName,
		LocalPushToken:   rec.LocalPushToken,
		PartnerPushToken: rec.PartnerPushToken,
	}
	if current, err := s.tokens.Token(ctx); err == nil && rec.LocalPushToken != "" && current != rec.LocalPushToken {
		st.TokenChanged = true
	}
	st.Latest = s.readInbox(ctx)
	s.state = st
	s.log.Info("session loaded",
		zap.Stringer("step", st.Step),
		zap.Bool("has_name", st.UserName != ""),
		zap.Bool("has_partner", st.PartnerPushToken != ""),
		zap.Bool("token_changed", st.TokenChanged),
	)
	return st
}

// SubmitName registers name with the relay under this device's push token and
// persists both. The relay is called first so a rejected registration leaves
// nothing behind locally. The token is written before the name; the name is
// what advances the step.
func (s *Session) SubmitName(ctx context.Context, name string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return s.state, ErrEmptyName
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return s.state, fmt.Errorf("%w: %w", ErrNoPushToken, err)
	}

	if err := s.relay.SaveUser(ctx, name, token); err != nil {
		s.log.Warn("save-user failed", zap.String("name", name), zap.Error(err))
		return s.state, fmt.Errorf("save user: %w", err)
	}
	if err := s.store.SetLocalPushToken(ctx, token); err != nil {
		s.resync(ctx, token)
		return s.state, err
	}
	if err := s.store.SetUserName(ctx, name); err != nil {
		s.resync(ctx, token)
		return s.state, err
	}
	s.state.UserName = name
	s.state.LocalPushToken = token
	s.state.TokenChanged = false
	if s.state.Step < AwaitingPartner {
		s.state.Step = AwaitingPartner
	}
	s.log.Info("registered", zap.String("name", name), zap.String("token", shortToken(token)))
	return s.state, nil
}

// resync replaces the persisted fields of the in-memory state with what the
// store holds, so a partially applied action shows what a restart would show.
func (s *Session) resync(ctx context.Context, current string) {
	rec := s.store.Load(ctx)
	s.state.Step = ComputeInitialStep(rec)
	s.state.UserName = rec.UserName
	s.state.LocalPushToken = rec.LocalPushToken
	s.state.PartnerPushToken = rec.PartnerPushToken
	s.state.TokenChanged = rec.LocalPushToken != "" && current != rec.LocalPushToken
	s.log.Warn("registration partially persisted", zap.Stringer("step", s.state.Step))
}

// SubmitPartnerLookup resolves partnerName through the relay and stores the
// returned token as the partner token.
func (s *Session) SubmitPartnerLookup(ctx context.Context, partnerName string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Step < AwaitingPartner {
		return s.state, ErrNotRegistered
	}
	partnerName = strings.TrimSpace(partnerName)
	if partnerName == "" {
		return s.state, ErrEmptyPartnerName
	}

	token, err := s.relay.GetUser(ctx, partnerName)
	if err != nil {
		s.log.Warn("get-user failed", zap.String("partner", partnerName), zap.Error(err))
		return s.state, fmt.Errorf("look up %s: %w", partnerName, err)
	}
	if err := s.store.SetPartnerPushToken(ctx, token); err != nil {
		return s.state, err
	}
	s.state.PartnerPushToken = token
	s.state.Step = Ready
	s.log.Info("partner found", zap.String("partner", partnerName), zap.String("token", shortToken(token)))
	return s.state, nil
}

// SendAffection pushes body to the partner. Without a partner token it falls
// back to this device's own token, which is how the client has always behaved.
func (s *Session) SendAffection(ctx context.Context, body string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body = strings.TrimSpace(body)
	if body == "" {
		return s.state, ErrEmptyMessage
	}
	target := s.state.TargetToken()
	if target == "" {
		return s.state, ErrNoTargetToken
	}
	if s.state.SendsToSelf() {
		s.log.Warn("no partner token, sending to own device")
	}

	n := relay.Notification{Title: s.notificationTitle(), Body: body, Token: target}
	if err := s.relay.SendNotification(ctx, n); err != nil {
		s.log.Warn("send-notification failed", zap.String("token", shortToken(target)), zap.Error(err))
		return s.state, fmt.Errorf("send notification: %w", err)
	}
	s.state.LastSent = body
	s.log.Info("affection sent", zap.String("token", shortToken(target)))
	return s.state, nil
}

// Reset clears the store and the in-memory state. The in-memory state is
// cleared even when some keys could not be removed; that error is returned.
func (s *Session) Reset(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Clear(ctx)
	s.state = State{Step: AwaitingName}
	if err != nil {
		s.log.Warn("reset left keys behind", zap.Error(err))
		return s.state, fmt.Errorf("reset: %w", err)
	}
	s.log.Info("session reset")
	return s.state, nil
}

// RefreshInbox re-reads the latest received notification. Only State.Latest
// changes.
func (s *Session) RefreshInbox(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Latest = s.readInbox(ctx)
	return s.state
}

func (s *Session) readInbox(ctx context.Context) inbox.Notification {
	if s.inbox == nil {
		return inbox.Notification{}
	}
	n, err := s.inbox.Latest(ctx)
	if err != nil {
		s.log.Debug("inbox unreadable", zap.Error(err))
		return inbox.Notification{}
	}
	return n
}

func (s *Session) notificationTitle() string {
	switch {
	case s.title != "":
		return s.title
	case s.state.UserName != "":
		return s.state.UserName
	default:
		return defaultTitle
	}
}

func shortToken(t string) string {
	if utf8.RuneCountInString(t) <= 12 {
		return t
	}
	return string([]rune(t)[:12]) + "…"
}
