// Package assistant runs one user's consultation: input screening, security
// escalation, per-persona history and the calls to every persona's agent.
// It is shared by the terminal and the window interfaces.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HealthAssistant-core/server/internal/agent/graph/conversations"
	"github.com/HealthAssistant-core/server/internal/agent/guard"
	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/security"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

const DefaultUserID = "default_user"

// ErrTerminated is returned by the interfaces when the security threshold ended the session.
var ErrTerminated = errors.New("session terminated after repeated security violations")

// Agent answers one query. Implementations never fail; they return fallback advice instead.
type Agent interface {
	Name() string
	Params() model.AgentParams
	Chat(ctx context.Context, in model.QueryInput) model.Advice
}

// Persona pairs an agent with the store that keeps its history.
type Persona struct {
	Agent Agent
	Store model.HistoryStore
}

type Config struct {
	UserID  string
	Rules   guard.Rules
	Tracker *security.Tracker
	History model.HistoryConfig
}

type slot struct {
	agent   Agent
	store   model.HistoryStore
	history []model.HistoryRecord
}

// Session is safe for use from the UI goroutine and one background worker.
type Session struct {
	mu sync.Mutex

	userID       string
	preprocessor *guard.Preprocessor
	validator    *guard.Validator
	tracker      *security.Tracker
	messages     *conversations.MessagesManager
	slots        []*slot
	terminated   bool
}

// NewSession loads every persona's history for the user. Load failures are
// logged and start that persona with an empty history.
func NewSession(ctx context.Context, cfg Config, personas []Persona) (*Session, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("at least one persona is required")
	}
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		userID = DefaultUserID
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = security.NewTracker(nil, security.DefaultThreshold)
	}

	s := &Session{
		userID:       userID,
		preprocessor: guard.NewPreprocessor(cfg.Rules),
		validator:    guard.NewValidator(cfg.Rules),
		tracker:      tracker,
		messages:     conversations.NewMessagesManager(cfg.History),
	}
	for i, p := range personas {
		if p.Agent == nil || p.Store == nil {
			return nil, fmt.Errorf("persona %d is missing its agent or store", i)
		}
		s.slots = append(s.slots, &slot{agent: p.Agent, store: p.Store, history: s.load(ctx, p)})
	}
	return s, nil
}

func (s *Session) UserID() string { return s.userID }

// ================ Input screening ================

type OutcomeKind int

const (
	// OutcomeEmpty is blank input; the UI simply prompts again.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeRejected is an input refused by the preprocessor or validator.
	OutcomeRejected
	// OutcomeCommand is a slash command (possibly reached through an alias).
	OutcomeCommand
	// OutcomeMessage is clean text to send to the agents.
	OutcomeMessage
)

// Outcome is the result of screening one raw input.
type Outcome struct {
	Kind       OutcomeKind
	Text       string
	Command    model.Command
	Validation guard.Validation
	// Terminate is set when this rejection reached the security threshold.
	Terminate bool
}

// Screen runs the preprocessor and validator over raw input and feeds
// escalating rejections to the security tracker.
func (s *Session) Screen(raw string) Outcome {
	original := strings.TrimSpace(raw)
	if original == "" {
		return Outcome{Kind: OutcomeEmpty}
	}

	result := s.preprocessor.Preprocess(original)
	v := s.validator.Check(result)
	if !v.Valid {
		terminate := s.tracker.Observe(v.Category, v.Message, original)
		if terminate {
			s.mu.Lock()
			s.terminated = true
			s.mu.Unlock()
		}
		logx.Info().
			Str("user_id", s.userID).
			Str("category", string(v.Category)).
			Msg("Input rejected")
		return Outcome{Kind: OutcomeRejected, Validation: v, Terminate: terminate}
	}

	if cmd, ok := model.ParseCommand(result.Text); ok {
		return Outcome{Kind: OutcomeCommand, Text: result.Text, Command: cmd, Validation: v}
	}
	return Outcome{Kind: OutcomeMessage, Text: result.Text, Validation: v}
}

// Terminated reports whether the security threshold ended the session.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *Session) SecurityCount() int { return s.tracker.Count() }

// ================ Conversation ================

// Reply is one persona's answer to a turn.
type Reply struct {
	Agent   string
	Advice  model.Advice
	Elapsed time.Duration
}

// Ask sends a screened message to every persona in order. Each persona sees
// its own recent history as context. Histories are saved after every reply.
func (s *Session) Ask(ctx context.Context, text string) []Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	replies := make([]Reply, 0, len(s.slots))
	for _, sl := range s.slots {
		sl.history = append(sl.history, model.NewHistoryRecord(model.RoleUser, text))
		query := s.messages.BuildQuery(sl.history, text)
		replies = append(replies, s.exchange(ctx, sl, query))
	}
	return replies
}

// Welcome greets a new user, or recalls the last topic, once per persona.
func (s *Session) Welcome(ctx context.Context) []Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	replies := make([]Reply, 0, len(s.slots))
	for _, sl := range s.slots {
		replies = append(replies, s.exchange(ctx, sl, s.messages.WelcomeQuery(sl.history)))
	}
	return replies
}

// exchange calls the persona's agent and records its answer. Callers hold s.mu.
func (s *Session) exchange(ctx context.Context, sl *slot, query string) Reply {
	start := time.Now()
	advice := sl.agent.Chat(ctx, model.QueryInput{UserID: s.userID, Query: query})
	elapsed := time.Since(start)

	sl.history = append(sl.history, model.NewHistoryRecord(model.RoleAssistant, advice.Content))
	s.save(ctx, sl)

	logx.Debug().
		Str("user_id", s.userID).
		Str("agent", sl.agent.Name()).
		Str("advice_type", string(advice.AdviceType)).
		Dur("elapsed", elapsed).
		Msg("Agent replied")
	return Reply{Agent: sl.agent.Name(), Advice: advice, Elapsed: elapsed}
}

// Empty reports whether every persona's history is empty.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if len(sl.history) > 0 {
			return false
		}
	}
	return true
}

// ================ Commands ================

// AgentHistory is a snapshot of one persona's records.
type AgentHistory struct {
	Agent   string
	Records []model.HistoryRecord
}

func (s *Session) Histories() []AgentHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AgentHistory, 0, len(s.slots))
	for _, sl := range s.slots {
		records := make([]model.HistoryRecord, len(sl.history))
		copy(records, sl.history)
		out = append(out, AgentHistory{Agent: sl.agent.Name(), Records: records})
	}
	return out
}

func (s *Session) Params() []model.AgentParams {
	out := make([]model.AgentParams, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.agent.Params())
	}
	return out
}

// Clear wipes every persona's stored history and reloads the (now empty) state.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sl := range s.slots {
		if err := sl.store.Clear(ctx, s.userID); err != nil {
			logx.Error().Err(err).Str("user_id", s.userID).Str("agent", sl.agent.Name()).Msg("Failed to clear history")
			errs = append(errs, err)
		}
		sl.history = s.load(ctx, Persona{Agent: sl.agent, Store: sl.store})
	}
	return errors.Join(errs...)
}

// Persist saves every persona's history.
func (s *Session) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sl := range s.slots {
		if err := s.save(ctx, sl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ====================== Helper function ======================

func (s *Session) load(ctx context.Context, p Persona) []model.HistoryRecord {
	records, err := p.Store.Load(ctx, s.userID)
	if err != nil {
		logx.Error().Err(err).Str("user_id", s.userID).Str("agent", p.Agent.Name()).Msg("Failed to load history")
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return records
}

func (s *Session) save(ctx context.Context, sl *slot) error {
	if err := sl.store.Save(ctx, s.userID, sl.history); err != nil {
		logx.Error().Err(err).Str("user_id", s.userID).Str("agent", sl.agent.Name()).Msg("Failed to save history")
		return err
	}
	return nil
}
