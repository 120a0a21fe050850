package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/clock"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
	"github.com/capitalize-ai/hostbot/pkg/metrics"
)

// Prompt and notice texts.
const (
	PromptStart      = "Let's host a party! Enter START time (YYYY-MM-DD HH:MM):"
	PromptEnd        = "Enter END time (YYYY-MM-DD HH:MM):"
	PromptArea       = "Select AREA:"
	MsgBadTimestamp  = "Invalid format! Use YYYY-MM-DD HH:MM"
	MsgEndNotAfter   = "End time must be AFTER start time!"
	MsgBadCost       = "Invalid number! Enter digits only"
	MsgNegativeCost  = "Cost cannot be negative!"
	MsgUnknownArea   = "Select from the list!"
	MsgPartyListed   = "Party listed successfully! ✅"
	defaultCurrency  = "TON"
	costPromptFormat = "Enter COST per head (%s):"
)

// EventCreator persists a completed event.
type EventCreator interface {
	Create(ctx context.Context, in model.NewEvent) (*model.Event, error)
}

// Options configures an Engine.
type Options struct {
	// Areas is the closed set of selectable areas, in display order.
	Areas []string
	// Currency is the label shown in the cost prompt.
	Currency string
	// Clock stamps session activity. Defaults to the local wall clock.
	Clock clock.Clock
}

// Input is one user message routed into the flow.
type Input struct {
	UserID      int64
	DisplayName string
	Text        string
}

// Result describes the outcome of one step.
type Result struct {
	State   State
	Replies []model.Reply
	// Invalid is set when the input was rejected and the step re-prompted.
	Invalid *ValidationError
	// Event is set when the step committed a new event.
	Event *model.Event
}

type entry struct {
	mu      sync.Mutex
	session Session
	// removed is set once the entry has left the table. A caller that locks
	// a removed entry must look the user up again.
	removed bool
}

// Engine drives hosting sessions for all users. Steps for one user are
// serialized; steps for different users run concurrently.
type Engine struct {
	creator  EventCreator
	areas    []string
	areaSet  map[string]struct{}
	currency string
	clock    clock.Clock
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[int64]*entry
}

// NewEngine creates a conversation engine.
func NewEngine(creator EventCreator, opts Options, log *logger.Logger) (*Engine, error) {
	if creator == nil {
		return nil, fmt.Errorf("event creator must not be nil")
	}
	if len(opts.Areas) == 0 {
		return nil, fmt.Errorf("at least one area is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Wall{}
	}
	if opts.Currency == "" {
		opts.Currency = defaultCurrency
	}

	areas := make([]string, len(opts.Areas))
	copy(areas, opts.Areas)
	set := make(map[string]struct{}, len(areas))
	for _, a := range areas {
		set[a] = struct{}{}
	}

	return &Engine{
		creator:  creator,
		areas:    areas,
		areaSet:  set,
		currency: opts.Currency,
		clock:    opts.Clock,
		logger:   log,
		sessions: make(map[int64]*entry),
	}, nil
}

// ValidArea reports whether input exactly names a configured area.
func (e *Engine) ValidArea(input string) bool {
	_, ok := e.areaSet[input]
	return ok
}

// Begin starts a hosting session. A session already in progress is discarded
// and the flow restarts from the first step.
func (e *Engine) Begin(userID int64) Result {
	ent := e.acquire(userID, true)
	defer ent.mu.Unlock()

	from := ent.session.State
	ent.session = Session{
		UserID:    userID,
		State:     AwaitingStart,
		UpdatedAt: e.clock.Now(),
	}
	metrics.RecordTransition(from.String(), AwaitingStart.String())
	e.logger.Debug("hosting session started",
		zap.Int64("user_id", userID),
		zap.Stringer("previous_state", from),
	)

	return Result{
		State:   AwaitingStart,
		Replies: []model.Reply{{Text: PromptStart, RemoveKeyboard: true}},
	}
}

// Handle applies one message to the user's session. It returns ErrNoSession
// when the user is idle. A non-nil error other than ErrNoSession means the
// event could not be saved; the session is kept at the area step and the
// result carries the retry prompt.
func (e *Engine) Handle(ctx context.Context, in Input) (Result, error) {
	ent := e.acquire(in.UserID, false)
	if ent == nil {
		return Result{State: Idle}, ErrNoSession
	}
	defer ent.mu.Unlock()

	s := &ent.session
	from := s.State
	s.UpdatedAt = e.clock.Now()

	var (
		res Result
		err error
	)
	switch s.State {
	case AwaitingStart:
		res = e.handleStart(s, in.Text)
	case AwaitingEnd:
		res = e.handleEnd(s, in.Text)
	case AwaitingCost:
		res = e.handleCost(s, in.Text)
	case AwaitingArea:
		res, err = e.handleArea(ctx, s, in)
	default:
		return Result{State: Idle}, ErrNoSession
	}

	if res.Invalid != nil {
		metrics.RecordValidationFailure(res.Invalid.Field, res.Invalid.Reason)
	}
	if res.State != from {
		metrics.RecordTransition(from.String(), res.State.String())
	}
	if res.State == Idle {
		e.remove(in.UserID, ent)
	}
	return res, err
}

func (e *Engine) handleStart(s *Session, text string) Result {
	start, err := ParseTimestamp(text)
	if err != nil {
		return e.reject(s, FieldStart, ReasonFormat, text, MsgBadTimestamp)
	}
	s.Draft.Start = start
	s.State = AwaitingEnd
	return Result{State: AwaitingEnd, Replies: []model.Reply{{Text: PromptEnd}}}
}

func (e *Engine) handleEnd(s *Session, text string) Result {
	end, err := ParseTimestamp(text)
	if err != nil {
		return e.reject(s, FieldEnd, ReasonFormat, text, MsgBadTimestamp)
	}
	if !end.After(s.Draft.Start) {
		return e.reject(s, FieldEnd, ReasonEndNotAfter, text, MsgEndNotAfter)
	}
	s.Draft.End = end
	s.State = AwaitingCost
	return Result{State: AwaitingCost, Replies: []model.Reply{e.costPrompt()}}
}

func (e *Engine) handleCost(s *Session, text string) Result {
	cost, err := ParseCost(text)
	switch {
	case errors.Is(err, errCostNegative):
		return e.reject(s, FieldCost, ReasonNegative, text, MsgNegativeCost)
	case err != nil:
		return e.reject(s, FieldCost, ReasonNotNumber, text, MsgBadCost)
	}
	s.Draft.Cost = cost
	s.State = AwaitingArea
	return Result{State: AwaitingArea, Replies: []model.Reply{e.areaPrompt(PromptArea)}}
}

func (e *Engine) handleArea(ctx context.Context, s *Session, in Input) (Result, error) {
	if !e.ValidArea(in.Text) {
		res := e.reject(s, FieldArea, ReasonUnknownArea, in.Text, "")
		res.Replies = []model.Reply{e.areaPrompt(MsgUnknownArea)}
		return res, nil
	}

	ev, err := e.creator.Create(ctx, model.NewEvent{
		HostID:          in.UserID,
		HostDisplayName: in.DisplayName,
		StartTime:       s.Draft.Start,
		EndTime:         s.Draft.End,
		Cost:            s.Draft.Cost,
		Area:            in.Text,
	})
	if err != nil {
		e.logger.Warn("failed to save hosted event",
			zap.Int64("user_id", in.UserID),
			zap.String("area", in.Text),
			zap.Error(err),
		)
		return Result{
			State:   AwaitingArea,
			Replies: []model.Reply{e.areaPrompt(PromptArea)},
		}, fmt.Errorf("failed to create event: %w", err)
	}

	s.State = Idle
	return Result{
		State:   Idle,
		Replies: []model.Reply{{Text: MsgPartyListed}},
		Event:   ev,
	}, nil
}

func (e *Engine) reject(s *Session, field, reason, input, text string) Result {
	return Result{
		State:   s.State,
		Replies: []model.Reply{{Text: text}},
		Invalid: &ValidationError{Field: field, Reason: reason, Input: input},
	}
}

// Cancel discards the user's session and reports whether one existed.
func (e *Engine) Cancel(userID int64) bool {
	ent := e.acquire(userID, false)
	if ent == nil {
		return false
	}
	defer ent.mu.Unlock()

	metrics.RecordTransition(ent.session.State.String(), Idle.String())
	e.remove(userID, ent)
	return true
}

// State returns the user's current step.
func (e *Engine) State(userID int64) State {
	ent := e.acquire(userID, false)
	if ent == nil {
		return Idle
	}
	defer ent.mu.Unlock()
	return ent.session.State
}

// Prompt returns the prompt for the user's current step, for re-display.
func (e *Engine) Prompt(userID int64) (model.Reply, bool) {
	switch e.State(userID) {
	case AwaitingStart:
		return model.Reply{Text: PromptStart}, true
	case AwaitingEnd:
		return model.Reply{Text: PromptEnd}, true
	case AwaitingCost:
		return e.costPrompt(), true
	case AwaitingArea:
		return e.areaPrompt(PromptArea), true
	default:
		return model.Reply{}, false
	}
}

// Active returns the number of users with a session in progress.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// PruneIdle drops sessions with no activity for longer than maxIdle. A
// session whose step is running is skipped.
func (e *Engine) PruneIdle(maxIdle time.Duration) int {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	pruned := 0
	for userID, ent := range e.sessions {
		if !ent.mu.TryLock() {
			continue
		}
		if now.Sub(ent.session.UpdatedAt) > maxIdle {
			metrics.RecordTransition(ent.session.State.String(), Idle.String())
			ent.removed = true
			delete(e.sessions, userID)
			pruned++
		}
		ent.mu.Unlock()
	}
	metrics.SessionsActive.Set(float64(len(e.sessions)))

	if pruned > 0 {
		e.logger.Info("pruned idle sessions", zap.Int("count", pruned))
	}
	return pruned
}

// acquire returns the user's entry with its lock held, creating it when
// create is set. It returns nil when the user has no session and create is
// not set.
func (e *Engine) acquire(userID int64, create bool) *entry {
	for {
		e.mu.Lock()
		ent, ok := e.sessions[userID]
		if !ok {
			if !create {
				e.mu.Unlock()
				return nil
			}
			ent = &entry{session: Session{UserID: userID}}
			e.sessions[userID] = ent
			metrics.SessionsActive.Set(float64(len(e.sessions)))
		}
		e.mu.Unlock()

		ent.mu.Lock()
		if !ent.removed {
			return ent
		}
		ent.mu.Unlock()
	}
}

// remove drops ent from the table. The caller holds ent.mu.
func (e *Engine) remove(userID int64, ent *entry) {
	ent.removed = true
	e.mu.Lock()
	if cur, ok := e.sessions[userID]; ok && cur == ent {
		delete(e.sessions, userID)
	}
	metrics.SessionsActive.Set(float64(len(e.sessions)))
	e.mu.Unlock()
}

func (e *Engine) costPrompt() model.Reply {
	return model.Reply{Text: fmt.Sprintf(costPromptFormat, e.currency)}
}

func (e *Engine) areaPrompt(text string) model.Reply {
	rows := make([][]string, len(e.areas))
	for i, a := range e.areas {
		rows[i] = []string{a}
	}
	return model.Reply{Text: text, Keyboard: rows}
}
