package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/hostbot/internal/clock"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

var testAreas = []string{"Admiralty", "Central", "Mong Kok"}

type fakeCreator struct {
	mu      sync.Mutex
	created []model.NewEvent
	err     error
	block   map[int64]chan struct{}
	entered chan int64
}

func (f *fakeCreator) Create(ctx context.Context, in model.NewEvent) (*model.Event, error) {
	f.mu.Lock()
	wait := f.block[in.HostID]
	f.mu.Unlock()
	if wait != nil {
		if f.entered != nil {
			f.entered <- in.HostID
		}
		<-wait
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	ev := in.Record()
	ev.ID = int64(len(f.created))
	return &ev, nil
}

func (f *fakeCreator) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCreator) calls() []model.NewEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.NewEvent, len(f.created))
	copy(out, f.created)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T) (*Engine, *fakeCreator, *fakeClock) {
	t.Helper()
	creator := &fakeCreator{block: map[int64]chan struct{}{}}
	clk := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	e, err := NewEngine(creator, Options{Areas: testAreas, Currency: "TON", Clock: clk}, logger.NewNop())
	require.NoError(t, err)
	return e, creator, clk
}

func step(t *testing.T, e *Engine, userID int64, text string) Result {
	t.Helper()
	res, err := e.Handle(context.Background(), Input{UserID: userID, DisplayName: "alice", Text: text})
	require.NoError(t, err)
	return res
}

func texts(replies []model.Reply) []string {
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.Text
	}
	return out
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, Options{Areas: testAreas}, nil)
	require.Error(t, err)

	_, err = NewEngine(&fakeCreator{}, Options{}, nil)
	require.Error(t, err)

	e, err := NewEngine(&fakeCreator{}, Options{Areas: testAreas}, nil)
	require.NoError(t, err)
	p := e.costPrompt()
	require.Equal(t, "Enter COST per head (TON):", p.Text)
}

func TestEngine_HostsCentralParty(t *testing.T) {
	e, creator, _ := newTestEngine(t)

	res := e.Begin(7)
	require.Equal(t, AwaitingStart, res.State)
	require.Equal(t, []string{PromptStart}, texts(res.Replies))
	require.True(t, res.Replies[0].RemoveKeyboard)

	res = step(t, e, 7, "2025-01-01 18:00")
	require.Equal(t, AwaitingEnd, res.State)
	require.Equal(t, []string{PromptEnd}, texts(res.Replies))

	res = step(t, e, 7, "2025-01-01 22:00")
	require.Equal(t, AwaitingCost, res.State)
	require.Equal(t, []string{"Enter COST per head (TON):"}, texts(res.Replies))

	res = step(t, e, 7, "5")
	require.Equal(t, AwaitingArea, res.State)
	require.Equal(t, PromptArea, res.Replies[0].Text)
	require.Equal(t, testAreas, res.Replies[0].Choices())

	res = step(t, e, 7, "Central")
	require.Equal(t, Idle, res.State)
	require.Equal(t, []string{MsgPartyListed}, texts(res.Replies))
	require.NotNil(t, res.Event)
	require.Equal(t, "Central", res.Event.Area)

	calls := creator.calls()
	require.Len(t, calls, 1)
	got := calls[0]
	require.Equal(t, int64(7), got.HostID)
	require.Equal(t, "alice", got.HostDisplayName)
	require.Equal(t, time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC), got.StartTime)
	require.Equal(t, time.Date(2025, 1, 1, 22, 0, 0, 0, time.UTC), got.EndTime)
	require.True(t, got.Cost.Equal(decimal.NewFromInt(5)))
	require.Equal(t, "Central", got.Area)

	require.Equal(t, Idle, e.State(7))
	require.Zero(t, e.Active())
}

func TestHandle_IdleUserHasNoSession(t *testing.T) {
	e, creator, _ := newTestEngine(t)

	res, err := e.Handle(context.Background(), Input{UserID: 1, Text: "2025-01-01 18:00"})
	require.ErrorIs(t, err, ErrNoSession)
	require.Equal(t, Idle, res.State)
	require.Zero(t, e.Active())
	require.Empty(t, creator.calls())
}

func TestHandle_StartTimestampRejected(t *testing.T) {
	cases := []string{"", "tomorrow", "2025/01/01 18:00", "2025-01-01", "2025-13-01 18:00", "2025-01-01 25:00"}

	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			e.Begin(1)

			res := step(t, e, 1, input)
			require.Equal(t, AwaitingStart, res.State)
			require.Equal(t, []string{MsgBadTimestamp}, texts(res.Replies))
			require.NotNil(t, res.Invalid)
			require.Equal(t, FieldStart, res.Invalid.Field)
			require.Equal(t, ReasonFormat, res.Invalid.Reason)
			require.Equal(t, input, res.Invalid.Input)
		})
	}
}

func TestHandle_TimestampWhitespaceTrimmed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Begin(1)

	res := step(t, e, 1, "  2025-01-01 18:00\n")
	require.Equal(t, AwaitingEnd, res.State)
	require.Nil(t, res.Invalid)
}

func TestHandle_EndMustFollowStart(t *testing.T) {
	cases := map[string]string{
		"equal":  "2025-01-01 18:00",
		"before": "2025-01-01 17:59",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			e.Begin(1)
			step(t, e, 1, "2025-01-01 18:00")

			res := step(t, e, 1, input)
			require.Equal(t, AwaitingEnd, res.State)
			require.Equal(t, []string{MsgEndNotAfter}, texts(res.Replies))
			require.Equal(t, ReasonEndNotAfter, res.Invalid.Reason)

			res = step(t, e, 1, "2025-01-01 18:01")
			require.Equal(t, AwaitingCost, res.State)
		})
	}
}

func TestHandle_EndFormatRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Begin(1)
	step(t, e, 1, "2025-01-01 18:00")

	res := step(t, e, 1, "22:00")
	require.Equal(t, AwaitingEnd, res.State)
	require.Equal(t, []string{MsgBadTimestamp}, texts(res.Replies))
	require.Equal(t, FieldEnd, res.Invalid.Field)
}

func TestHandle_Cost(t *testing.T) {
	cases := []struct {
		input  string
		state  State
		reply  string
		reason string
		amount string
	}{
		{input: "5", state: AwaitingArea, reply: PromptArea, amount: "5"},
		{input: " 5.50 ", state: AwaitingArea, reply: PromptArea, amount: "5.5"},
		{input: "0", state: AwaitingArea, reply: PromptArea, amount: "0"},
		{input: "abc", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "NaN", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "Inf", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "-1", state: AwaitingCost, reply: MsgNegativeCost, reason: ReasonNegative},
		{input: "-0.01", state: AwaitingCost, reply: MsgNegativeCost, reason: ReasonNegative},
		{input: "1e50000000", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "1e999999999", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "5E2", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "-1e9", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "+5", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "1234567890123", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "5.", state: AwaitingCost, reply: MsgBadCost, reason: ReasonNotNumber},
		{input: "999999999999.999999", state: AwaitingArea, reply: PromptArea, amount: "999999999999.999999"},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			e, creator, _ := newTestEngine(t)
			e.Begin(1)
			step(t, e, 1, "2025-01-01 18:00")
			step(t, e, 1, "2025-01-01 22:00")

			res := step(t, e, 1, tc.input)
			require.Equal(t, tc.state, res.State)
			require.Equal(t, tc.reply, res.Replies[0].Text)

			if tc.reason != "" {
				require.Equal(t, FieldCost, res.Invalid.Field)
				require.Equal(t, tc.reason, res.Invalid.Reason)
				return
			}

			require.Nil(t, res.Invalid)
			step(t, e, 1, "Central")
			calls := creator.calls()
			require.Len(t, calls, 1)
			require.True(t, calls[0].Cost.Equal(decimal.RequireFromString(tc.amount)))
		})
	}
}

func TestHandle_AreaMustMatchExactly(t *testing.T) {
	for _, input := range []string{"central", " Central", "Central ", "Narnia", ""} {
		t.Run(input, func(t *testing.T) {
			e, creator, _ := newTestEngine(t)
			e.Begin(1)
			step(t, e, 1, "2025-01-01 18:00")
			step(t, e, 1, "2025-01-01 22:00")
			step(t, e, 1, "5")

			res := step(t, e, 1, input)
			require.Equal(t, AwaitingArea, res.State)
			require.Equal(t, MsgUnknownArea, res.Replies[0].Text)
			require.Equal(t, testAreas, res.Replies[0].Choices())
			require.Equal(t, ReasonUnknownArea, res.Invalid.Reason)
			require.Empty(t, creator.calls())
		})
	}
}

func TestHandle_PersistenceFailureKeepsDraft(t *testing.T) {
	e, creator, _ := newTestEngine(t)
	e.Begin(1)
	step(t, e, 1, "2025-01-01 18:00")
	step(t, e, 1, "2025-01-01 22:00")
	step(t, e, 1, "5")

	cause := errors.New("database is down")
	creator.setErr(cause)

	res, err := e.Handle(context.Background(), Input{UserID: 1, Text: "Central"})
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrNoSession)
	require.Equal(t, AwaitingArea, res.State)
	require.Equal(t, testAreas, res.Replies[0].Choices())
	require.Nil(t, res.Event)
	require.Equal(t, AwaitingArea, e.State(1))

	creator.setErr(nil)
	res = step(t, e, 1, "Mong Kok")
	require.Equal(t, Idle, res.State)

	calls := creator.calls()
	require.Len(t, calls, 1)
	require.Equal(t, time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC), calls[0].StartTime)
	require.Equal(t, "Mong Kok", calls[0].Area)
}

func TestBegin_ResetsSessionInProgress(t *testing.T) {
	e, creator, _ := newTestEngine(t)
	e.Begin(1)
	step(t, e, 1, "2025-01-01 18:00")
	step(t, e, 1, "2025-01-01 22:00")

	res := e.Begin(1)
	require.Equal(t, AwaitingStart, res.State)
	require.Equal(t, 1, e.Active())

	// The earlier start no longer constrains the end.
	step(t, e, 1, "2025-02-01 09:00")
	res = step(t, e, 1, "2025-02-01 10:00")
	require.Equal(t, AwaitingCost, res.State)
	step(t, e, 1, "1")
	step(t, e, 1, "Admiralty")

	calls := creator.calls()
	require.Len(t, calls, 1)
	require.Equal(t, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), calls[0].StartTime)
}

func TestCancel(t *testing.T) {
	e, creator, _ := newTestEngine(t)

	require.False(t, e.Cancel(1))

	e.Begin(1)
	step(t, e, 1, "2025-01-01 18:00")
	require.True(t, e.Cancel(1))
	require.Equal(t, Idle, e.State(1))
	require.Zero(t, e.Active())

	_, err := e.Handle(context.Background(), Input{UserID: 1, Text: "2025-01-01 22:00"})
	require.ErrorIs(t, err, ErrNoSession)
	require.Empty(t, creator.calls())
}

func TestPrompt(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, ok := e.Prompt(1)
	require.False(t, ok)

	e.Begin(1)
	p, ok := e.Prompt(1)
	require.True(t, ok)
	require.Equal(t, PromptStart, p.Text)

	step(t, e, 1, "2025-01-01 18:00")
	p, _ = e.Prompt(1)
	require.Equal(t, PromptEnd, p.Text)

	step(t, e, 1, "2025-01-01 22:00")
	p, _ = e.Prompt(1)
	require.Equal(t, "Enter COST per head (TON):", p.Text)

	step(t, e, 1, "5")
	p, _ = e.Prompt(1)
	require.Equal(t, PromptArea, p.Text)
	require.Equal(t, testAreas, p.Choices())
}

func TestSessionsAreIndependentPerUser(t *testing.T) {
	e, creator, _ := newTestEngine(t)

	e.Begin(1)
	e.Begin(2)
	step(t, e, 1, "2025-01-01 18:00")

	require.Equal(t, AwaitingEnd, e.State(1))
	require.Equal(t, AwaitingStart, e.State(2))

	e.Cancel(2)
	step(t, e, 1, "2025-01-01 22:00")
	step(t, e, 1, "5")
	step(t, e, 1, "Central")
	require.Len(t, creator.calls(), 1)
}

func TestPruneIdle(t *testing.T) {
	e, _, clk := newTestEngine(t)

	e.Begin(1)
	clk.Advance(20 * time.Minute)
	e.Begin(2)
	clk.Advance(15 * time.Minute)

	require.Equal(t, 1, e.PruneIdle(30*time.Minute))
	require.Equal(t, Idle, e.State(1))
	require.Equal(t, AwaitingStart, e.State(2))
	require.Equal(t, 1, e.Active())
}

func TestStoreCallDoesNotBlockOtherUsers(t *testing.T) {
	e, creator, clk := newTestEngine(t)
	release := make(chan struct{})
	creator.block[1] = release
	creator.entered = make(chan int64, 1)

	e.Begin(1)
	step(t, e, 1, "2025-01-01 18:00")
	step(t, e, 1, "2025-01-01 22:00")
	step(t, e, 1, "5")

	done := make(chan Result, 1)
	go func() {
		res, _ := e.Handle(context.Background(), Input{UserID: 1, Text: "Central"})
		done <- res
	}()
	require.Equal(t, int64(1), <-creator.entered)

	// User 2 completes a whole flow while user 1's commit is stuck.
	e.Begin(2)
	step(t, e, 2, "2025-01-02 18:00")
	step(t, e, 2, "2025-01-02 20:00")
	step(t, e, 2, "0")
	res := step(t, e, 2, "Admiralty")
	require.Equal(t, Idle, res.State)

	// Pruning skips the session whose step is running.
	clk.Advance(time.Hour)
	require.Zero(t, e.PruneIdle(time.Minute))

	close(release)
	select {
	case res := <-done:
		require.Equal(t, Idle, res.State)
	case <-time.After(5 * time.Second):
		t.Fatal("user 1 step never finished")
	}
	require.Len(t, creator.calls(), 2)
}

func TestParseCost_RejectsNonDigitForms(t *testing.T) {
	for _, in := range []string{"NaN", "Inf", "-Inf", "+Inf", "1e", "1e3", "1E-2", "1e999999999", "0x10", "1_000", ".5"} {
		_, err := ParseCost(in)
		require.Error(t, err, in)
	}
}

func TestNewEngine_DefaultClock(t *testing.T) {
	e, err := NewEngine(&fakeCreator{}, Options{Areas: testAreas}, nil)
	require.NoError(t, err)
	_, ok := e.clock.(clock.Wall)
	require.True(t, ok)
}

func TestParseCost_NegativeZeroIsZero(t *testing.T) {
	d, err := ParseCost("-0")
	require.NoError(t, err)
	require.True(t, d.IsZero())
}
