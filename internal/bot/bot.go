// Package bot routes chat messages to commands and the hosting flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/conversation"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/internal/presenter"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

// Commands and quick-reply choices.
const (
	CmdStart      = "/start"
	CmdCancel     = "/cancel"
	ChoiceRefresh = "Refresh"
	ChoiceHost    = "Host"
)

// Notice texts.
const (
	MsgMainMenu   = "Main Menu"
	MsgCancelled  = "Operation cancelled"
	MsgRefreshed  = "List refreshed ✅"
	MsgIdleHint   = "Tap Host to list a party or Refresh to see what's on."
	MsgSaveFailed = "Couldn't save your party right now. Pick the area again to retry."
	MsgListFailed = "Couldn't load parties right now. Please try again later."
)

// Flow is the hosting conversation.
type Flow interface {
	Begin(userID int64) conversation.Result
	Handle(ctx context.Context, in conversation.Input) (conversation.Result, error)
	Cancel(userID int64) bool
	Prompt(userID int64) (model.Reply, bool)
}

// Events lists and refreshes hosted events.
type Events interface {
	ListUpcoming(ctx context.Context) ([]model.Event, error)
	Refresh(ctx context.Context) (*model.RefreshResponse, error)
}

// Options configures a Bot.
type Options struct {
	Name string
}

// Bot turns one inbound message into its replies.
type Bot struct {
	flow      Flow
	events    Events
	presenter *presenter.Presenter
	name      string
	logger    *logger.Logger
}

// New creates a bot.
func New(flow Flow, events Events, p *presenter.Presenter, opts Options, log *logger.Logger) (*Bot, error) {
	if flow == nil {
		return nil, fmt.Errorf("flow must not be nil")
	}
	if events == nil {
		return nil, fmt.Errorf("events must not be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("presenter must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "HostOrTravelBot"
	}
	return &Bot{
		flow:      flow,
		events:    events,
		presenter: p,
		name:      opts.Name,
		logger:    log,
	}, nil
}

// Handle routes msg and returns the replies to send, in order. Replies are
// returned even when err is non-nil; err reports a persistence failure the
// user has already been told about.
func (b *Bot) Handle(ctx context.Context, msg model.InboundMessage) ([]model.Reply, error) {
	switch command(msg.Text) {
	case CmdStart:
		return b.showMenu(ctx, msg.UserID, fmt.Sprintf("Welcome to %s!", b.name))
	case CmdCancel:
		b.flow.Cancel(msg.UserID)
		return b.showMenu(ctx, msg.UserID, MsgCancelled)
	}

	switch msg.Text {
	case ChoiceRefresh:
		return b.refresh(ctx, msg.UserID)
	case ChoiceHost:
		return b.flow.Begin(msg.UserID).Replies, nil
	}

	res, err := b.flow.Handle(ctx, conversation.Input{
		UserID:      msg.UserID,
		DisplayName: msg.DisplayName,
		Text:        msg.Text,
	})
	switch {
	case errors.Is(err, conversation.ErrNoSession):
		return []model.Reply{mainMenu(MsgIdleHint)}, nil
	case err != nil:
		replies := append([]model.Reply{{Text: MsgSaveFailed}}, res.Replies...)
		return replies, err
	}

	if res.Event == nil {
		return res.Replies, nil
	}

	replies := append(res.Replies, mainMenu(MsgMainMenu))
	listing, err := b.listing(ctx)
	return append(replies, listing...), err
}

// showMenu sends the menu and the listing. A session in progress is left
// alone and its prompt is shown again at the end.
func (b *Bot) showMenu(ctx context.Context, userID int64, text string) ([]model.Reply, error) {
	replies := []model.Reply{mainMenu(text)}
	listing, err := b.listing(ctx)
	replies = append(replies, listing...)
	return b.withPrompt(userID, replies), err
}

func (b *Bot) refresh(ctx context.Context, userID int64) ([]model.Reply, error) {
	resp, err := b.events.Refresh(ctx)
	if err != nil {
		b.logger.Error("refresh failed", zap.Int64("user_id", userID), zap.Error(err))
		return b.withPrompt(userID, []model.Reply{mainMenu(MsgListFailed)}), err
	}

	replies := []model.Reply{mainMenu(MsgRefreshed)}
	replies = append(replies, b.presenter.Listing(resp.Events)...)
	return b.withPrompt(userID, replies), nil
}

func (b *Bot) listing(ctx context.Context) ([]model.Reply, error) {
	events, err := b.events.ListUpcoming(ctx)
	if err != nil {
		b.logger.Error("failed to list events", zap.Error(err))
		return []model.Reply{{Text: MsgListFailed}}, err
	}
	return b.presenter.Listing(events), nil
}

func (b *Bot) withPrompt(userID int64, replies []model.Reply) []model.Reply {
	if prompt, ok := b.flow.Prompt(userID); ok {
		replies = append(replies, prompt)
	}
	return replies
}

func mainMenu(text string) model.Reply {
	return model.Reply{
		Text:            text,
		Keyboard:        [][]string{{ChoiceRefresh, ChoiceHost}},
		OneTimeKeyboard: true,
	}
}

// command extracts a slash command, dropping any "@botname" suffix and
// arguments. It returns "" for plain text.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}
