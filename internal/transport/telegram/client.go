// Package telegram connects the bot to the Telegram Bot API using long
// polling.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

// Submitter accepts inbound messages for handling.
type Submitter interface {
	Submit(msg model.InboundMessage) error
}

// api is the part of the Bot API client used for sending.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds Telegram connection settings.
type Config struct {
	Token       string
	Debug       bool
	PollTimeout int
}

// Client polls Telegram for updates and sends replies.
type Client struct {
	bot         *tgbotapi.BotAPI
	api         api
	pollTimeout int
	logger      *logger.Logger
}

// New connects to the Bot API and verifies the token.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	bot.Debug = cfg.Debug

	log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Client{
		bot:         bot,
		api:         bot,
		pollTimeout: cfg.PollTimeout,
		logger:      log.With(zap.String("transport", "telegram")),
	}, nil
}

// Run long-polls for updates and hands each text message to sub until ctx is
// done.
func (c *Client) Run(ctx context.Context, sub Submitter) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram update channel closed")
			}
			msg, ok := toInbound(update)
			if !ok {
				continue
			}
			if err := sub.Submit(msg); err != nil {
				c.logger.Warn("dropped inbound message", zap.Int64("user_id", msg.UserID), zap.Error(err))
			}
		}
	}
}

// Send delivers one reply to a chat.
func (c *Client) Send(_ context.Context, chatID int64, reply model.Reply) error {
	if _, err := c.api.Send(renderReply(chatID, reply)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// toInbound extracts a text message from an update. Edits, callbacks and
// media are ignored.
func toInbound(update tgbotapi.Update) (model.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return model.InboundMessage{}, false
	}
	return model.InboundMessage{
		UserID:      m.From.ID,
		ChatID:      m.Chat.ID,
		DisplayName: m.From.UserName,
		Text:        m.Text,
	}, true
}

// renderReply maps a reply onto a Bot API message. A contact link becomes an
// inline URL button; choices become a reply keyboard.
func renderReply(chatID int64, reply model.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)

	switch {
	case reply.Link != nil:
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(reply.Link.Label, reply.Link.URL),
			),
		)
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, choice := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(choice))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		kb.OneTimeKeyboard = reply.OneTimeKeyboard
		msg.ReplyMarkup = kb
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}

	return msg
}
