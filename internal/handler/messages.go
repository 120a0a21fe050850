package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/middleware"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/internal/store"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

// ChatBot answers one inbound message.
type ChatBot interface {
	Handle(ctx context.Context, msg model.InboundMessage) ([]model.Reply, error)
}

// MessageHandler feeds gateway messages through the bot.
type MessageHandler struct {
	bot    ChatBot
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(bot ChatBot, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		bot:    bot,
		logger: log,
	}
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateDisplayName(req.DisplayName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	replies, err := h.bot.Handle(ctx, req.Inbound())
	if replies == nil {
		replies = []model.Reply{}
	}
	if err != nil {
		h.logger.WithUser(req.UserID, middleware.GetCorrelationID(ctx)).
			Error("failed to handle message", zap.Error(err))

		status := http.StatusInternalServerError
		if store.IsPersistenceError(err) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, &model.ChatResponse{
			Replies: replies,
			Error:   "event storage unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, &model.ChatResponse{Replies: replies})
}
