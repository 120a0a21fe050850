package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/hostbot/internal/middleware"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/internal/store"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

type fakeBot struct {
	got     []model.InboundMessage
	replies []model.Reply
	err     error
}

func (f *fakeBot) Handle(_ context.Context, msg model.InboundMessage) ([]model.Reply, error) {
	f.got = append(f.got, msg)
	return f.replies, f.err
}

type fakeEvents struct {
	events  []model.Event
	deleted int64
	err     error
}

func (f *fakeEvents) ListUpcoming(context.Context) ([]model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeEvents) Refresh(context.Context) (*model.RefreshResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.RefreshResponse{Deleted: f.deleted, Events: f.events, Total: len(f.events)}, nil
}

func newTestRouter(bot *fakeBot, events *fakeEvents, secret string, checks map[string]Checker) http.Handler {
	log := logger.NewNop()
	return NewRouter(RouterConfig{
		Logger:    log,
		JWTSecret: secret,
		Health:    NewHealthHandler(checks),
		Messages:  NewMessageHandler(bot, log),
		Events:    NewEventHandler(events, log),
	})
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSend_ReturnsReplies(t *testing.T) {
	bot := &fakeBot{replies: []model.Reply{{Text: "Enter END time (YYYY-MM-DD HH:MM):"}}}
	h := newTestRouter(bot, &fakeEvents{}, "", nil)

	rec := postJSON(t, h, "/api/v1/messages", model.ChatRequest{UserID: 7, DisplayName: "alice", Text: "2025-01-01 18:00"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Replies, 1)
	require.Empty(t, resp.Error)

	require.Len(t, bot.got, 1)
	require.Equal(t, int64(7), bot.got[0].ChatID)
	require.Equal(t, "alice", bot.got[0].DisplayName)
}

func TestSend_Validation(t *testing.T) {
	cases := map[string]interface{}{
		"bad user": model.ChatRequest{UserID: 0, Text: "Host"},
		"no text":  model.ChatRequest{UserID: 1},
		"not json": "Host",
		"extra":    map[string]interface{}{"user_id": 1, "text": "Host", "chat": "x"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			bot := &fakeBot{}
			rec := postJSON(t, newTestRouter(bot, &fakeEvents{}, "", nil), "/api/v1/messages", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Empty(t, bot.got)
		})
	}
}

func TestSend_PersistenceFailureIs503(t *testing.T) {
	bot := &fakeBot{
		replies: []model.Reply{{Text: "Couldn't save your party right now."}},
		err:     &store.PersistenceError{Op: store.OpAdd, Err: errors.New("connection refused")},
	}
	h := newTestRouter(bot, &fakeEvents{}, "", nil)

	rec := postJSON(t, h, "/api/v1/messages", model.ChatRequest{UserID: 7, Text: "Central"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Error)
	require.Len(t, resp.Replies, 1)
}

func TestListEvents(t *testing.T) {
	events := &fakeEvents{events: []model.Event{{ID: 1, HostID: 7, Area: "Central", Cost: decimal.NewFromInt(5)}}}
	h := newTestRouter(&fakeBot{}, events, "", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListEventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "Central", resp.Events[0].Area)
}

func TestListEvents_Failure(t *testing.T) {
	h := newTestRouter(&fakeBot{}, &fakeEvents{err: errors.New("down")}, "", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshEvents(t *testing.T) {
	h := newTestRouter(&fakeBot{}, &fakeEvents{deleted: 2}, "", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.RefreshResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, int64(2), resp.Deleted)
	require.Zero(t, resp.Total)
}

func TestAPI_RequiresTokenWhenConfigured(t *testing.T) {
	h := newTestRouter(&fakeBot{}, &fakeEvents{}, "secret", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "gateway",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: []string{middleware.ScopeEventsRead},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/events/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	failing := false
	checks := map[string]Checker{
		"database": func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		},
	}
	h := newTestRouter(&fakeBot{}, &fakeEvents{}, "", checks)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	failing = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "database unavailable")
}
