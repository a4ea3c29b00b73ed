package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
	"github.com/kandev/taskboard/internal/user/controller"
	"github.com/kandev/taskboard/internal/user/dto"
	"github.com/kandev/taskboard/internal/user/service"
	"github.com/kandev/taskboard/internal/user/store"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

type recordingCloser struct {
	boards  []string
	sockets []string
}

func (r *recordingCloser) Close(ctx context.Context, sessionID string) error {
	r.boards = append(r.boards, sessionID)
	return nil
}

func (r *recordingCloser) CloseSession(sessionID string) {
	r.sockets = append(r.sockets, sessionID)
}

type harness struct {
	router     *gin.Engine
	dispatcher *ws.Dispatcher
	closer     *recordingCloser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	users := service.NewService(store.NewMemoryRepository(), nil, log)
	manager := auth.NewManager(users, session.NewMemoryStore(), auth.NewIssuer("test-secret", time.Hour), log)
	closer := &recordingCloser{}
	ctrl := controller.NewController(users, manager, closer, closer, log)

	router := gin.New()
	dispatcher := ws.NewDispatcher()
	RegisterRoutes(router, auth.RequireSession(manager), dispatcher, ctrl, log)
	return &harness{router: router, dispatcher: dispatcher, closer: closer}
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestSignupLoginLogout(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/auth/signup", "", dto.SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var signup dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signup))
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "ada@example.com", signup.User.Email)

	rec = h.do(http.MethodPost, "/api/v1/auth/signup", "", dto.SignupRequest{Email: "ada@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = h.do(http.MethodGet, "/api/v1/user", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, signup.User.ID, me.User.ID)

	rec = h.do(http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{login.Session.ID}, h.closer.boards)
	assert.Equal(t, []string{login.Session.ID}, h.closer.sockets)

	rec = h.do(http.MethodGet, "/api/v1/user", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/user", signup.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other sessions stay valid")
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/signup", "", dto.SignupRequest{Email: "ada@example.com", Password: "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWSGetUserWithoutSession(t *testing.T) {
	h := newHarness(t)
	req, err := ws.NewRequest("1", ws.ActionUserGet, nil)
	require.NoError(t, err)
	resp, err := h.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	p, ok := resp.DecodeError()
	require.True(t, ok)
	assert.Equal(t, ws.ErrorCodeUnauthorized, p.Code)
}
