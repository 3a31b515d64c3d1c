package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"project-hub/auth"
	"project-hub/domain"
	"project-hub/infrastructure/http/server"
	"project-hub/observability"
	"project-hub/repositories"
	"project-hub/runtime"
	"project-hub/runtime/workers"
	"project-hub/services"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server       *httptest.Server
	registry     *runtime.Registry
	serviceToken string
	tokens       *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	registry := runtime.NewRegistry()
	deliveries := make(chan domain.Delivery, 64)
	go func() { _ = workers.NewEventFanout(log, registry, deliveries, metrics).Run(ctx) }()

	membership := runtime.NewMembership(log, registry, repositories.NewRoomRepository(db))
	realtime := services.NewRealtimeService(log, registry, membership, runtime.NewBroadcaster(log, registry, deliveries, metrics))
	scheduler := runtime.NewScheduler(log, repositories.NewJobRepository(db, log, 0), metrics, 3)
	tokens := auth.NewTokenManager("test-secret")

	srv := server.NewServer(log, realtime, services.NewReminderService(log, scheduler), tokens, reg, nil,
		server.Config{ConnectionBufferSize: 16, WriteTimeout: time.Second})
	ts := httptest.NewServer(srv.Router(ctx))
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)

	serviceToken, err := tokens.GenerateToken("task-service", []string{auth.RoleService}, time.Hour)
	require.NoError(t, err)
	return &testEnv{server: ts, registry: registry, serviceToken: serviceToken, tokens: tokens}
}

func (e *testEnv) call(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	r, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := e.tokens.GenerateToken(userID, nil, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool {
		_, ok := e.registry.Lookup(domain.UserID(userID))
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestWebsocket_Requires_Token(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestInternalApi_Requires_Service_Role(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	userToken, err := env.tokens.GenerateToken("u1", nil, time.Hour)
	req.NoError(err)
	body := map[string]any{"event": "new-task"}

	resp := env.call(t, http.MethodPost, "/v1/rooms/p1/events", "", body)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = env.call(t, http.MethodPost, "/v1/rooms/p1/events", userToken, body)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestRoomEvent_Reaches_Joined_Connection(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	// Given u1 is connected and joins project p1
	client := env.dial(t, "u1")
	resp := env.call(t, http.MethodPost, "/v1/users/u1/rooms", env.serviceToken, map[string]string{"roomId": "p1"})
	req.Equal(http.StatusNoContent, resp.StatusCode)

	// When the project room receives an event
	resp = env.call(t, http.MethodPost, "/v1/rooms/p1/events", env.serviceToken, map[string]any{
		"event":   "new-task",
		"payload": map[string]string{"title": "Write docs"},
	})
	req.Equal(http.StatusAccepted, resp.StatusCode)

	// Then the client gets it with the payload untouched
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	req.NoError(client.ReadJSON(&got))
	req.Equal("new-task", got.Event)
	req.JSONEq(`{"title":"Write docs"}`, string(got.Data))
}

func TestUserEvent_Reaches_Connection(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	client := env.dial(t, "u2")

	resp := env.call(t, http.MethodPost, "/v1/users/u2/events", env.serviceToken, map[string]any{
		"event":   "assigned-task",
		"payload": map[string]string{"taskId": "T1"},
	})
	req.Equal(http.StatusAccepted, resp.StatusCode)

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	req.NoError(client.ReadJSON(&got))
	req.Equal("assigned-task", got["event"])
}

func TestNotify_Rejects_Unknown_Event(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.call(t, http.MethodPost, "/v1/rooms/p1/events", env.serviceToken, map[string]any{"event": "task-created"})
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = env.call(t, http.MethodPost, "/v1/rooms/p1/events", env.serviceToken, map[string]any{})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestReminder_Endpoints(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	body := func(dueAt time.Time) map[string]any {
		return map[string]any{
			"recipientAddress": "alice@example.com",
			"taskTitle":        "Write docs",
			"dueAt":            dueAt.UTC().Format(time.RFC3339),
		}
	}

	// Scheduled when the due date is far enough
	resp := env.call(t, http.MethodPut, "/v1/reminders/T1", env.serviceToken, body(time.Now().Add(2*time.Hour)))
	req.Equal(http.StatusCreated, resp.StatusCode)
	var scheduled map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&scheduled))
	req.Equal("reminder-T1", scheduled["jobId"])
	req.Equal("scheduled", scheduled["result"])

	// Skipped when it is closer than the lead time
	resp = env.call(t, http.MethodPut, "/v1/reminders/T2", env.serviceToken, body(time.Now().Add(10*time.Minute)))
	req.Equal(http.StatusOK, resp.StatusCode)

	// Cancel is idempotent
	resp = env.call(t, http.MethodDelete, "/v1/reminders/T1", env.serviceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var cancelled map[string]bool
	req.NoError(json.NewDecoder(resp.Body).Decode(&cancelled))
	req.True(cancelled["cancelled"])

	resp = env.call(t, http.MethodDelete, "/v1/reminders/T1", env.serviceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NoError(json.NewDecoder(resp.Body).Decode(&cancelled))
	req.False(cancelled["cancelled"])

	// Invalid input
	invalid := body(time.Now().Add(2 * time.Hour))
	invalid["recipientAddress"] = "alice"
	resp = env.call(t, http.MethodPut, "/v1/reminders/T3", env.serviceToken, invalid)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestHealth_And_Metrics(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp := env.call(t, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	resp = env.call(t, http.MethodGet, "/metrics", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
}
