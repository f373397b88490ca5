package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demoforge/mirror/internal/config"
	"github.com/demoforge/mirror/internal/coverage"
	"github.com/demoforge/mirror/internal/events"
	"github.com/demoforge/mirror/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Database, *events.Broker) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	broker := events.NewBroker(nil)
	return New(config.DefaultConfig(), db, broker, nil), db, broker
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusUnknownRun(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/runs/nope/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFromDatabase(t *testing.T) {
	s, db, _ := newTestServer(t)
	require.NoError(t, db.CreateRun(&storage.Run{
		RunID:   "run-1",
		SeedURL: "https://example.com/",
		Phase:   "completed",
	}))
	require.NoError(t, db.UpdateRunProgress(&storage.Run{
		RunID: "run-1", Phase: "completed", PagesCrawled: 9,
		TotalKnownURLs: 12, CoveragePct: 75,
	}))

	w := doRequest(t, s, http.MethodGet, "/api/runs/run-1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap coverage.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, coverage.PhaseCompleted, snap.Phase)
	assert.Equal(t, 9, snap.PagesCrawled)
	assert.Equal(t, 75.0, snap.CoveragePct)
}

func TestSummaryFromDatabase(t *testing.T) {
	s, db, _ := newTestServer(t)
	require.NoError(t, db.CreateRun(&storage.Run{
		RunID:   "run-1",
		SeedURL: "https://example.com/",
		Phase:   "crawling",
	}))
	require.NoError(t, db.FinishRun("run-1", "completed", "page budget reached"))

	w := doRequest(t, s, http.MethodGet, "/api/runs/run-1/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary coverage.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, coverage.PhaseCompleted, summary.Phase)
	assert.Equal(t, "page budget reached", summary.StopReason)
	assert.GreaterOrEqual(t, summary.ElapsedSeconds, 0.0)
}

func TestListRunsEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Runs []map[string]interface{} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Empty(t, payload.Runs)
}

func TestStartRunRequiresSeedURL(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/api/runs", `{"max_pages": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRunRejectsInvalidSeed(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodPost, "/api/runs", `{"seed_url": "::not a url::"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanupDeletesPersistedRun(t *testing.T) {
	s, db, _ := newTestServer(t)
	require.NoError(t, db.CreateRun(&storage.Run{RunID: "run-1", SeedURL: "https://example.com/"}))

	w := doRequest(t, s, http.MethodDelete, "/api/runs/run-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	run, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSubscribeStreamsEvents(t *testing.T) {
	s, _, broker := newTestServer(t)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/runs/run-1/subscribe"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the server a moment to register the subscription.
	require.Eventually(t, func() bool {
		return broker.SubscriberCount("run-1") == 1
	}, time.Second, 10*time.Millisecond)

	tracker := coverage.New("run-1")
	broker.PublishSnapshot("run-1", tracker.Snapshot())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string            `json:"type"`
		Data coverage.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, events.TypeCoverageUpdate, msg.Type)
	assert.Equal(t, "run-1", msg.Data.RunID)
}
