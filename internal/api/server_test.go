package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edlog/internal/event"
	"edlog/internal/store"
)

// newTestServer wires the handler to a real SQLite store on a temp file.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(NewServer(st))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// startSession starts a session through the API and returns its id.
func startSession(t *testing.T, srv *httptest.Server, language, initialCode string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/session/start", map[string]string{
		"language":    language,
		"initialCode": initialCode,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	require.Equal(t, true, got["ok"])
	id, _ := got["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/health")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", got["status"])
}

func TestStartSession_RequiresLanguage(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/session/start", map[string]string{"initialCode": "x"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAppend_EmptyBatchRejected(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, "python", "")

	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": id,
		"events":    []event.Event{},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAppend_UnknownTypeRejected(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, "python", "")

	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": id,
		"events":    []map[string]any{{"timestamp": 0, "type": "TELEPORT"}},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAppend_UnknownSessionNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": "no-such-session",
		"events": []event.Event{{
			Timestamp: 0,
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range:        event.Range{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1},
				InsertedText: "x",
			}},
		}},
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, "python", "# start")

	events := []event.Event{
		{
			Timestamp: 100,
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range:        event.Range{StartLine: 1, StartCol: 8, EndLine: 1, EndCol: 8},
				InsertedText: "x",
			}},
		},
		{Timestamp: 200, Type: event.TypeLineUpdate, Line: 1, Content: "# startx"},
	}
	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": id,
		"events":    events,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	appended := decode[map[string]any](t, resp)
	assert.Equal(t, map[string]any{"ok": true}, appended)

	resp = getJSON(t, srv.URL+"/session/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decode[sessionResponse](t, resp)

	assert.Equal(t, id, sess.SessionID)
	assert.Equal(t, "python", sess.Language)
	assert.Equal(t, "# start", sess.InitialCode)
	// The EDIT lands in the flat log; the LINE_UPDATE is condensed into the
	// per-line summary together with the seeded initial content.
	require.Len(t, sess.Events, 1)
	assert.Equal(t, event.TypeEdit, sess.Events[0].Type)
	line1 := sess.LineHistorySummary[1]
	assert.Equal(t, 2, line1.Versions)
	require.NotNil(t, line1.LastContent)
	assert.Equal(t, "# startx", *line1.LastContent)
	assert.Equal(t, int64(200), line1.LastTimestamp)
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/session/missing")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStopSession_EndTimeSetOnce(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, "go", "")

	resp := postJSON(t, srv.URL+"/session/stop", map[string]string{"sessionId": id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[map[string]any](t, resp)

	resp = postJSON(t, srv.URL+"/session/stop", map[string]string{"sessionId": id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[map[string]any](t, resp)

	assert.Equal(t, true, first["ok"])
	assert.Equal(t, first["endTime"], second["endTime"])
}

func TestStopSession_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/session/stop", map[string]string{"sessionId": "missing"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessions_RecencyAndEventCount(t *testing.T) {
	srv := newTestServer(t)
	older := startSession(t, srv, "python", "")
	newer := startSession(t, srv, "go", "")

	// Appending to the older session bumps its recency above the newer one.
	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": older,
		"events": []event.Event{{
			Timestamp: 0,
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range:        event.Range{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1},
				InsertedText: "x",
			}},
		}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listResponse](t, resp)

	assert.True(t, list.Ok)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, older, list.Sessions[0].SessionID)
	assert.Equal(t, int64(1), list.Sessions[0].EventCount)
	assert.Equal(t, newer, list.Sessions[1].SessionID)
	assert.Equal(t, int64(0), list.Sessions[1].EventCount)
}

func TestListSessions_LimitApplied(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		startSession(t, srv, fmt.Sprintf("lang-%d", i), "")
	}

	resp := getJSON(t, srv.URL+"/sessions?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listResponse](t, resp)
	assert.Len(t, list.Sessions, 2)

	resp = getJSON(t, srv.URL+"/sessions?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCleanupEmpty_RemovesEventlessSessions(t *testing.T) {
	srv := newTestServer(t)
	empty := startSession(t, srv, "python", "")
	active := startSession(t, srv, "python", "")
	resp := postJSON(t, srv.URL+"/session/event", map[string]any{
		"sessionId": active,
		"events": []event.Event{{
			Timestamp: 0,
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range:        event.Range{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1},
				InsertedText: "x",
			}},
		}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/sessions/cleanup-empty", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, float64(1), got["deletedCount"])

	resp = getJSON(t, srv.URL+"/session/"+empty)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = getJSON(t, srv.URL+"/session/"+active)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
