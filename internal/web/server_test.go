package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/controller"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/notify"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/sources"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/state"
)

var testCycleStart = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type testAPI struct {
	srv    *httptest.Server
	events *sources.StaticEvents
	now    time.Time
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a := &testAPI{
		events: &sources.StaticEvents{},
		now:    testCycleStart,
	}
	ctrl := controller.New(store,
		&sources.StaticVitals{Reading: cycle.Reading{Current: 40, Baseline: 50}},
		a.events,
		notify.NopPublisher{},
		zap.NewNop(),
		controller.WithNow(func() time.Time { return a.now }))

	server := New("127.0.0.1:0", ctrl, zap.NewNop())
	a.srv = httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(a.srv.Close)
	return a
}

// armDay moves the clock to noon of the given cycle day with an active
// high-stakes event, same shape the poller would see.
func (a *testAPI) armDay(day int) {
	a.now = testCycleStart.Add(time.Duration(day-1)*24*time.Hour + 12*time.Hour)
	a.events.Events = []cycle.Event{{
		ID:    "ev-1",
		Start: a.now.Add(-30 * time.Minute),
		End:   a.now.Add(time.Hour),
	}}
}

func (a *testAPI) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (a *testAPI) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(a.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *testAPI) createUser(t *testing.T, id string) {
	t.Helper()
	resp, _ := a.post(t, "/api/v1/users", map[string]string{"user_id": id, "timezone": "UTC"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	resp, body := a.get(t, "/api/v1/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
}

func TestCreateUser(t *testing.T) {
	a := newTestAPI(t)
	resp, body := a.post(t, "/api/v1/users", map[string]string{"user_id": "u1", "timezone": "Europe/Berlin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "u1", body["user_id"])
	require.Equal(t, "Europe/Berlin", body["timezone"])
	require.Equal(t, float64(1), body["current_day"])
}

func TestCreateUserConflict(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	resp, _ := a.post(t, "/api/v1/users", map[string]string{"user_id": "u1", "timezone": "UTC"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateUserMissingID(t *testing.T) {
	a := newTestAPI(t)
	resp, _ := a.post(t, "/api/v1/users", map[string]string{"timezone": "UTC"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckTrigger(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(4)

	resp, body := a.post(t, "/api/v1/state/check", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["should_display"])
	require.Equal(t, "ev-1", body["event_id"])
	require.Equal(t, float64(4), body["current_day"])
}

func TestCheckTriggerUnknownUser(t *testing.T) {
	a := newTestAPI(t)
	resp, _ := a.post(t, "/api/v1/state/check", map[string]string{"user_id": "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDecisionEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(4)
	a.post(t, "/api/v1/state/check", map[string]string{"user_id": "u1"})

	resp, body := a.post(t, "/api/v1/decisions", map[string]string{"user_id": "u1", "decision": "Delay"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "cooling_period_activated", body["status"])
	require.Contains(t, body, "re_trigger_time")

	resp, body = a.get(t, "/api/v1/decisions/history?user_id=u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decisions := body["decisions"].([]any)
	require.Len(t, decisions, 1)
	require.Equal(t, "Delay", decisions[0].(map[string]any)["decision_type"])
}

func TestDecisionInvalidValue(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(4)
	a.post(t, "/api/v1/state/check", map[string]string{"user_id": "u1"})

	resp, _ := a.post(t, "/api/v1/decisions", map[string]string{"user_id": "u1", "decision": "Maybe"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDecisionWithoutPendingTrigger(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(4)

	resp, _ := a.post(t, "/api/v1/decisions", map[string]string{"user_id": "u1", "decision": "Proceed"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReflectionEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.now = testCycleStart.Add(6*24*time.Hour + 9*time.Hour)

	resp, body := a.post(t, "/api/v1/reflections", map[string]string{"user_id": "u1", "response": "Yes"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "reflection_recorded", body["status"])
	require.Equal(t, float64(1), body["current_day"])

	resp, body = a.get(t, "/api/v1/reflections/history?user_id=u1&limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["reflections"].([]any), 1)
}

func TestReflectionOutsideDaySeven(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(3)

	resp, _ := a.post(t, "/api/v1/reflections", map[string]string{"user_id": "u1", "response": "Yes"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetStateAndReset(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	a.armDay(5)

	resp, body := a.get(t, "/api/v1/state?user_id=u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(5), body["current_day"])
	require.Equal(t, "intervention", body["phase"])

	resp, body = a.post(t, "/api/v1/state/reset", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["current_day"])
}

func TestHistoryBadLimit(t *testing.T) {
	a := newTestAPI(t)
	a.createUser(t, "u1")
	for _, q := range []string{"limit=0", "limit=-3", "limit=abc"} {
		resp, _ := a.get(t, fmt.Sprintf("/api/v1/decisions/history?user_id=u1&%s", q))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	a := newTestAPI(t)
	resp, err := http.Post(a.srv.URL+"/api/v1/users", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "invalid JSON")
}
