package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/service"
	"github.com/Wjlljw/pdf-translator/pkg/icron"
)

type fakeScheduler struct {
	runs atomic.Int32
	last *service.RunReport
}

func (f *fakeScheduler) RunOnce(context.Context) (*service.RunReport, error) {
	f.runs.Add(1)
	return &service.RunReport{RunID: "triggered"}, nil
}

func (f *fakeScheduler) Trigger(now time.Time) (*icron.TriggerInfo, error) {
	return &icron.TriggerInfo{Next: now.Add(time.Hour)}, nil
}

func (f *fakeScheduler) Last() *service.RunReport {
	return f.last
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func do(t *testing.T, srv *Server, method, target string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func seedRuns(t *testing.T, store *persistence.MemoryStore, ids ...string) {
	t.Helper()
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		r := &service.RunReport{
			RunID:     id,
			StartedAt: start.Add(time.Duration(i) * time.Hour),
			Totals:    service.Totals{Succeeded: i},
		}
		rec, err := r.Record()
		require.NoError(t, err)
		require.NoError(t, store.SaveRun(context.Background(), rec))
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	code, env := do(t, NewServer(service.NewHub(), nil), http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)
	assert.Contains(t, string(env.Data), "pdf-translator")
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	store := persistence.NewMemoryStore()
	seedRuns(t, store, "old", "mid", "new")
	srv := NewServer(service.NewHub(), store)

	code, env := do(t, srv, http.MethodGet, "/api/v1/runs?limit=2")
	require.Equal(t, http.StatusOK, code)
	var reports []service.RunReport
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "new", reports[0].RunID)
	assert.Equal(t, "mid", reports[1].RunID)

	code, env = do(t, srv, http.MethodGet, "/api/v1/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "fail", env.Status)
}

func TestListRuns_NoStore(t *testing.T) {
	t.Parallel()

	code, env := do(t, NewServer(service.NewHub(), nil), http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	store := persistence.NewMemoryStore()
	seedRuns(t, store, "a", "b")
	srv := NewServer(service.NewHub(), store)

	code, env := do(t, srv, http.MethodGet, "/api/v1/runs/a")
	require.Equal(t, http.StatusOK, code)
	var r service.RunReport
	require.NoError(t, json.Unmarshal(env.Data, &r))
	assert.Equal(t, "a", r.RunID)

	code, env = do(t, srv, http.MethodGet, "/api/v1/runs/zzz")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "run not found", env.Message)
}

func TestCurrentRun(t *testing.T) {
	t.Parallel()

	hub := service.NewHub()
	hub.Publish(service.Event{Type: service.EventRunStarted, RunID: "live", Total: 4})
	store := persistence.NewMemoryStore()
	seedRuns(t, store, "previous")
	srv := NewServer(hub, store, WithScheduler(&fakeScheduler{}))

	code, env := do(t, srv, http.MethodGet, "/api/v1/runs/current")
	require.Equal(t, http.StatusOK, code)

	var resp currentRunResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.Status.Running)
	assert.Equal(t, "live", resp.Status.RunID)
	assert.Equal(t, 4, resp.Status.Total)
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, "previous", resp.LastRun.RunID)
	assert.NotNil(t, resp.NextTrigger)
}

func TestCurrentRun_PrefersSchedulerLastRun(t *testing.T) {
	t.Parallel()

	store := persistence.NewMemoryStore()
	seedRuns(t, store, "stored")
	sched := &fakeScheduler{last: &service.RunReport{RunID: "in-memory"}}
	srv := NewServer(service.NewHub(), store, WithScheduler(sched))

	code, env := do(t, srv, http.MethodGet, "/api/v1/runs/current")
	require.Equal(t, http.StatusOK, code)

	var resp currentRunResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, "in-memory", resp.LastRun.RunID)
}

func TestStartRun(t *testing.T) {
	t.Parallel()

	code, env := do(t, NewServer(service.NewHub(), nil), http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "fail", env.Status)

	sched := &fakeScheduler{}
	srv := NewServer(service.NewHub(), nil, WithScheduler(sched))
	code, _ = do(t, srv, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, int32(1), sched.runs.Load())
}

func TestUnknownRouteIsJSend(t *testing.T) {
	t.Parallel()

	code, env := do(t, NewServer(service.NewHub(), nil), http.MethodGet, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "fail", env.Status)
}

func TestProgressStream(t *testing.T) {
	t.Parallel()

	hub := service.NewHub()
	ts := httptest.NewServer(NewServer(hub, nil).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "status", name)

	hub.Publish(service.Event{Type: service.EventRunStarted, RunID: "r9", Total: 1})
	name, data := readEvent()
	assert.Equal(t, "run_started", name)
	assert.Contains(t, data, `"run_id":"r9"`)
}
