package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/auth"
	"github.com/teranos/hireflow/db"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/jobpost/memory"
	"github.com/teranos/hireflow/notify"
	"github.com/teranos/hireflow/pulse/schedule"
	"github.com/teranos/hireflow/workflow"
)

var (
	admin     = workflow.Actor{ID: "admin-1", Role: workflow.RoleAdmin}
	employer  = workflow.Actor{ID: "emp-1", Role: workflow.RoleEmployer}
	employer2 = workflow.Actor{ID: "emp-2", Role: workflow.RoleEmployer}
	seeker    = workflow.Actor{ID: "seeker-1", Role: workflow.RoleJobSeeker}
)

type fixture struct {
	server *Server
	store  *memory.Store
	events *notify.Broadcaster
	jwt    *auth.JWTManager
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	store := memory.New()
	events := notify.NewBroadcaster(16)
	engine := workflow.NewEngine(store, store, workflow.WithEmitter(events), workflow.WithLogger(log))

	jwtManager, err := auth.NewJWTManager(am.AuthConfig{JWTSecret: "server-test-secret", Issuer: "hireflow"})
	require.NoError(t, err)

	ticker := schedule.NewTicker(engine, store, nil, schedule.DefaultTickerConfig(), log)

	srv, err := New(Deps{
		Engine:         engine,
		Auth:           auth.NewMiddleware(jwtManager, log),
		Posts:          store,
		Pulse:          ticker,
		Events:         events,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         log,
	})
	require.NoError(t, err)

	return &fixture{server: srv, store: store, events: events, jwt: jwtManager}
}

func (f *fixture) token(t *testing.T, actor workflow.Actor) string {
	t.Helper()
	token, err := f.jwt.Issue(actor, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *fixture) seed(id, employerID string, status workflow.Status) {
	now := time.Now().UTC()
	f.store.Put(&workflow.JobPost{
		ID:         id,
		EmployerID: employerID,
		Title:      "Backend engineer",
		Status:     status,
		Priority:   workflow.PriorityNormal,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (f *fixture) do(t *testing.T, actor *workflow.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(t, *actor))
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, nil, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["status"])

	_, cancel := f.events.Subscribe()
	defer cancel()
	for i := 0; i < 17; i++ {
		f.events.Publish(workflow.Event{JobPostID: "job-1"})
	}
	w = f.do(t, nil, http.MethodGet, "/health", nil)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["subscribers"])
	assert.EqualValues(t, 1, body["dropped_events"], "buffer of 16 overflows on the 17th event")

	require.NoError(t, f.server.Shutdown(context.Background()))
	w = f.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusDraft)

	w := f.do(t, nil, http.MethodGet, "/api/jobs/job-1/actions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/actions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, nil, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(requestIDHeader))
}

func TestApplyAction(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusDraft)

	w := f.do(t, &employer, http.MethodPost, "/api/jobs/job-1/actions/submit_for_approval", workflow.Payload{Notes: "ready"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res workflow.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, workflow.StatusDraft, res.From)
	assert.Equal(t, workflow.StatusPendingApproval, res.To)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "ready", res.Entry.Notes)
	assert.Equal(t, employer.ID, res.Entry.PerformedBy)

	// empty body is an empty payload
	w = f.do(t, &admin, http.MethodPost, "/api/jobs/job-1/actions/begin_review", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestApplyErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.seed("draft-1", employer.ID, workflow.StatusDraft)
	f.seed("pending-1", employer.ID, workflow.StatusPendingApproval)

	t.Run("not found", func(t *testing.T) {
		w := f.do(t, &admin, http.MethodPost, "/api/jobs/missing/actions/approve", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(workflow.KindNotFound), decode(t, w)["kind"])
	})

	t.Run("permission denied", func(t *testing.T) {
		w := f.do(t, &employer2, http.MethodPost, "/api/jobs/draft-1/actions/submit_for_approval", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, string(workflow.KindPermissionDenied), decode(t, w)["kind"])
	})

	t.Run("invalid transition", func(t *testing.T) {
		w := f.do(t, &admin, http.MethodPost, "/api/jobs/draft-1/actions/publish", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		assert.Equal(t, string(workflow.StatusDraft), body["current_status"])
		assert.Contains(t, body["allowed_actions"], string(workflow.ActionCancel))
	})

	t.Run("validation", func(t *testing.T) {
		w := f.do(t, &admin, http.MethodPost, "/api/jobs/pending-1/actions/reject", workflow.Payload{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(workflow.KindValidation), decode(t, w)["kind"])
	})

	t.Run("unknown action", func(t *testing.T) {
		w := f.do(t, &admin, http.MethodPost, "/api/jobs/pending-1/actions/teleport", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/pending-1/actions/approve", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+f.token(t, admin))
		w := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConflictResponse(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusPendingApproval)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	err := &workflow.Error{Kind: workflow.KindConflict, JobPostID: "job-1", CurrentStatus: workflow.StatusPendingApproval, Message: "modified concurrently"}
	f.server.writeError(c, err)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "This job was just updated by someone else, please refresh.", body["message"])
	assert.Equal(t, "job-1", body["job_post_id"])
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	f.server.writeError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}

func TestBusyDatabaseIsUnavailable(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/jobs/job-1/actions/approve", nil)
	f.server.writeError(c, errors.Wrap(db.Transient(errors.New("database is locked")), "commit"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "service temporarily unavailable, retry shortly", decode(t, w)["error"])
}

func TestAvailableActionsAndHistory(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusDraft)

	w := f.do(t, &employer, http.MethodGet, "/api/jobs/job-1/actions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []interface{}{"submit_for_approval", "cancel"}, decode(t, w)["actions"])

	w = f.do(t, &seeker, http.MethodGet, "/api/jobs/job-1/actions", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &employer, http.MethodGet, "/api/jobs/job-1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["entries"])

	f.do(t, &employer, http.MethodPost, "/api/jobs/job-1/actions/submit_for_approval", nil)
	f.do(t, &admin, http.MethodPost, "/api/jobs/job-1/actions/approve", workflow.Payload{PublishImmediately: true})

	w = f.do(t, &employer, http.MethodGet, "/api/jobs/job-1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Entries []workflow.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Entries, 2)
	assert.Equal(t, workflow.ActionSubmitForApproval, hist.Entries[0].Action)
	assert.Equal(t, workflow.StatusActive, hist.Entries[1].ToStatus)
	assert.Less(t, hist.Entries[0].Seq, hist.Entries[1].Seq)

	w = f.do(t, &employer2, http.MethodGet, "/api/jobs/job-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, &employer, http.MethodGet, "/api/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(workflow.StatusActive), decode(t, w)["status"])
}

func TestCreateJobPost(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, &employer, http.MethodPost, "/api/jobs", createRequest{Title: "  Platform engineer "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, employer.ID, body["employer_id"])
	assert.Equal(t, string(workflow.StatusDraft), body["status"])
	assert.Equal(t, "Platform engineer", body["title"])

	w = f.do(t, &employer, http.MethodPost, "/api/jobs", createRequest{Title: "x", EmployerID: employer2.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &seeker, http.MethodPost, "/api/jobs", createRequest{Title: "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &admin, http.MethodPost, "/api/jobs", createRequest{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "admin must name the employer")

	w = f.do(t, &admin, http.MethodPost, "/api/jobs", createRequest{Title: "x", EmployerID: employer2.ID})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBulk(t *testing.T) {
	f := newFixture(t)
	f.seed("a", employer.ID, workflow.StatusPendingApproval)
	f.seed("b", employer.ID, workflow.StatusDraft)

	req := bulkRequest{IDs: []string{"a", "b", "missing"}}
	w := f.do(t, &admin, http.MethodPost, "/api/jobs/bulk/approve", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res workflow.BulkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Items, 3)
	assert.True(t, res.Items[0].Success)
	assert.Equal(t, workflow.KindInvalidTransition, res.Items[1].ErrorKind)
	assert.Equal(t, workflow.KindNotFound, res.Items[2].ErrorKind)

	w = f.do(t, &employer, http.MethodPost, "/api/jobs/bulk/approve", req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &admin, http.MethodPost, "/api/jobs/bulk/approve", bulkRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmployerHistory(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusDraft)
	f.do(t, &employer, http.MethodPost, "/api/jobs/job-1/actions/submit_for_approval", nil)
	f.do(t, &admin, http.MethodPost, "/api/jobs/job-1/actions/begin_review", nil)

	w := f.do(t, &employer, http.MethodGet, "/api/employers/emp-1/history?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page workflow.LogPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, workflow.ActionBeginReview, page.Entries[0].Action)

	w = f.do(t, &employer2, http.MethodGet, "/api/employers/emp-1/history", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &employer, http.MethodGet, "/api/employers/emp-1/history?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.seed("a", employer.ID, workflow.StatusDraft)
	f.seed("b", employer.ID, workflow.StatusActive)
	f.seed("c", employer2.ID, workflow.StatusActive)

	w := f.do(t, &admin, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ByStatus map[workflow.Status]int `json:"by_status"`
		Total    int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.ByStatus[workflow.StatusActive])
	assert.Equal(t, 0, body.ByStatus[workflow.StatusExpired])

	w = f.do(t, &employer, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, &admin, http.MethodGet, "/api/pulse/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["running"])

	w = f.do(t, &employer, http.MethodGet, "/api/pulse/stats", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func dialEvents(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) workflow.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event workflow.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	f.seed("job-1", employer.ID, workflow.StatusDraft)
	f.seed("job-2", employer2.ID, workflow.StatusDraft)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	adminConn := dialEvents(t, ts, f.token(t, admin))
	otherConn := dialEvents(t, ts, f.token(t, employer2))
	require.Eventually(t, func() bool { return f.events.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	w := f.do(t, &employer, http.MethodPost, "/api/jobs/job-1/actions/submit_for_approval", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, &employer2, http.MethodPost, "/api/jobs/job-2/actions/submit_for_approval", nil)
	require.Equal(t, http.StatusOK, w.Code)

	first := readEvent(t, adminConn)
	assert.Equal(t, "job-1", first.JobPostID)
	assert.Equal(t, workflow.StatusPendingApproval, first.ToStatus)
	assert.Equal(t, "job-2", readEvent(t, adminConn).JobPostID)

	// employer 2 never sees employer 1's post
	assert.Equal(t, "job-2", readEvent(t, otherConn).JobPostID)
}

func TestEventStreamRequiresToken(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestShutdownClosesEventClients(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn := dialEvents(t, ts, f.token(t, admin))
	require.Eventually(t, func() bool { return f.events.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, f.events.Subscribers())
}

func TestNewRequiresEngineAndAuth(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	store := memory.New()
	_, err = New(Deps{Engine: workflow.NewEngine(store, store)})
	assert.Error(t, err)
}
