package solve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solver-cli/internal/config"
	"github.com/sells-group/solver-cli/internal/extract"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/submit"
)

// scriptSource serves canned pages per URL.
type scriptSource struct {
	pages  map[string]string
	err    error
	closed bool
}

func (s *scriptSource) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	html, ok := s.pages[url]
	if !ok {
		return nil, errors.New("page not scripted: " + url)
	}
	return &fetch.Page{URL: url, HTML: html, StatusCode: 200}, nil
}

func (s *scriptSource) Name() string { return "script" }

func (s *scriptSource) Close() error {
	s.closed = true
	return nil
}

// submitServer replays a queue of JSON responses and records call times.
type submitServer struct {
	mu        sync.Mutex
	responses []string
	times     []time.Time
	srv       *httptest.Server
}

func newSubmitServer(responses ...string) *submitServer {
	ss := &submitServer{responses: responses}
	ss.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss.mu.Lock()
		ss.times = append(ss.times, time.Now())
		var body string
		if len(ss.responses) > 0 {
			body = ss.responses[0]
			ss.responses = ss.responses[1:]
		} else {
			body = `{}`
		}
		ss.mu.Unlock()
		w.Write([]byte(body))
	}))
	return ss
}

func (ss *submitServer) calls() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.times)
}

func (ss *submitServer) endpoint() string { return ss.srv.URL + "/submit" }

// taskPage builds a minimal task page carrying an answer and the submit
// endpoint.
func taskPage(endpoint string, answer int) string {
	return `<pre>{"answer": ` + strconv.Itoa(answer) + `}</pre>` +
		`<script>var s = "` + endpoint + `";</script>`
}

func testBudgets() config.BudgetConfig {
	return config.BudgetConfig{
		TaskSecs:        60,
		RunSecs:         120,
		MaxAttempts:     3,
		SubmitRetries:   1,
		SubmitBackoffMs: 10,
	}
}

func newTestRunner(src fetch.Source, budgets config.BudgetConfig) *Runner {
	chain := extract.DefaultChain(nil, nil, nil, nil)
	submitter := submit.NewSubmitter(submit.Options{MaxAttempts: 1, Backoff: 10 * time.Millisecond})
	return NewRunner(src, chain, submitter, budgets)
}

func TestRun_FollowsChainToCompletion(t *testing.T) {
	ss := newSubmitServer(
		`{"correct": true, "url": "https://x.com/task/2"}`,
		`{"correct": true}`,
	)
	defer ss.srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 10),
		"https://x.com/task/2": taskPage(ss.endpoint(), 20),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunCompleted, summary.Status)
	assert.Equal(t, 2, summary.Tasks)
	assert.Equal(t, 2, ss.calls())
	require.Len(t, summary.History, 2)
	assert.Equal(t, "https://x.com/task/1", summary.History[0].TaskURL)
	assert.Equal(t, "https://x.com/task/2", summary.History[1].TaskURL)
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, src.closed)
}

func TestRun_NextURLDominatesWrongAnswer(t *testing.T) {
	ss := newSubmitServer(
		`{"correct": false, "url": "https://x.com/task/2"}`,
		`{"correct": true}`,
	)
	defer ss.srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 1),
		"https://x.com/task/2": taskPage(ss.endpoint(), 2),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	// The wrong answer is not retried because a next pointer was present.
	assert.Equal(t, model.RunCompleted, summary.Status)
	assert.Equal(t, 2, summary.Tasks)
	require.Len(t, summary.History, 2)
	assert.Equal(t, 0, summary.History[0].Attempt)
}

func TestRun_RetriesWrongAnswerToCapThenTerminates(t *testing.T) {
	ss := newSubmitServer(
		`{"correct": false}`,
		`{"correct": false}`,
		`{"correct": false}`,
	)
	defer ss.srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 1),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunCompleted, summary.Status)
	assert.Equal(t, 1, summary.Tasks)
	assert.Equal(t, 3, ss.calls())
	require.Len(t, summary.History, 3)
	assert.Equal(t, 0, summary.History[0].Attempt)
	assert.Equal(t, 1, summary.History[1].Attempt)
	assert.Equal(t, 2, summary.History[2].Attempt)
}

func TestRun_CorrectWithoutNextURLTerminates(t *testing.T) {
	ss := newSubmitServer(`{"correct": true}`)
	defer ss.srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 1),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunCompleted, summary.Status)
	assert.Equal(t, 1, ss.calls())
}

func TestRun_EndpointDiscoveryFailureIsFatal(t *testing.T) {
	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": `<pre>{"answer": 1}</pre><p>no endpoint</p>`,
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunError, summary.Status)
	assert.NotEmpty(t, summary.Err)
	// The failed attempt is still recorded.
	require.Len(t, summary.History, 1)
	assert.NotEmpty(t, summary.History[0].Err)
	assert.True(t, src.closed)
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	src := &scriptSource{err: errors.New("connection refused")}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunError, summary.Status)
	require.Len(t, summary.History, 1)
	assert.Contains(t, summary.History[0].Err, "connection refused")
}

func TestRun_RunBudgetExhaustedBeforeFirstTask(t *testing.T) {
	budgets := testBudgets()
	budgets.RunSecs = 0

	src := &scriptSource{pages: map[string]string{}}
	r := newTestRunner(src, budgets)
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunTimeUp, summary.Status)
	assert.Equal(t, 0, summary.Tasks)
	assert.True(t, src.closed)
}

func TestRun_TaskBudgetExpiredBeforeSubmission(t *testing.T) {
	ss := newSubmitServer()
	defer ss.srv.Close()

	budgets := testBudgets()
	budgets.TaskSecs = 0

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 1),
	}}

	r := newTestRunner(src, budgets)
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	// No submission may start after the task budget elapses.
	assert.Equal(t, model.RunTimeUp, summary.Status)
	assert.Equal(t, 0, ss.calls())
	require.Len(t, summary.History, 1)
	assert.NotEmpty(t, summary.History[0].Err)
}

func TestRun_ServerDelayHonoredBeforeNextCall(t *testing.T) {
	ss := newSubmitServer(
		`{"correct": false, "delay": 0.2}`,
		`{"correct": true}`,
	)
	defer ss.srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(ss.endpoint(), 1),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "e", Secret: "s"}, "https://x.com/task/1")

	assert.Equal(t, model.RunCompleted, summary.Status)
	require.Equal(t, 2, ss.calls())

	ss.mu.Lock()
	gap := ss.times[1].Sub(ss.times[0])
	ss.mu.Unlock()
	assert.GreaterOrEqual(t, gap, 150*time.Millisecond)
}

func TestRun_StructuredAnswerReachesPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"correct": true}`))
	}))
	defer srv.Close()

	src := &scriptSource{pages: map[string]string{
		"https://x.com/task/1": taskPage(srv.URL+"/submit", 42),
	}}

	r := newTestRunner(src, testBudgets())
	summary := r.Run(context.Background(), model.Identity{Email: "me@x.com", Secret: "sec"}, "https://x.com/task/1")

	require.Equal(t, model.RunCompleted, summary.Status)
	body := string(gotBody)
	assert.Contains(t, body, `"answer":42`)
	assert.Contains(t, body, `"email":"me@x.com"`)
	assert.Contains(t, body, `"secret":"sec"`)
	assert.Contains(t, body, `"url":"https://x.com/task/1"`)
}

func TestRecorder_AppendAndSnapshot(t *testing.T) {
	rec := NewRecorder()
	assert.Equal(t, 0, rec.Len())

	rec.Append(model.AttemptRecord{TaskURL: "a"})
	rec.Append(model.AttemptRecord{TaskURL: "b"})

	snap := rec.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].TaskURL)

	// Snapshot is a copy: later appends do not alter it.
	rec.Append(model.AttemptRecord{TaskURL: "c"})
	assert.Len(t, snap, 2)
	assert.Equal(t, 3, rec.Len())
}

func TestRecorder_ConcurrentAppends(t *testing.T) {
	rec := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Append(model.AttemptRecord{TaskURL: "x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, rec.Len())
}
