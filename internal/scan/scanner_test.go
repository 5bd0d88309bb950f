package scan_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/emora-osint/emora/internal/httpx"
	"github.com/emora-osint/emora/internal/registry"
	"github.com/emora-osint/emora/internal/scan"
	"github.com/emora-osint/emora/internal/scan/mock"
)

func newRegistry(t *testing.T, src string) *registry.Registry {
	t.Helper()

	reg, err := registry.Parse([]byte(src), registry.FormatJSON, "test")
	require.NoError(t, err)

	return reg
}

// statusDoer answers 200 for URLs containing any of found, 404 otherwise.
func statusDoer(calls *sync.Map, found ...string) httpx.DoerFunc {
	return func(req *http.Request) (*http.Response, error) {
		if calls != nil {
			calls.Store(req.URL.String(), req)
		}
		status := http.StatusNotFound
		for _, f := range found {
			if strings.Contains(req.URL.String(), f) {
				status = http.StatusOK
			}
		}

		return &http.Response{
			StatusCode: status,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	}
}

type event struct {
	kind    string
	site    string
	checked int
	total   int
	matches int
}

type recordingReporter struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingReporter) OnSiteFound(site, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "found", site: site})
}

func (r *recordingReporter) OnProgress(checked, total, matches int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "progress", checked: checked, total: total, matches: matches})
}

func (r *recordingReporter) OnSearchComplete(totalMatches int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "complete", matches: totalMatches})
}

func (r *recordingReporter) progress() []event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event
	for _, e := range r.events {
		if e.kind == "progress" {
			out = append(out, e)
		}
	}

	return out
}

const mixed = `{
  "A": {"url": "https://a.example/{}"},
  "B": {"url": "https://b.example/{}", "profileUrl": "https://b.example/@{}"},
  "C": {"url": "https://c.example/{}"},
  "D": {"url": "https://d.example/{}", "disabled": true},
  "E": {"url": "https://e.example/{}", "regexCheck": "^[0-9]+$"}
}`

func TestRunSearch(t *testing.T) {
	var calls sync.Map
	s := scan.NewScanner(statusDoer(&calls, "a.example", "b.example", "d.example"), scan.Config{})
	rep := &recordingReporter{}

	sum, err := s.RunSearch(context.Background(), newRegistry(t, mixed), "  alice ", 2, rep)
	require.NoError(t, err)

	require.Equal(t, "alice", sum.Username)
	require.NotEmpty(t, sum.SessionID)
	require.Equal(t, 5, sum.Total)
	require.Equal(t, 5, sum.Checked)
	require.Equal(t, 2, sum.Matches)
	require.Equal(t, 1, sum.Skipped)
	require.Equal(t, []scan.Found{
		{Site: "A", ProfileURL: "https://a.example/alice"},
		{Site: "B", ProfileURL: "https://b.example/@alice"},
	}, sum.Found)

	_, hitDisabled := calls.Load("https://d.example/alice")
	require.False(t, hitDisabled, "disabled sites are never requested")
	_, hitRejected := calls.Load("https://e.example/alice")
	require.False(t, hitRejected, "usernames rejected by regexCheck are never requested")

	req, ok := calls.Load("https://a.example/alice")
	require.True(t, ok)
	require.Equal(t, httpx.DefaultUserAgent, req.(*http.Request).Header.Get("User-Agent"))
}

func TestRunSearch_ProgressIsMonotonic(t *testing.T) {
	var src strings.Builder
	src.WriteString("{")
	for i := 0; i < 30; i++ {
		if i > 0 {
			src.WriteString(",")
		}
		fmt.Fprintf(&src, `"S%02d": {"url": "https://s%02d.example/{}", "disabled": %t}`, i, i, i%7 == 0)
	}
	src.WriteString("}")

	s := scan.NewScanner(statusDoer(nil, "1.example", "3.example"), scan.Config{})
	rep := &recordingReporter{}

	sum, err := s.RunSearch(context.Background(), newRegistry(t, src.String()), "bob", 8, rep)
	require.NoError(t, err)

	progress := rep.progress()
	require.Len(t, progress, 30)
	for i, p := range progress {
		require.Equal(t, i+1, p.checked)
		require.Equal(t, 30, p.total)
		require.LessOrEqual(t, p.matches, p.checked)
		if i > 0 {
			require.GreaterOrEqual(t, p.matches, progress[i-1].matches)
		}
	}
	require.Equal(t, sum.Matches, progress[len(progress)-1].matches)

	last := rep.events[len(rep.events)-1]
	require.Equal(t, "complete", last.kind)
	require.Equal(t, sum.Matches, last.matches)
}

func TestRunSearch_FoundPrecedesItsProgress(t *testing.T) {
	s := scan.NewScanner(statusDoer(nil, "a.example"), scan.Config{})
	rep := &recordingReporter{}

	_, err := s.RunSearch(context.Background(), newRegistry(t, `{"A": {"url": "https://a.example/{}"}}`), "x", 1, rep)
	require.NoError(t, err)

	require.Equal(t, []event{
		{kind: "found", site: "A"},
		{kind: "progress", checked: 1, total: 1, matches: 1},
		{kind: "complete", matches: 1},
	}, rep.events)
}

func TestRunSearch_ConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	doer := httpx.DoerFunc(func(req *http.Request) (*http.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}

		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody}, nil
	})

	reg := newRegistry(t, `{
		"A": {"url": "https://a/{}"}, "B": {"url": "https://b/{}"}, "C": {"url": "https://c/{}"},
		"D": {"url": "https://d/{}"}, "E": {"url": "https://e/{}"}
	}`)

	start := time.Now()
	sum, err := scan.NewScanner(doer, scan.Config{}).RunSearch(context.Background(), reg, "alice", 2, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 5, sum.Matches)
	require.Equal(t, int32(2), peak.Load())
	require.GreaterOrEqual(t, elapsed, 280*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestRunSearch_TimeoutIsFailed(t *testing.T) {
	doer := httpx.DoerFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	s := scan.NewScanner(doer, scan.Config{RequestTimeout: 50 * time.Millisecond})
	sum, err := s.RunSearch(context.Background(), newRegistry(t, `{"Slow": {"url": "https://slow/{}"}}`), "alice", 1, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Checked)
	require.Equal(t, 1, sum.Failed)
	require.Zero(t, sum.Matches)
}

func TestRunSearch_Idempotent(t *testing.T) {
	s := scan.NewScanner(statusDoer(nil, "a.example", "c.example"), scan.Config{})
	reg := newRegistry(t, mixed)

	first, err := s.RunSearch(context.Background(), reg, "alice", 3, nil)
	require.NoError(t, err)
	second, err := s.RunSearch(context.Background(), reg, "alice", 1, nil)
	require.NoError(t, err)

	require.Equal(t, first.Found, second.Found)
	require.Equal(t, first.Checked, second.Checked)
	require.NotEqual(t, first.SessionID, second.SessionID)
}

func TestRunSearch_InvalidInput(t *testing.T) {
	s := scan.NewScanner(statusDoer(nil), scan.Config{})
	reg := newRegistry(t, mixed)

	_, err := s.RunSearch(context.Background(), reg, "   ", 1, nil)
	require.ErrorIs(t, err, scan.ErrEmptyUsername)

	for _, limit := range []int{-1, scan.MaxConcurrency + 1} {
		_, err = s.RunSearch(context.Background(), reg, "alice", limit, nil)
		require.ErrorIs(t, err, scan.ErrInvalidConcurrency)
	}

	for _, limit := range []int{0, 1, scan.MaxConcurrency} {
		_, err = s.RunSearch(context.Background(), reg, "alice", limit, nil)
		require.NoError(t, err)
	}
}

func TestResolveLimit(t *testing.T) {
	s := scan.NewScanner(nil, scan.Config{MaxConcurrency: 4})

	limit, err := s.ResolveLimit(0)
	require.NoError(t, err)
	require.Equal(t, scan.DefaultLimit(4), limit)
	require.GreaterOrEqual(t, limit, 1)
	require.LessOrEqual(t, limit, 4)

	_, err = s.ResolveLimit(5)
	require.ErrorIs(t, err, scan.ErrInvalidConcurrency)
}

func TestRunSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	doer := httpx.DoerFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	reg := newRegistry(t, `{
		"A": {"url": "https://a/{}"}, "B": {"url": "https://b/{}"}, "C": {"url": "https://c/{}"}
	}`)
	sum, err := scan.NewScanner(doer, scan.Config{}).RunSearch(ctx, reg, "alice", 1, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, sum.Checked, sum.Total)
	require.Zero(t, sum.Matches)
}

func TestStartSearch_Session(t *testing.T) {
	release := make(chan struct{})
	doer := httpx.DoerFunc(func(req *http.Request) (*http.Response, error) {
		<-release
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody}, nil
	})

	reg := newRegistry(t, `{"A": {"url": "https://a/{}"}, "Off": {"url": "https://off/{}", "disabled": true}}`)
	session, err := scan.NewScanner(doer, scan.Config{}).StartSearch(context.Background(), reg, "alice", 1, nil)
	require.NoError(t, err)

	require.Equal(t, "alice", session.Username())
	require.Equal(t, 1, session.Limit())
	require.Equal(t, 2, session.Total())
	require.Eventually(t, func() bool { return session.Checked() == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, session.Matches())

	select {
	case <-session.Done():
		t.Fatal("session finished before its probe")
	default:
	}

	close(release)
	sum, err := session.Wait()
	require.NoError(t, err)
	require.Equal(t, 2, session.Checked())
	require.Equal(t, 1, session.Matches())
	require.Equal(t, sum.Elapsed, session.Elapsed())
}

func TestRunSearch_Reporter(t *testing.T) {
	ctrl := gomock.NewController(t)
	rep := mock.NewMockReporter(ctrl)

	// B may be aggregated before A, so only the final progress is fixed.
	rep.EXPECT().OnSiteFound("A", "https://a.example/alice")
	rep.EXPECT().OnProgress(1, 2, gomock.Any())
	rep.EXPECT().OnProgress(2, 2, 1)
	rep.EXPECT().OnSearchComplete(1, gomock.Any())

	reg := newRegistry(t, `{"A": {"url": "https://a.example/{}"}, "B": {"url": "https://b.example/{}"}}`)
	s := scan.NewScanner(statusDoer(nil, "a.example"), scan.Config{})

	_, err := s.RunSearch(context.Background(), reg, "alice", 1, rep)
	require.NoError(t, err)
}

type countingObserver struct {
	started  atomic.Int32
	finished atomic.Int32
}

func (o *countingObserver) ProbeStarted() { o.started.Add(1) }

func (o *countingObserver) ProbeFinished(string, scan.Verdict, time.Duration) { o.finished.Add(1) }

func TestRunSearch_Observer(t *testing.T) {
	obs := &countingObserver{}
	s := scan.NewScanner(statusDoer(nil), scan.Config{Observer: obs})

	_, err := s.RunSearch(context.Background(), newRegistry(t, mixed), "alice", 2, nil)
	require.NoError(t, err)

	// A, B and C are requested; D is disabled and E rejects the username.
	require.Equal(t, int32(3), obs.started.Load())
	require.Equal(t, int32(3), obs.finished.Load())
}

func TestRunSearch_Pacing(t *testing.T) {
	s := scan.NewScanner(statusDoer(nil), scan.Config{RequestsPerSecond: 20})
	reg := newRegistry(t, `{"A": {"url": "https://a/{}"}, "B": {"url": "https://b/{}"}, "C": {"url": "https://c/{}"}}`)

	start := time.Now()
	_, err := s.RunSearch(context.Background(), reg, "alice", 3, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunSearch_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/alice":
			_, _ = io.WriteString(w, "<h1>alice</h1>")
		case "/api":
			body, _ := io.ReadAll(r.Body)
			if r.Header.Get("Content-Type") == scan.BodyContentType && strings.Contains(string(body), `"alice"`) {
				_, _ = io.WriteString(w, `{"found":true}`)
				return
			}
			_, _ = io.WriteString(w, `{"found":false}`)
		default:
			http.Error(w, "Not Found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	reg := newRegistry(t, fmt.Sprintf(`{
		"Status": {"url": "%[1]s/users/{}"},
		"Missing": {"url": "%[1]s/nobody/{}"},
		"Message": {"url": "%[1]s/users/{}", "errorType": "message", "errorMessage": "Not Found"},
		"Post": {"url": "%[1]s/api", "data": "{\"u\":\"{USERNAME}\"}", "successMessage": "\"found\":true", "profileUrl": "%[1]s/p/{}"}
	}`, srv.URL))

	client, err := httpx.NewClient(httpx.ClientConfig{})
	require.NoError(t, err)

	sum, err := scan.NewScanner(client, scan.Config{}).RunSearch(context.Background(), reg, "alice", 4, nil)
	require.NoError(t, err)
	require.Equal(t, []scan.Found{
		{Site: "Message", ProfileURL: srv.URL + "/users/alice"},
		{Site: "Post", ProfileURL: srv.URL + "/p/alice"},
		{Site: "Status", ProfileURL: srv.URL + "/users/alice"},
	}, sum.Found)
}

type trackedBody struct {
	r      io.Reader
	eof    bool
	closed bool
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		b.eof = true
	}

	return n, err
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func TestRunSearch_DrainsUnreadBody(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		drained bool
	}{
		{"small body is drained", 1 << 10, true},
		{"large body is only closed", 64 << 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &trackedBody{r: strings.NewReader(strings.Repeat("x", tt.size))}
			doer := httpx.DoerFunc(func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}, Body: body}, nil
			})

			reg := newRegistry(t, `{"A": {"url": "https://a/{}", "errorType": "status_code"}}`)
			sum, err := scan.NewScanner(doer, scan.Config{}).RunSearch(context.Background(), reg, "alice", 1, nil)
			require.NoError(t, err)
			require.Zero(t, sum.Matches)
			require.True(t, body.closed)
			require.Equal(t, tt.drained, body.eof)
		})
	}
}

func TestRunSearch_ReusesConnections(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, strings.Repeat("not found ", 100))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	reg := newRegistry(t, fmt.Sprintf(`{"A": {"url": "%s/{}", "errorType": "status_code"}}`, srv.URL))

	client, err := httpx.NewClient(httpx.ClientConfig{})
	require.NoError(t, err)
	scanner := scan.NewScanner(client, scan.Config{})

	for _, username := range []string{"alice", "bob", "carol"} {
		sum, err := scanner.RunSearch(context.Background(), reg, username, 1, nil)
		require.NoError(t, err)
		require.Zero(t, sum.Failed)
	}
	require.Equal(t, int32(1), conns.Load())
}
