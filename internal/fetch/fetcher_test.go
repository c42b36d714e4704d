package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch/internal/domain"
)

func testConfig(hardHosts ...string) Config {
	return Config{
		Timeout:           5 * time.Second,
		Concurrency:       2,
		HardFallbackHosts: hardHosts,
	}
}

func TestFetchDirectSuccess(t *testing.T) {
	t.Parallel()

	var gotAgent, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("<html><body>product page</body></html>"))
	}))
	defer server.Close()

	f := New(testConfig(), NewHeaderPool([]string{"test-agent/1.0"}), nil, nil, nil)
	page, err := f.Fetch(context.Background(), domain.Target{SiteID: 1, URL: server.URL + "/p/1"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if page.Via != "direct" || page.StatusCode != http.StatusOK {
		t.Fatalf("unexpected page: %+v", page)
	}
	if gotAgent != "test-agent/1.0" {
		t.Fatalf("user agent not rotated from pool: %q", gotAgent)
	}
	if gotReferer != server.URL+"/" {
		t.Fatalf("referer not derived from target origin: %q", gotReferer)
	}
}

func TestFetchNonChallengeStatusFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := New(testConfig("127.0.0.1"), nil, nil, nil, nil)
	if _, err := f.Fetch(context.Background(), domain.Target{URL: server.URL}); err == nil {
		t.Fatal("expected error for 404 without fallback")
	}
}

func TestFetchChallengedHostNotOnAllowList(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := New(testConfig(), nil, nil, nil, nil)
	if _, err := f.Fetch(context.Background(), domain.Target{URL: server.URL}); err == nil {
		t.Fatal("expected error when host is not allowed hard fallbacks")
	}
}

func TestFetchEscalatesToSolverOn403(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer target.Close()

	solver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cmd != "request.get" {
			t.Errorf("bad solver request: %+v err=%v", req, err)
		}
		resp := solverResponse{Status: "ok"}
		resp.Solution.Status = http.StatusOK
		resp.Solution.Response = "<html><body>solved page</body></html>"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer solver.Close()

	f := New(testConfig("127.0.0.1"), nil, NewSolverClient(solver.URL, 5*time.Second), nil, nil)
	page, err := f.Fetch(context.Background(), domain.Target{URL: target.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if page.Via != "solver" || !strings.Contains(string(page.Body), "solved page") {
		t.Fatalf("unexpected page: via=%s body=%s", page.Via, page.Body)
	}
}

func TestFetchEscalatesOnBotWallBody(t *testing.T) {
	t.Parallel()

	// 200 with a challenge body must be treated like a 403.
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Checking your browser before accessing...</body></html>"))
	}))
	defer target.Close()

	solver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := solverResponse{Status: "ok"}
		resp.Solution.Status = http.StatusOK
		resp.Solution.Response = "<html><body>real content</body></html>"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer solver.Close()

	f := New(testConfig("127.0.0.1"), nil, NewSolverClient(solver.URL, 5*time.Second), nil, nil)
	page, err := f.Fetch(context.Background(), domain.Target{URL: target.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if page.Via != "solver" {
		t.Fatalf("expected solver escalation, got via=%s", page.Via)
	}
}

func TestFetchConcurrencyBound(t *testing.T) {
	t.Parallel()

	const bound = 2
	var inFlight, maxInFlight int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Concurrency = bound
	f := New(cfg, nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("%s/p/%d", server.URL, i)
			if _, err := f.Fetch(context.Background(), domain.Target{SiteID: 1, URL: url}); err != nil {
				t.Errorf("fetch %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got > bound {
		t.Fatalf("observed %d concurrent requests, bound is %d", got, bound)
	}
}

func TestBlocked(t *testing.T) {
	t.Parallel()

	if !Blocked([]byte("<h1>Access Denied</h1>")) {
		t.Fatal("expected access denied body to be blocked")
	}
	if !Blocked([]byte("please complete the CAPTCHA")) {
		t.Fatal("expected captcha body to be blocked")
	}
	if Blocked([]byte("<span class=\"price\">1.234,56 lei</span>")) {
		t.Fatal("product page wrongly flagged")
	}
}
