package client_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/netlabworks/netlab/client"
	"github.com/netlabworks/netlab/client/progress"
)

// recordMeter records lifecycle events per query id so tests can assert
// ordering without depending on the handshake probe's own events.
type recordMeter struct {
	mu     sync.Mutex
	events map[string][]string
}

func newRecordMeter() *recordMeter {
	return &recordMeter{events: make(map[string][]string)}
}

func (m *recordMeter) Start(queryID, text string, query progress.Canceler) {
	m.record(queryID, "start")
}

func (m *recordMeter) Progress(queryID string, transferred, total int64) {
	m.record(queryID, "progress")
}

func (m *recordMeter) End(queryID string) {
	m.record(queryID, "end")
}

func (m *recordMeter) record(queryID, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[queryID] = append(m.events[queryID], kind)
}

func (m *recordMeter) forQuery(queryID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events[queryID]...)
}

// connect runs a throwaway query so later queries in the test skip the
// handshake and the handle's id names the query itself.
func connect(t *testing.T, c *client.Client) {
	t.Helper()

	resCh := make(chan client.Result, 1)
	if _, err := c.Query(http.MethodGet, "/ping", func(res client.Result) { resCh <- res }); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	if res := waitResult(t, resCh); res.Error {
		t.Fatalf("connecting: %v", res.Message())
	}
}

func TestQueryStreamFragmentedJSON(t *testing.T) {
	// The controller emits whole JSON documents, but TCP is free to
	// split them anywhere; the feed must reassemble across chunks.
	fragments := []string{
		`{"action": "node.updated"`,
		`, "node": "n1"}{"action": `,
		`"node.started", "node": "n2"}`,
		`{"action": "ping"}`,
	}

	mux := controllerMux()
	mux.HandleFunc("/v2/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		f := w.(http.Flusher)
		for _, frag := range fragments {
			fmt.Fprint(w, frag)
			f.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	})

	c := testClient(t, mux)

	var mu sync.Mutex
	var values []any
	resCh := make(chan client.Result, 1)
	if _, err := c.Query(http.MethodGet, "/notifications", func(res client.Result) { resCh <- res },
		client.WithStream(func(v any, qctx map[string]any) {
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		})); err != nil {
		t.Fatalf("query: %v", err)
	}

	if res := waitResult(t, resCh); res.Error {
		t.Fatalf("unexpected error result: %v", res.Message())
	}

	want := []any{
		map[string]any{"action": "node.updated", "node": "n1"},
		map[string]any{"action": "node.started", "node": "n2"},
		map[string]any{"action": "ping"},
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("streamed values mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryStreamErrorStatusIsNotForwarded(t *testing.T) {
	mux := controllerMux()
	mux.HandleFunc("/v2/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "no such feed", "status": 404}`)
	})

	c := testClient(t, mux)

	var streamed int
	var mu sync.Mutex
	resCh := make(chan client.Result, 1)
	if _, err := c.Query(http.MethodGet, "/notifications", func(res client.Result) { resCh <- res },
		client.WithStream(func(v any, qctx map[string]any) {
			mu.Lock()
			streamed++
			mu.Unlock()
		})); err != nil {
		t.Fatalf("query: %v", err)
	}

	res := waitResult(t, resCh)
	if !res.Error {
		t.Fatal("expected an error result")
	}
	if got := res.Message(); got != "no such feed" {
		t.Errorf("message = %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if streamed != 0 {
		t.Errorf("error body leaked %d values onto the feed", streamed)
	}
}

func TestQueryStreamRawChunks(t *testing.T) {
	payload := []byte("pcap bytes, not json at all")

	mux := controllerMux()
	mux.HandleFunc("/v2/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	})

	c := testClient(t, mux)

	var mu sync.Mutex
	var got bytes.Buffer
	resCh := make(chan client.Result, 1)
	if _, err := c.Query(http.MethodGet, "/capture", func(res client.Result) { resCh <- res },
		client.WithStream(func(v any, qctx map[string]any) {
			chunk, ok := v.([]byte)
			if !ok {
				t.Errorf("raw feed delivered %T, want []byte", v)
				return
			}
			mu.Lock()
			got.Write(chunk)
			mu.Unlock()
		})); err != nil {
		t.Fatalf("query: %v", err)
	}

	if res := waitResult(t, resCh); res.Error {
		t.Fatalf("unexpected error result: %v", res.Message())
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got.Bytes(), payload) {
		t.Errorf("raw feed = %q, want %q", got.Bytes(), payload)
	}
}

func TestQueryProgressMeterOrdering(t *testing.T) {
	mux := controllerMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok": true}`)
	})

	meter := newRecordMeter()
	c := testClient(t, mux, client.WithMeter(meter))
	connect(t, c)

	resCh := make(chan client.Result, 1)
	r, err := c.Query(http.MethodPost, "/projects", func(res client.Result) { resCh <- res },
		client.WithBody(map[string]any{"name": "lab1"}))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	waitResult(t, resCh)
	<-r.Done()

	events := meter.forQuery(r.QueryID())
	if len(events) < 3 {
		t.Fatalf("events = %v, want start/progress/end", events)
	}
	if events[0] != "start" {
		t.Errorf("first event = %q, want start", events[0])
	}
	if events[len(events)-1] != "end" {
		t.Errorf("last event = %q, want end", events[len(events)-1])
	}
	for _, e := range events[1 : len(events)-1] {
		if e != "progress" {
			t.Errorf("unexpected interior event %q in %v", e, events)
		}
	}
}

func TestQueryWithoutProgressSkipsStart(t *testing.T) {
	mux := controllerMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	meter := newRecordMeter()
	c := testClient(t, mux, client.WithMeter(meter))
	connect(t, c)

	resCh := make(chan client.Result, 1)
	r, err := c.Query(http.MethodGet, "/projects", func(res client.Result) { resCh <- res },
		client.WithoutProgress())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	waitResult(t, resCh)
	<-r.Done()

	for _, e := range meter.forQuery(r.QueryID()) {
		if e == "start" || e == "progress" {
			t.Errorf("suppressed query still reported %q", e)
		}
	}
}

func TestCancelQuery(t *testing.T) {
	release := make(chan struct{})

	mux := controllerMux()
	mux.HandleFunc("/v2/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/v2/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})

	meter := newRecordMeter()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	c := clientFor(t, ts.URL, client.WithMeter(meter))
	connect(t, c)

	resCh := make(chan client.Result, 1)
	r, err := c.Query(http.MethodGet, "/notifications", func(res client.Result) { resCh <- res },
		client.WithoutTimeout())
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	c.CancelQuery(r.QueryID())

	res := waitResult(t, resCh)
	if !res.Error {
		t.Fatal("expected an error result for the aborted query")
	}
	if r.Err() == nil {
		t.Error("expected a transport error on the handle")
	}

	var ended bool
	for _, e := range meter.forQuery(r.QueryID()) {
		if e == "end" {
			ended = true
		}
	}
	if !ended {
		t.Error("aborted query never reported end to the meter")
	}
}

func TestCancelQueryUnknownID(t *testing.T) {
	mux := controllerMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	c := testClient(t, mux)

	// Canceling an id that is no longer (or never was) in flight is a
	// no-op rather than a panic.
	c.CancelQuery("no-such-query")
}
