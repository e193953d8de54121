package workers

import (
	"bytes"
	"context"
	"direct-chat/observability"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (c fixedCounter) Connections() int { return int(c) }
func (c fixedCounter) Count() int       { return int(c) }

type fakeSampler struct {
	stats observability.ProcessStats
	err   error
}

func (s fakeSampler) Sample() (observability.ProcessStats, error) { return s.stats, s.err }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines(t *testing.T) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestStatsWorker_Report(t *testing.T) {
	req := require.New(t)
	out := &lockedBuffer{}
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	sampler := fakeSampler{stats: observability.ProcessStats{PID: 42, RSSBytes: 1024, Status: "R"}}
	worker := NewStatsWorker(fixedCounter(3), fixedCounter(2), sampler, time.Hour, log)

	// When one sample is reported
	worker.Report()

	// Then counters and process attributes are logged together
	lines := out.lines(t)
	req.Len(lines, 1)
	req.Equal("Server stats", lines[0]["msg"])
	req.EqualValues(3, lines[0]["connections"])
	req.EqualValues(2, lines[0]["online_users"])
	req.EqualValues(42, lines[0]["pid"])
	req.EqualValues(1024, lines[0]["rss_bytes"])
}

func TestStatsWorker_Report_Without_Process_Stats(t *testing.T) {
	req := require.New(t)
	out := &lockedBuffer{}
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	worker := NewStatsWorker(fixedCounter(1), fixedCounter(0), fakeSampler{err: fmt.Errorf("no proc")}, time.Hour, log)
	worker.Report()

	lines := out.lines(t)
	req.Len(lines, 1)
	req.EqualValues(1, lines[0]["connections"])
	req.NotContains(lines[0], "pid")
}

func TestStatsWorker_Run_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	out := &lockedBuffer{}
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	worker := NewStatsWorker(fixedCounter(0), fixedCounter(0), nil, 10*time.Millisecond, log)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
	req.NotEmpty(out.lines(t))
}

func TestHTTPServerWorker_Serves_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	worker := NewHTTPServerWorker(&http.Server{Handler: mux}, time.Second, testLogger()).
		WithListener(listener)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Given the server answers
	resp, err := http.Get("http://" + listener.Addr().String() + "/ping")
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.NoError(resp.Body.Close())
	req.Equal("pong", string(body))

	// When the context is cancelled
	cancel()

	// Then the worker returns nil so the supervisor does not restart it
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("http server worker did not stop")
	}
}

func TestHTTPServerWorker_Returns_Listen_Error(t *testing.T) {
	req := require.New(t)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer busy.Close()

	worker := NewHTTPServerWorker(&http.Server{Addr: busy.Addr().String()}, time.Second, testLogger())
	req.Error(worker.Run(context.Background()))
}
