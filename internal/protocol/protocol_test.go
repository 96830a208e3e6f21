package protocol_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memstore/internal/embedding"
	"github.com/rcliao/memstore/internal/engine"
	"github.com/rcliao/memstore/internal/model"
	"github.com/rcliao/memstore/internal/protocol"
	"github.com/rcliao/memstore/internal/store"
)

func newServer(t *testing.T) *protocol.Server {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)

	e, err := engine.New(context.Background(), engine.Options{
		Store:    s,
		Embedder: embedding.NewHashEmbedder(512),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return protocol.NewServer(e)
}

// session feeds lines to the server and returns the decoded responses.
func session(t *testing.T, srv *protocol.Server, lines ...string) []map[string]any {
	t.Helper()
	var out strings.Builder
	require.NoError(t, srv.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out))

	var resps []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		resps = append(resps, m)
	}
	return resps
}

func TestStoreThenRetrieve(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv, `{"action":"store","content":"The capital of France is Paris."}`)
	require.Len(t, resps, 1)
	assert.Equal(t, "success", resps[0]["status"])
	key, ok := resps[0]["key"].(string)
	require.True(t, ok)
	require.NotEmpty(t, key)

	resps = session(t, srv, `{"action":"retrieve","key":"`+key+`"}`)
	require.Len(t, resps, 1)
	assert.Equal(t, "success", resps[0]["status"])
	rec := resps[0]["record"].(map[string]any)
	assert.Equal(t, "The capital of France is Paris.", rec["content"])
	assert.Equal(t, key, rec["key"])
}

func TestDuplicateKeyAndExactSearch(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{"action":"store","content":"The capital of France is Paris."}`,
		`{"action":"store_with_key","key":"rust-ownership","content":"Rust's ownership system ensures memory safety..."}`,
		`{"action":"store_with_key","key":"rust-ownership","content":"overwritten?"}`,
		`{"action":"retrieve","key":"rust-ownership"}`,
		`{"action":"search","query":"rust-ownership","mode":"exact","limit":5}`,
	)
	require.Len(t, resps, 5)

	assert.Equal(t, "rust-ownership", resps[1]["key"])

	assert.Equal(t, "error", resps[2]["status"])
	assert.Equal(t, model.KindDuplicateKey, resps[2]["error_kind"])
	msg, _ := resps[2]["message"].(string)
	assert.Equal(t, 1, strings.Count(msg, "duplicate key"), msg)

	rec := resps[3]["record"].(map[string]any)
	assert.Equal(t, "Rust's ownership system ensures memory safety...", rec["content"])

	results := resps[4]["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "rust-ownership", results[0].(map[string]any)["key"])
}

func TestHybridSearchDefaultMode(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{"action":"store_with_key","key":"france","content":"The capital of France is Paris."}`,
		`{"action":"store_with_key","key":"rust","content":"Rust's ownership system ensures memory safety."}`,
		`{"action":"store_with_key","key":"python","content":"Python manages memory with reference counting."}`,
		`{"action":"search","query":"capital city France","limit":5}`,
	)
	require.Len(t, resps, 4)
	results := resps[3]["results"].([]any)
	require.NotEmpty(t, results)
	first := results[0].(map[string]any)
	assert.Equal(t, "france", first["key"])
	assert.Contains(t, first, "score")
	assert.Contains(t, first, "created_at")
}

func TestEmptyCollectionsAreArrays(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{"action":"list"}`,
		`{"action":"search","query":"anything"}`,
	)
	require.Len(t, resps, 2)
	assert.Equal(t, []any{}, resps[0]["records"])
	assert.Equal(t, []any{}, resps[1]["results"])
}

func TestListAndStats(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{"action":"store_with_key","key":"a","content":"first note","metadata":{"tag":"x","n":1}}`,
		`{"action":"store_with_key","key":"b","content":"second note"}`,
		`{"action":"list"}`,
		`{"action":"stats"}`,
		`{"action":"stats"}`,
	)
	require.Len(t, resps, 5)

	records := resps[2]["records"].([]any)
	require.Len(t, records, 2)
	first := records[0].(map[string]any)
	assert.Equal(t, "a", first["key"])
	assert.Equal(t, "first note", first["content_preview"])
	assert.Equal(t, "x", first["metadata"].(map[string]any)["tag"])

	stats := resps[3]["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total_records"])
	assert.Equal(t, float64(3), stats["total_terms"])
	assert.Equal(t, resps[3], resps[4])
}

func TestErrorsDoNotStopLoop(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{not json`,
		``,
		`{"action":"fly"}`,
		`{"content":"no action"}`,
		`{"action":"store","content":""}`,
		`{"action":"store_with_key","key":"","content":"x"}`,
		`{"action":"retrieve","key":"missing"}`,
		`{"action":"search","query":""}`,
		`{"action":"search","query":"x","mode":"fuzzy"}`,
		`{"action":"search","query":"x","limit":0}`,
		`{"action":"search","query":"x","limit":"five"}`,
		`{"action":"store","content":"nested","metadata":{"a":{"b":1}}}`,
		`{"action":"store","content":"still alive"}`,
	)
	require.Len(t, resps, 12)

	wantKinds := []string{
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindNotFound,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
		model.KindInvalidInput,
	}
	for i, kind := range wantKinds {
		assert.Equal(t, "error", resps[i]["status"], "response %d", i)
		assert.Equal(t, kind, resps[i]["error_kind"], "response %d", i)
	}
	assert.Equal(t, "success", resps[11]["status"])

	msg, _ := resps[5]["message"].(string)
	assert.Equal(t, 1, strings.Count(msg, "not found"), msg)
}

func TestContextAction(t *testing.T) {
	srv := newServer(t)

	resps := session(t, srv,
		`{"action":"store","content":"Go channels coordinate goroutines."}`,
		`{"action":"context","query":"goroutines","budget":100}`,
	)
	require.Len(t, resps, 2)
	ctxResp := resps[1]["context"].(map[string]any)
	assert.Equal(t, float64(100), ctxResp["budget"])
	assert.Len(t, ctxResp["memories"], 1)
}

func TestServeHonoursCancellation(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	err := srv.Serve(ctx, strings.NewReader(`{"action":"list"}`), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestServeStopsOnCancelWhileWaitingForInput(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, pr, out) }()

	_, err := io.WriteString(pw, `{"action":"list"}`+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "success") }, 2*time.Second, 10*time.Millisecond)

	// The writer stays open, so the reader is blocked when we cancel.
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
