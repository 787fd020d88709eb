package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/treerule/internal/pathstore"
)

const depthTwoDOT = `digraph Tree {
node [shape=box] ;
0 [label="SIZEX <= 1.4005\ngini = 0.0088\nsamples = 327450\nvalue = [138, 358, 1, 949, 2, 326002]"] ;
1 [label="POSX <= 179.4\ngini = 0.0039\nsamples = 295944\nvalue = [138, 303, 1, 137, 2, 295363]"] ;
0 -> 1 [labeldistance=2.5, labelangle=45, headlabel="True"] ;
2 [label="gini = 0.0031\nsamples = 293112\nvalue = [138, 171, 1, 137, 2, 292663]"] ;
1 -> 2 ;
3 [label="gini = 0.0889\nsamples = 2832\nvalue = [0, 132, 0, 0, 0, 2700]"] ;
1 -> 3 ;
4 [label="POSY <= 32.65\ngini = 0.0729\nsamples = 31506\nvalue = [0, 55, 0, 812, 0, 30639]"] ;
0 -> 4 [labeldistance=2.5, labelangle=-45, headlabel="False"] ;
5 [label="gini = 0.1687\nsamples = 7611\nvalue = [0, 47, 0, 656, 0, 6908]"] ;
4 -> 5 ;
6 [label="gini = 0.0136\nsamples = 23895\nvalue = [0, 8, 0, 156, 0, 23731]"] ;
4 -> 6 ;
}`

// fakePathstore records writes. Keys listed in failing answer 503 for
// their first failN attempts.
type fakePathstore struct {
	mu      sync.Mutex
	nodes   map[string]pathstore.NodeRequest
	links   []pathstore.LinkRequest
	tries   map[string]int
	failing map[string]int
}

func newFakePathstore() *fakePathstore {
	return &fakePathstore{
		nodes:   make(map[string]pathstore.NodeRequest),
		tries:   make(map[string]int),
		failing: make(map[string]int),
	}
}

func (f *fakePathstore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	switch {
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/kv/"):
		key := strings.TrimPrefix(r.URL.Path, "/kv/")
		f.tries[key]++
		if f.tries[key] <= f.failing[key] {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var req pathstore.NodeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nodes[key] = req
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPut && r.URL.Path == "/links":
		var req pathstore.LinkRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.links = append(f.links, req)
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func testWorker(t *testing.T, ps *pathstore.Client) (*Worker, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	w := NewWorker(ps, slog.New(slog.NewTextHandler(io.Discard, nil)), NewExtractionStats(time.Hour), metrics, 0)
	w.backoff = func(int) time.Duration { return 0 }
	return w, metrics
}

func TestWorker_ExtractOnly(t *testing.T) {
	w, metrics := testWorker(t, nil)
	job := NewJob("job-1", "t1", "tree.dot", "", []byte(depthTwoDOT))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 4, snap.Progress.Leaves)
	require.Equal(t, 0, snap.Progress.Published)
	require.Equal(t, []int{2, 3, 5, 6}, job.Result().IDs())
	require.Nil(t, job.FileData())
	require.Equal(t, 1, w.stats.Snapshot().Count)
	require.Equal(t, 4.0, testutil.ToFloat64(metrics.LeavesExtracted))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsTotal.WithLabelValues("completed")))
}

func TestWorker_UnsupportedExtension(t *testing.T) {
	w, metrics := testWorker(t, nil)
	job := NewJob("job-2", "t2", "tree.pdf", "", []byte("%PDF"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "extracting", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	require.Contains(t, snap.Progress.Errors[0], "unsupported file extension")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsTotal.WithLabelValues("failed")))
}

func TestWorker_MalformedTree(t *testing.T) {
	w, _ := testWorker(t, nil)
	job := NewJob("job-3", "t3", "tree.dot", "", []byte("digraph Tree {\n0 [label=\"oops\"] ;\n}"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Nil(t, job.Result())
	require.Contains(t, snap.Progress.Errors[0], "extract:")
}

func TestWorker_Publish(t *testing.T) {
	fake := newFakePathstore()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ps := pathstore.NewClient(srv.URL, "key")
	defer ps.Close()

	// One transient failure on a leaf is retried.
	fake.failing["rules/t4/leaves/3"] = 1

	w, metrics := testWorker(t, ps)
	job := NewJob("job-4", "t4", "tree.dot", "Depth two", []byte(depthTwoDOT))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Progress.Errors)
	require.Equal(t, 4, snap.Progress.Published)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishRetries))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.nodes, 5)
	meta := fake.nodes["rules/t4/meta"]
	require.Equal(t, "treerule:t4", meta.Source)
	require.Equal(t, "Depth two", meta.Value.(map[string]any)["title"])

	leaf := fake.nodes["rules/t4/leaves/3"]
	value := leaf.Value.(map[string]any)
	require.Equal(t, "POSX > 179.4 and SIZEX <= 1.4005", value["conjunction"])
	require.InDelta(t, 1-0.0889, leaf.Salience, 1e-12)

	require.Len(t, fake.links, 4)
	for _, l := range fake.links {
		require.Equal(t, "rules/t4/meta", l.To)
		require.True(t, strings.HasPrefix(l.From, "rules/t4/leaves/"))
	}
}

func TestWorker_PublishPartial(t *testing.T) {
	fake := newFakePathstore()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ps := pathstore.NewClient(srv.URL, "key")
	defer ps.Close()

	fake.failing["rules/t5/leaves/6"] = MaxRetries

	w, metrics := testWorker(t, ps)
	job := NewJob("job-5", "t5", "tree.dot", "", []byte(depthTwoDOT))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusPartial, snap.Status)
	require.Equal(t, 3, snap.Progress.Published)
	require.Len(t, snap.Progress.Errors, 1)
	require.Contains(t, snap.Progress.Errors[0], "leaf 6:")
	require.Equal(t, float64(MaxRetries-1), testutil.ToFloat64(metrics.PublishRetries))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, MaxRetries, fake.tries["rules/t5/leaves/6"])
}

func TestWorker_PublishMetaFailure(t *testing.T) {
	fake := newFakePathstore()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ps := pathstore.NewClient(srv.URL, "key")
	defer ps.Close()

	fake.failing["rules/t6/meta"] = MaxRetries

	w, _ := testWorker(t, ps)
	job := NewJob("job-6", "t6", "tree.dot", "", []byte(depthTwoDOT))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "publishing", snap.Phase)
	require.Equal(t, 0, snap.Progress.Published)
	// The table is still available for reports.
	require.Equal(t, 4, job.Result().Len())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Empty(t, fake.links)
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&pathstore.RetryableError{StatusCode: 503}))
	require.False(t, IsRetryable(io.EOF))
	require.False(t, IsRetryable(nil))
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 8 {
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		d := Backoff(attempt)
		require.GreaterOrEqual(t, d, base)
		require.Less(t, d, base+base/2)
	}
}
