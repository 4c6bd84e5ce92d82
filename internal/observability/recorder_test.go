package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"flockcore/internal/core"
	"flockcore/internal/infra/persistence/memory"
)

var testNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

func TestObserveCountsOperations(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()
	rec.Observe(ctx, "add_eggs", true, 2*time.Millisecond)
	rec.Observe(ctx, "add_eggs", true, time.Millisecond)
	rec.Observe(ctx, "add_eggs", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("add_eggs", "success")); got != 2 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("add_eggs", "error")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if n := testutil.CollectAndCount(rec.operations); n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}

func TestObserveSync(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveSync("pull", "adopted")
	rec.ObserveSync("pull", "adopted")
	rec.ObserveSync("push", "error")
	if got := testutil.ToFloat64(rec.syncs.WithLabelValues("pull", "adopted")); got != 2 {
		t.Fatalf("pull adopted = %v", got)
	}
}

func TestTrackFollowsStore(t *testing.T) {
	rec := NewRecorder()
	svc := core.NewInMemoryService(memory.NewStore(), core.FixedCalendar(testNow), core.TimeOrderedIDs{},
		core.WithMetricsRecorder(rec))
	stop := rec.Track(svc.Store())
	defer stop()

	if got := testutil.ToFloat64(rec.records.WithLabelValues("eggs")); got != 0 {
		t.Fatalf("initial eggs gauge = %v", got)
	}
	ctx := context.Background()
	if _, _, err := svc.AddEggs(ctx, core.EggRecord{Count: 5}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	if _, _, err := svc.AddEggs(ctx, core.EggRecord{Count: 3}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	if got := testutil.ToFloat64(rec.records.WithLabelValues("eggs")); got != 2 {
		t.Fatalf("eggs gauge = %v", got)
	}
	stop()
	if _, _, err := svc.AddEggs(ctx, core.EggRecord{Count: 1}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	if got := testutil.ToFloat64(rec.records.WithLabelValues("eggs")); got != 2 {
		t.Fatalf("gauge moved after stop: %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	rec := NewRecorder()
	rec.Observe(context.Background(), "reset", true, time.Millisecond)
	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `flockcore_operations_total{operation="reset",status="success"} 1`) {
		t.Fatalf("unexpected exposition:\n%s", body)
	}
}
