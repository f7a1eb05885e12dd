package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/events"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/pipeline"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse/warehousetest"
	"github.com/gorilla/mux"
)

func newService(t *testing.T) (*Service, *events.Recorder) {
	t.Helper()
	db := warehousetest.Open(t)
	repo := NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rec := &events.Recorder{}
	return NewService(repo, rec, 0), rec
}

func TestTrackRecordsCompletedRun(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	run, err := svc.Track(ctx, KindImport, "/data", map[string]interface{}{"workers": 2},
		func(ctx context.Context, report func(pipeline.BatchReport)) (pipeline.Summary, error) {
			report(pipeline.BatchReport{Size: 3, Processed: 2, Skipped: 1})
			return pipeline.Summary{Batches: 1, Processed: 2, Skipped: 1}, nil
		})
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	stored, err := svc.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusCompleted || stored.Processed != 2 || stored.Skipped != 1 || stored.FinishedAt == nil {
		t.Fatalf("unexpected run %+v", stored)
	}
	if got := rec.OfType(models.EventRunFinished); len(got) != 1 {
		t.Fatalf("expected a run.finished event, got %d", len(got))
	}
}

func TestTrackStatusFollowsWorkError(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	boom := errors.New("boom")
	run, err := svc.Track(ctx, KindExport, "", nil, func(context.Context, func(pipeline.BatchReport)) (pipeline.Summary, error) {
		return pipeline.Summary{Failed: 1}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("work error must be returned, got %v", err)
	}
	if run.Status != StatusFailed || run.Error != "boom" {
		t.Fatalf("unexpected failed run %+v", run)
	}

	run, _ = svc.Track(ctx, KindClassify, "", nil, func(context.Context, func(pipeline.BatchReport)) (pipeline.Summary, error) {
		return pipeline.Summary{}, context.Canceled
	})
	if run.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", run.Status)
	}

	if _, err := svc.Track(ctx, "reindex", "", nil, nil); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
}

func TestHTTPHandlerServesRuns(t *testing.T) {
	svc, _ := newService(t)
	run, err := svc.Track(context.Background(), KindManifest, "all", nil,
		func(context.Context, func(pipeline.BatchReport)) (pipeline.Summary, error) {
			return pipeline.Summary{Processed: 4}, nil
		})
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	router := mux.NewRouter()
	NewHTTPHandler(svc).Register(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got Run
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != run.ID || got.Processed != 4 {
		t.Fatalf("unexpected body %+v", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs?kind=bogus", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rr.Code)
	}
}
