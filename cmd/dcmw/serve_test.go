package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/modality"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse/warehousetest"
)

func TestRouterServesProbesAndAPI(t *testing.T) {
	db := warehousetest.Open(t)
	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ledger := runs.NewService(runs.NewRepository(db), nil, 0)
	router := newRouter(&config.Config{MaxRequestBody: 1024}, db, ledger,
		modality.NewHTTPHandler(warehouse.NewRepository(db), modality.NewClassifier(db, nil)))

	for path, want := range map[string]int{
		"/health":                    http.StatusOK,
		"/ready":                     http.StatusOK,
		"/metrics":                   http.StatusOK,
		"/api/v1/runs":               http.StatusOK,
		"/api/v1/runs/missing":       http.StatusNotFound,
		"/api/v1/studies/1/protocol": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rec.Code)
		}
		if path == "/metrics" && !strings.Contains(rec.Body.String(), "dcmw_units_total") {
			t.Fatalf("metrics exposition missing counters: %s", rec.Body.String())
		}
	}
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"init-db", "import", "classify", "export", "manifest", "serve"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
}
