package modality

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse/warehousetest"
	"github.com/gorilla/mux"
)

func TestHTTPClassifyThenRead(t *testing.T) {
	db := warehousetest.Open(t)
	s := seedPhilipsStudy(t, db, "T2", `ORIGINAL\PRIMARY\M_SE\M\SE`)

	router := mux.NewRouter()
	NewHTTPHandler(warehouse.NewRepository(db), NewClassifier(db, nil)).Register(router.PathPrefix("/api/v1").Subrouter())
	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}
	studyID := strconv.FormatInt(s.study.ID, 10)
	seriesID := strconv.FormatInt(s.series.ID, 10)

	rec := do(http.MethodGet, "/api/v1/studies/"+studyID+"/protocol")
	if rec.Code != http.StatusOK {
		t.Fatalf("protocol before classification: %d", rec.Code)
	}
	var proto protocolResponse
	if err := json.NewDecoder(rec.Body).Decode(&proto); err != nil || proto.Protocol != nil {
		t.Fatalf("unclassified study should have no protocol: %+v %v", proto, err)
	}

	rec = do(http.MethodPost, "/api/v1/studies/"+studyID+"/classify")
	if rec.Code != http.StatusOK {
		t.Fatalf("classify: %d %s", rec.Code, rec.Body.String())
	}
	var classified map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&classified); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if classified["variants"].(map[string]any)[seriesID] != "T2W" {
		t.Fatalf("unexpected variants %v", classified["variants"])
	}

	rec = do(http.MethodGet, "/api/v1/series/"+seriesID+"/modality")
	var mod modalityResponse
	if err := json.NewDecoder(rec.Body).Decode(&mod); err != nil || mod.Variant != "T2W" {
		t.Fatalf("unexpected modality %+v %v", mod, err)
	}

	rec = do(http.MethodGet, "/api/v1/studies/"+studyID+"/protocol")
	if err := json.NewDecoder(rec.Body).Decode(&proto); err != nil || proto.Protocol == nil {
		t.Fatalf("protocol should be stored after classification: %+v %v", proto, err)
	}
}

func TestHTTPErrors(t *testing.T) {
	router := mux.NewRouter()
	db := warehousetest.Open(t)
	NewHTTPHandler(warehouse.NewRepository(db), NewClassifier(db, nil)).Register(router)

	for path, want := range map[string]int{
		"/studies/abc/protocol": http.StatusBadRequest,
		"/studies/42/protocol":  http.StatusNotFound,
		"/series/42/modality":   http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
}
