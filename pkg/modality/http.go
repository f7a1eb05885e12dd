package modality

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/warehouse"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	repo       *warehouse.Repository
	classifier *Classifier
}

func NewHTTPHandler(repo *warehouse.Repository, classifier *Classifier) *HTTPHandler {
	return &HTTPHandler{repo: repo, classifier: classifier}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/studies/{id}/protocol", h.handleProtocol).Methods(http.MethodGet)
	router.HandleFunc("/studies/{id}/classify", h.handleClassify).Methods(http.MethodPost)
	router.HandleFunc("/series/{id}/modality", h.handleModality).Methods(http.MethodGet)
}

type protocolResponse struct {
	StudyID          int64   `json:"study_id"`
	StudyInstanceUID string  `json:"study_instance_uid"`
	Protocol         *string `json:"protocol"`
}

func (h *HTTPHandler) handleProtocol(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	study, err := h.repo.GetStudy(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "study")
		return
	}

	resp := protocolResponse{StudyID: study.ID, StudyInstanceUID: study.StudyInstanceUID}
	if study.Protocol != nil {
		resp.Protocol = study.Protocol.Protocol
	}
	writeJSON(w, http.StatusOK, resp)
}

type modalityResponse struct {
	SeriesID          int64  `json:"series_id"`
	SeriesInstanceUID string `json:"series_instance_uid"`
	Variant           string `json:"variant,omitempty"`
	Row               any    `json:"row,omitempty"`
}

func (h *HTTPHandler) handleModality(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	series, err := h.repo.GetSeriesWithModality(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "series")
		return
	}

	resp := modalityResponse{SeriesID: series.ID, SeriesInstanceUID: series.SeriesInstanceUID}
	switch {
	case series.T1W != nil:
		resp.Variant, resp.Row = T1W{}.Kind(), series.T1W
	case series.T2W != nil:
		resp.Variant, resp.Row = T2W{}.Kind(), series.T2W
	case series.MDixon != nil:
		resp.Variant, resp.Row = MDixon{}.Kind(), series.MDixon
	case series.DWI != nil:
		resp.Variant, resp.Row = DWI{}.Kind(), series.DWI
	case series.MIP != nil:
		resp.Variant, resp.Row = MIP{}.Kind(), series.MIP
	case series.Undetermined != nil:
		resp.Variant, resp.Row = Undetermined{}.Kind(), series.Undetermined
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyResponse struct {
	*StudyClassification
	Variants map[string]string `json:"variants"`
}

func (h *HTTPHandler) handleClassify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.classifier.ClassifyStudy(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "study")
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{StudyClassification: out, Variants: out.Variants()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, warehouse.ErrNotFound) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	logger.Log.WithError(err).Errorf("failed to load %s", what)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
