package claim

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"
)

const defaultHistoryLimit = 50

// Recorder persists claims received by the collaborator.
type Recorder interface {
	InsertClaim(ctx context.Context, rec model.ClaimRecord) error
	ListClaims(ctx context.Context, limit int) ([]model.ClaimRecord, error)
	GetClaim(ctx context.Context, id string) (model.ClaimRecord, bool, error)
}

type handler struct {
	rec Recorder
	now func() time.Time
}

// NewHandler serves the collaborator side of the claim protocol:
// POST /claim, GET /claims and GET /claims/{id}.
func NewHandler(rec Recorder) http.Handler {
	h := &handler{rec: rec, now: time.Now}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /claim", h.handleClaim)
	mux.HandleFunc("GET /claims", h.handleHistory)
	mux.HandleFunc("GET /claims/{id}", h.handleValidate)
	return mux
}

func (h *handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	var in wireClaim
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, wireResponse{Error: "invalid claim body"})
		return
	}
	if in.EnergyPoints <= 0 || in.PiStage == "" {
		writeJSON(w, http.StatusUnprocessableEntity, wireResponse{Error: "claim needs energyPoints > 0 and piStage"})
		return
	}
	ts := h.now()
	if in.Timestamp > 0 {
		ts = time.UnixMilli(in.Timestamp)
	}
	id := in.ID
	if id == "" {
		id = NewID(ts)
	}
	rec := model.ClaimRecord{
		ID:           id,
		Timestamp:    ts,
		EnergyPoints: in.EnergyPoints,
		StageID:      in.PiStage,
		Outcome:      OutcomeReceived,
		Attempts:     1,
	}
	if err := h.rec.InsertClaim(r.Context(), rec); err != nil {
		log.Printf("claim server: failed to record %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, wireResponse{Error: "failed to record claim"})
		return
	}
	writeJSON(w, http.StatusOK, wireResponse{Success: true, ClaimID: id})
}

type historyEntry struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	EnergyPoints int    `json:"energyPoints"`
	PiStage      string `json:"piStage"`
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, wireResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := h.rec.ListClaims(r.Context(), limit)
	if err != nil {
		log.Printf("claim server: failed to list claims: %v", err)
		writeJSON(w, http.StatusInternalServerError, wireResponse{Error: "failed to list claims"})
		return
	}
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, historyEntry{
			ID:           rec.ID,
			Timestamp:    rec.Timestamp.UnixMilli(),
			EnergyPoints: rec.EnergyPoints,
			PiStage:      rec.StageID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	_, ok, err := h.rec.GetClaim(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("claim server: failed to load claim: %v", err)
		writeJSON(w, http.StatusInternalServerError, wireResponse{Error: "failed to load claim"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("claim server: failed to write response: %v", err)
	}
}
