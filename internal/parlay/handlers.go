package parlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vodeneev/parlaybet/internal/pkg/metrics"
	"github.com/Vodeneev/parlaybet/internal/pkg/validation"
)

const (
	maxRequestBody = 1 << 20
	maxBatchSize   = 200
)

// RegisterHTTP registers validation endpoints onto mux.
func (p *Pipeline) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/parlays/validate", timed("/parlays/validate", p.handleValidate))
	mux.HandleFunc("/parlays/validate/batch", timed("/parlays/validate/batch", p.handleValidateBatch))
	mux.HandleFunc("/sportsbooks", timed("/sportsbooks", p.handleSportsbooks))
}

func (p *Pipeline) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method)
		return
	}
	var req Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid parlay", err.Error())
		return
	}

	report := p.Validate(r.Context(), req)
	writeJSON(w, http.StatusOK, report)
}

type batchRequest struct {
	Requests []Request `json:"requests"`
}

type batchResponse struct {
	Reports []Report `json:"reports"`
	Count   int      `json:"count"`
}

func (p *Pipeline) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method)
		return
	}
	var body batchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(body.Requests) > maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch too large", fmt.Sprintf("max %d requests", maxBatchSize))
		return
	}
	for i, req := range body.Requests {
		if err := validateRequest(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid parlay", fmt.Sprintf("request %d: %v", i, err))
			return
		}
	}

	reports := p.ValidateBatch(r.Context(), body.Requests)
	writeJSON(w, http.StatusOK, batchResponse{Reports: reports, Count: len(reports)})
}

func (p *Pipeline) handleSportsbooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method)
		return
	}
	table := p.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"sportsbooks": table.Sportsbooks(),
		"strictest":   table.Strictest().ID,
	})
}

func validateRequest(req Request) error {
	var minLegs error
	if req.MinLegs < 0 {
		minLegs = fmt.Errorf("min_legs must be >= 0, got %d", req.MinLegs)
	}
	return errors.Join(validation.ValidateLegs(req.Legs), validation.ValidateEvidence(req.Evidence), minLegs)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "details": details})
}

func timed(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		metrics.HTTPRequestSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
