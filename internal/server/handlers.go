package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/util"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeQueryError maps a rejected query to 400 and anything else to 500.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if engine.IsQueryError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.holder.Load().Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"source":    st.Source,
		"hash":      st.Hash,
		"records":   st.Records,
		"skipped":   st.Skipped,
		"check_ins": st.CheckIns,
		"built_at":  st.BuiltAt,
	})
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	q, err := engine.ParseProgressionQuery(r.URL.Query())
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.holder.Load().Progression(q))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q, err := engine.ParseSeriesQuery(r.URL.Query())
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.holder.Load().Series(q))
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	q, err := engine.ParseCurveQuery(r.URL.Query())
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.holder.Load().Curve(q))
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q, err := engine.ParseAnomaliesQuery(r.URL.Query())
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	report := s.holder.Load().Velocity(q)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cutoff":               util.FormatDate(report.Cutoff),
		"days":                 report.WindowDays,
		"velocity_buckets":     report.VelocityBuckets,
		"availability_buckets": report.AvailabilityBuckets,
		"candidates":           report.Candidates,
		"results":              report.Results,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.reload(r.Context(), "api")
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("reload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
