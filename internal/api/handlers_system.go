// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/cylinderd/internal/audit"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
)

// handleAnomalies runs the detector over the current fleet.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Anomalies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit.NewReport(s.now(), list))
}

// handleSweep runs one lost sweep, or lists candidates with ?dry_run=true.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "sweeper_disabled"})
		return
	}
	now := s.now()
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	var (
		rep manager.SweepReport
		err error
	)
	if dryRun {
		var details []manager.SweepDetail
		details, err = s.sweeper.Candidates(r.Context(), now)
		rep = manager.SweepReport{Candidates: len(details), Details: details}
	} else {
		rep, err = s.sweeper.SweepOnce(r.Context(), now)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.audit.LostSweep(r.Context(), "api", rep.Candidates, rep.Reclassified, dryRun)
	writeJSON(w, http.StatusOK, rep)
}
