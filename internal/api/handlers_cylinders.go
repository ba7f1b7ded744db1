// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func (s *Server) actionRequest(r *http.Request) (manager.ActionRequest, error) {
	action, err := lifecycle.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		return manager.ActionRequest{}, err
	}
	var body actionBody
	if err := decodeBody(r, &body); err != nil {
		return manager.ActionRequest{}, err
	}
	req := manager.ActionRequest{
		Serial:     chi.URLParam(r, "serial"),
		Action:     action,
		CustomerID: body.CustomerID,
		WorkerID:   body.WorkerID,
		Memo:       body.Memo,
		Force:      body.Force,
	}
	if body.NextExpiry != nil {
		req.NextExpiry = *body.NextExpiry
	}
	return req, nil
}

// handleAction applies one action and commits it when it validates.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req, err := s.actionRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.engine.Apply(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out.Forced && out.Committed() {
		s.audit.ForcedOverride(r.Context(), req.WorkerID, out.Serial, string(out.Action), out.Result.Warning())
	}
	writeJSON(w, statusForOutcome(out.Result), toOutcome(out))
}

// handleCheck answers "would this action pass right now" without committing.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, err := s.actionRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.engine.Check(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, statusForOutcome(out.Result), toOutcome(out))
}

func (s *Server) handleGetCylinder(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.State(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto := cylinderDTO{
		Cylinder:      view.Cylinder,
		Derived:       view.Derived,
		HistoryLength: len(view.History),
	}
	if withHistory, _ := strconv.ParseBool(r.URL.Query().Get("history")); withHistory {
		dto.History = view.History
	}
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var cyl model.Cylinder
	if err := decodeBody(r, &cyl); err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := s.engine.Register(r.Context(), cyl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/cylinders/"+stored.Serial)
	writeJSON(w, http.StatusCreated, stored)
}
