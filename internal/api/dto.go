// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// actionBody is the JSON body of action and check requests.
type actionBody struct {
	CustomerID string     `json:"customer_id"`
	WorkerID   string     `json:"worker_id"`
	Memo       string     `json:"memo"`
	NextExpiry *time.Time `json:"next_expiry"`
	Force      bool       `json:"force"`
}

type resultDTO struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func toResult(r lifecycle.Result) resultDTO {
	msg := r.Message()
	if msg == "" {
		msg = r.Warning()
	}
	return resultDTO{Kind: r.Kind().String(), Code: string(r.Code()), Message: msg}
}

type outcomeDTO struct {
	Serial      string             `json:"serial"`
	Action      string             `json:"action"`
	Result      resultDTO          `json:"result"`
	Committed   bool               `json:"committed"`
	Forced      bool               `json:"forced,omitempty"`
	Previous    model.DerivedState `json:"previous"`
	State       model.DerivedState `json:"state"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

func toOutcome(o manager.Outcome) outcomeDTO {
	return outcomeDTO{
		Serial:      o.Serial,
		Action:      string(o.Action),
		Result:      toResult(o.Result),
		Committed:   o.Committed(),
		Forced:      o.Forced,
		Previous:    o.Previous,
		State:       o.State,
		Transaction: o.Transaction,
	}
}

type cylinderDTO struct {
	Cylinder      model.Cylinder      `json:"cylinder"`
	Derived       model.DerivedState  `json:"derived"`
	HistoryLength int                 `json:"history_length"`
	History       []model.Transaction `json:"history,omitempty"`
}
