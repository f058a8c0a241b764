package testunit

import (
	"amsprobe/domain/verdict"
	"amsprobe/internal/checker"
)

// Report holds the checker results of a mode for all four model pairs.
// The pin verdict comes from SimpleSuggested and the accuracy verdict from
// FullSuggested; the other two are informational.
type Report struct {
	Simple          map[string]checker.Result
	SimpleSuggested map[string]checker.Result
	Full            map[string]checker.Result
	FullSuggested   map[string]checker.Result
}

func (u *TestUnit) report() *Report {
	m := u.models
	return &Report{
		Simple:          u.checker.Run(m.Simple.Golden, m.Simple.Revised, u.ph, true),
		SimpleSuggested: u.checker.Run(m.SimpleSuggested.Golden, m.SimpleSuggested.Revised, u.ph, true),
		Full:            u.checker.Run(m.Full.Golden, m.Full.Revised, u.ph, false),
		FullSuggested:   u.checker.Run(m.FullSuggested.Golden, m.FullSuggested.Revised, u.ph, true),
	}
}

// Verdicts returns the pin and accuracy status per response.
func (r *Report) Verdicts() (pin, residual map[string]verdict.Status) {
	pin = make(map[string]verdict.Status, len(r.SimpleSuggested))
	residual = make(map[string]verdict.Status, len(r.FullSuggested))
	for dv, res := range r.SimpleSuggested {
		pin[dv] = res.PinStatus
	}
	for dv, res := range r.FullSuggested {
		residual[dv] = res.ResidualStatus
	}
	return pin, residual
}
