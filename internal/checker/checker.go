package checker

import (
	"fmt"
	"math"

	"amsprobe/domain/port"
	"amsprobe/domain/verdict"
	"amsprobe/internal"
	"amsprobe/internal/regression"
)

// Cell is one rendered table cell with its color status.
type Cell struct {
	Text   string
	Status verdict.Status
}

// GainRow compares one term of the golden model with the revised model.
type GainRow struct {
	Term        string
	Golden      regression.Estimate
	Revised     regression.Estimate
	Error       regression.Estimate
	SensGolden  regression.Estimate
	SensRevised regression.Estimate
	Status      verdict.Status
}

const (
	// SimGolden and SimRevised index the simulated side of residual tables.
	SimGolden = iota
	SimRevised
)

const (
	// ExtGolden and ExtRevised index the extracted (fitted) side.
	ExtGolden = iota
	ExtRevised
)

// Result is the outcome of comparing one response.
type Result struct {
	Response       string
	Predictors     []string
	PinStatus      verdict.Status
	ResidualStatus verdict.Status
	Gain           []GainRow
	// ResidualMax and ResidualStd are indexed [Sim*][Ext*].
	ResidualMax [2][2]Cell
	ResidualStd [2][2]Cell
}

// UnitChecker compares a golden and a revised regression model.
type UnitChecker struct {
	// SensitivityTol is the normalized input sensitivity, in percent, below
	// which a term is considered noise.
	SensitivityTol float64
	logger         *internal.Logger
}

// NewUnitChecker returns a checker with the given sensitivity tolerance.
func NewUnitChecker(stol float64, logger *internal.Logger) *UnitChecker {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &UnitChecker{SensitivityTol: stol, logger: logger.WithComponent("Checker")}
}

type residues struct {
	g2g, r2r, g2r, r2g []float64
}

// Run checks every response of the golden model. Gain cells are only judged
// when isPinCheck is set; otherwise the table is informational.
func (c *UnitChecker) Run(golden, revised *regression.Model, ph *port.Handler, isPinCheck bool) map[string]Result {
	out := make(map[string]Result)
	for _, dv := range golden.Responses() {
		abstol, gtol := math.Inf(1), 0.0
		if p, ok := ph.Get(dv); ok {
			abstol, gtol = p.AbsTol(), p.GainTol()
		}
		predictors := golden.Predictors(dv)
		res := Result{Response: dv, Predictors: predictors}
		res.Gain, res.PinStatus = c.compareGain(golden, revised, dv, predictors, gtol, isPinCheck)

		rs, err := crossValidate(golden, revised, dv)
		if err != nil {
			c.logger.Debug("cross validation of %s unavailable: %v", dv, err)
		}
		res.ResidualStatus, res.ResidualMax, res.ResidualStd = residueTable(rs, err, abstol)
		out[dv] = res
	}
	return out
}

func (c *UnitChecker) compareGain(golden, revised *regression.Model, dv string, predictors []string, gtol float64, isPinCheck bool) ([]GainRow, verdict.Status) {
	rows := make([]GainRow, len(predictors))
	pin := verdict.StatusSuccess
	for i, term := range predictors {
		row := GainRow{Term: term, Status: verdict.StatusNormal}
		if v, ok := golden.Coef(dv, term); ok {
			row.Golden = regression.Estimate{Value: v, Valid: true}
		}
		if v, ok := revised.Coef(dv, term); ok {
			row.Revised = regression.Estimate{Value: v, Valid: true}
		}
		if row.Golden.Valid && row.Revised.Valid {
			row.Error = regression.Estimate{Value: regression.RelError(row.Golden.Value, row.Revised.Value), Valid: true}
		}
		row.SensGolden = golden.Sensitivity(dv, term)
		row.SensRevised = revised.Sensitivity(dv, term)

		if isPinCheck && i > 0 {
			row.Status = c.judge(row, gtol)
			switch row.Status {
			case verdict.StatusFailure:
				pin = verdict.StatusFailure
			case verdict.StatusWarning:
				pin = verdict.Worst(pin, verdict.StatusWarning)
			}
		}
		rows[i] = row
	}
	return rows, pin
}

// judge applies the pin rules to one non-intercept term: both sensitivities
// below tolerance is a warning; a one-sided zero gain, gains of opposite sign
// or an error above gtol is a failure. Missing values are a warning.
func (c *UnitChecker) judge(row GainRow, gtol float64) verdict.Status {
	if !row.Golden.Valid || !row.Revised.Valid || !row.SensGolden.Valid || !row.SensRevised.Valid {
		return verdict.StatusWarning
	}
	if math.Abs(row.SensGolden.Value) < c.SensitivityTol && math.Abs(row.SensRevised.Value) < c.SensitivityTol {
		return verdict.StatusWarning
	}
	gg, gr := row.Golden.Value, row.Revised.Value
	if gg*gr < 0 || (gg*gr == 0 && math.Abs(gg)+math.Abs(gr) > 0) || math.Abs(row.Error.Value) > gtol {
		return verdict.StatusFailure
	}
	return verdict.StatusNormal
}

// crossValidate computes predicted minus simulated for the four pairings of
// golden/revised predictions and measurements.
func crossValidate(golden, revised *regression.Model, dv string) (residues, error) {
	var rs residues
	estG, err := golden.Predicted(dv)
	if err != nil {
		return rs, fmt.Errorf("golden: %w", err)
	}
	estR, err := revised.Predicted(dv)
	if err != nil {
		return rs, fmt.Errorf("revised: %w", err)
	}
	simG, ok := golden.Response(dv)
	if !ok {
		return rs, fmt.Errorf("golden has no response %s", dv)
	}
	simR, ok := revised.Response(dv)
	if !ok {
		return rs, fmt.Errorf("revised has no response %s", dv)
	}
	if len(estG) != len(simR) || len(estR) != len(simG) {
		return rs, fmt.Errorf("golden and revised sample counts differ")
	}
	diff := func(a, b []float64) []float64 {
		out := make([]float64, len(a))
		for i := range a {
			out[i] = a[i] - b[i]
		}
		return out
	}
	rs.g2g = diff(estG, simG)
	rs.r2r = diff(estR, simR)
	rs.g2r = diff(estG, simR)
	rs.r2g = diff(estR, simG)
	return rs, nil
}

func residueTable(rs residues, err error, abstol float64) (verdict.Status, [2][2]Cell, [2][2]Cell) {
	var maxT, stdT [2][2]Cell
	if err != nil {
		na := Cell{Text: "N/A", Status: verdict.StatusFailure}
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				maxT[i][j], stdT[i][j] = na, na
			}
		}
		return verdict.StatusFailure, maxT, stdT
	}
	status := verdict.StatusSuccess
	cell := func(v float64) Cell {
		if math.IsNaN(v) || math.Abs(v) > abstol {
			status = verdict.StatusFailure
			return Cell{Text: Engr(v), Status: verdict.StatusFailure}
		}
		return Cell{Text: Engr(v), Status: verdict.StatusNormal}
	}
	maxT[SimGolden][ExtGolden] = cell(regression.AbsMax(rs.g2g))
	maxT[SimRevised][ExtRevised] = cell(regression.AbsMax(rs.r2r))
	maxT[SimGolden][ExtRevised] = cell(regression.AbsMax(rs.r2g))
	maxT[SimRevised][ExtGolden] = cell(regression.AbsMax(rs.g2r))
	stdT[SimGolden][ExtGolden] = cell(regression.Std(rs.g2g))
	stdT[SimRevised][ExtRevised] = cell(regression.Std(rs.r2r))
	stdT[SimGolden][ExtRevised] = cell(regression.Std(rs.r2g))
	stdT[SimRevised][ExtGolden] = cell(regression.Std(rs.g2r))
	return status, maxT, stdT
}
