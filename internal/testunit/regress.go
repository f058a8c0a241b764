package testunit

import (
	"amsprobe/domain/port"
	"amsprobe/internal"
	"amsprobe/internal/regression"
	"amsprobe/internal/simulation"
	"amsprobe/internal/vector"
)

// phase2Iterations bounds the sensitivity/abstol pruning alternation.
const phase2Iterations = 10

// Pair is a golden and a revised model fitted with the same options.
type Pair struct {
	Golden  *regression.Model
	Revised *regression.Model
}

// Models are the regressions of one mode: first order without interaction
// (Simple) for the pin check and the configured expansion (Full) for the
// accuracy check, each as fitted and after pruning (Suggested).
type Models struct {
	Simple          Pair
	SimpleSuggested Pair
	Full            Pair
	FullSuggested   Pair
}

func newModels(ph *port.Handler, logger *internal.Logger) Models {
	pair := func() Pair {
		return Pair{Golden: regression.NewModel(ph, logger), Revised: regression.NewModel(ph, logger)}
	}
	return Models{Simple: pair(), SimpleSuggested: pair(), Full: pair(), FullSuggested: pair()}
}

type sample struct {
	predictors map[string][]float64
	golden     map[string][]float64
	revised    map[string][]float64
}

// sample builds the regression data of the first len(vectors) runs: the
// effective inputs minus the digital mode ports, and the measured outputs.
// Failed runs contribute zeros for missing outputs.
func (u *TestUnit) sample(vectors []vector.Vector, golden, revised []simulation.Result, mode vector.Vector) sample {
	in := vector.TableFromRows(u.ph.InputNames(), vectors)
	eff := vector.Effective(in, u.ph).Without(mode.Keys()...)
	g := measTable(golden, u.ph.OutputNames())
	r := measTable(revised, u.ph.OutputNames())
	if u.ph.HasDummyAnalogInput() {
		eff, g, r = eff.Replicate(dummyRows), g.Replicate(dummyRows), r.Replicate(dummyRows)
	}
	return sample{predictors: eff.Columns(), golden: g.Columns(), revised: r.Columns()}
}

func measTable(results []simulation.Result, outputs []string) *vector.Table {
	rows := make([]vector.Vector, len(results))
	for i, res := range results {
		rows[i] = res.Measurement
	}
	return vector.TableFromRows(outputs, rows)
}

func (u *TestUnit) regressionOptions() regression.Options {
	o := u.spec.Option
	opt := regression.Options{
		Basis:                o.Basis,
		Order:                o.Order,
		Interact:             o.Interact,
		PValueThreshold:      o.PValueThreshold,
		ConfidenceLevel:      o.ConfidenceLevel,
		SensitivityThreshold: o.SensitivityThreshold,
		DoNotRegress:         make(map[string][]string, len(o.DoNotRegress)),
		UserModel:            make(map[string]string, len(o.UserModel)),
	}
	for k, v := range o.DoNotRegress {
		opt.DoNotRegress[k] = append([]string(nil), v...)
	}
	for k, v := range o.UserModel {
		opt.UserModel[k] = v
	}
	return opt
}

// regress refits all eight models. With filtered set the suggested models
// also drop terms whose confidence interval straddles zero.
func (m Models) regress(s sample, opt regression.Options) error {
	if err := multiphase(m.Simple, m.SimpleSuggested, s, opt.Simple(), true); err != nil {
		return err
	}
	return multiphase(m.Full, m.FullSuggested, s, opt, false)
}

// multiphase fits fit with the abstol-pruned formulas and keeps refining
// sgt from there. Suggestions always come from the golden model and are
// applied to both sides. Confidence-interval pruning is not part of the
// loop; SuggestByConfidenceInterval stays available to callers.
func multiphase(fit, sgt Pair, s sample, opt regression.Options, simple bool) error {
	if err := fit.execute(s, opt); err != nil {
		return err
	}
	opt = opt.WithUserModel(fit.Golden.SuggestByAbsTol(simple))
	if err := fit.execute(s, opt); err != nil {
		return err
	}

	if err := sgt.execute(s, opt); err != nil {
		return err
	}
	for i := 1; i < phase2Iterations; i++ {
		opt = opt.WithUserModel(sgt.Golden.SuggestBySensitivity())
		if err := sgt.execute(s, opt); err != nil {
			return err
		}
		opt = opt.WithUserModel(sgt.Golden.SuggestByAbsTol(false))
		if err := sgt.execute(s, opt); err != nil {
			return err
		}
	}
	return nil
}

func (p Pair) execute(s sample, opt regression.Options) error {
	if err := p.Golden.LoadData(s.golden, s.predictors, opt); err != nil {
		return err
	}
	if err := p.Revised.LoadData(s.revised, s.predictors, opt); err != nil {
		return err
	}
	if err := p.Golden.Run(); err != nil {
		return err
	}
	return p.Revised.Run()
}
