// Package pipeline chains a feature transformer with a regressor so the pair
// can be cross-validated and tuned as one model.
package pipeline

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treestack/core/model"
	"github.com/YuminosukeSato/treestack/linear"
	"github.com/YuminosukeSato/treestack/metrics"
	"github.com/YuminosukeSato/treestack/pkg/errors"
	"github.com/YuminosukeSato/treestack/preprocessing"
)

// Step name prefixes accepted by SetParams, e.g. "model__alpha".
const (
	ScalerStep = "scaler"
	ModelStep  = "model"
)

// Pipeline fits Scaler on X, then Model on the transformed X.
type Pipeline struct {
	Scaler model.Transformer
	Model  model.Regressor

	fitted bool
}

// New creates a pipeline. Both steps are used as given; Clone the pipeline
// to obtain independent copies.
func New(scaler model.Transformer, m model.Regressor) *Pipeline {
	return &Pipeline{Scaler: scaler, Model: m}
}

// NewScaledLinearRegression is StandardScaler followed by LinearRegression.
func NewScaledLinearRegression() *Pipeline {
	return New(preprocessing.NewStandardScalerDefault(), linear.NewLinearRegression())
}

// Fit implements model.Fitter.
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	p.fitted = false
	if p.Scaler == nil || p.Model == nil {
		return errors.NewValidationError("steps", "scaler and model are required", nil)
	}
	Xt, err := p.Scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "Pipeline.Fit: scaler")
	}
	if err := p.Model.Fit(Xt, y); err != nil {
		return errors.Wrap(err, "Pipeline.Fit: model")
	}
	p.fitted = true
	return nil
}

// Predict implements model.Predictor.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !p.fitted {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	Xt, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(Xt)
}

// Score returns R² of the predictions on X against y.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Clone implements model.Regressor.
func (p *Pipeline) Clone() model.Regressor {
	c := &Pipeline{fitted: p.fitted}
	if p.Scaler != nil {
		c.Scaler = p.Scaler.Clone()
	}
	if p.Model != nil {
		c.Model = p.Model.Clone()
	}
	return c
}

// GetParams returns the step parameters with their step prefix.
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	add := func(step string, v interface{}) {
		if g, ok := v.(model.ParameterGetter); ok {
			for k, val := range g.GetParams() {
				out[step+"__"+k] = val
			}
		}
	}
	add(ScalerStep, p.Scaler)
	add(ModelStep, p.Model)
	return out
}

// SetParams routes "scaler__<name>" and "model__<name>" keys to the steps.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	perStep := map[string]map[string]interface{}{}
	for _, k := range model.SortedKeys(params) {
		step, name, ok := strings.Cut(k, "__")
		if !ok || (step != ScalerStep && step != ModelStep) || name == "" {
			return model.UnknownParam(k, params[k])
		}
		if perStep[step] == nil {
			perStep[step] = map[string]interface{}{}
		}
		perStep[step][name] = params[k]
	}

	for _, step := range []string{ScalerStep, ModelStep} {
		sp, ok := perStep[step]
		if !ok {
			continue
		}
		var target interface{} = p.Model
		if step == ScalerStep {
			target = p.Scaler
		}
		setter, ok := target.(model.ParameterSetter)
		if !ok {
			return errors.NewValidationError(step, "step does not accept parameters", sp)
		}
		if err := setter.SetParams(sp); err != nil {
			return err
		}
	}
	return nil
}
