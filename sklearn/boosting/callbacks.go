package boosting

import (
	"math"
	"time"

	"github.com/YuminosukeSato/treestack/pkg/log"
)

// TrainMSE is the EvalResults key holding the training MSE after a round.
const TrainMSE = "train_mse"

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Model        *Regressor
	Iteration    int // 0-based round that just finished
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback is called after every boosting round. Setting env.StopTraining
// ends training; the trees appended so far are kept.
//
// Clones share their callbacks, so a callback that keeps state must start
// over when env.Iteration is 0. Clones sharing a callback must not be fitted
// concurrently.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs the evaluation results every period rounds.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period < 1 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if (env.Iteration+1)%period == 0 {
			logger.Info("Boosting round finished",
				log.IterationKey, env.Iteration+1,
				log.TrainMSEKey, env.EvalResults[TrainMSE],
				log.DurationMsKey, env.EndTime.Sub(env.BeginTime).Milliseconds(),
			)
		}
		return nil
	}
}

// RecordEvaluation records the evaluation history of the most recent fit.
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil || env.Iteration == 0 {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// EarlyStoppingCallback stops training when metric has not improved by more
// than minDelta for rounds consecutive rounds.
func EarlyStoppingCallback(rounds int, metric string, minDelta float64) Callback {
	var (
		bestScore       float64
		bestIteration   int
		roundsNoImprove int
	)

	return func(env *CallbackEnv) error {
		if env.Iteration == 0 {
			bestScore = math.Inf(1)
			bestIteration = 0
			roundsNoImprove = 0
		}
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}
		if value < bestScore-minDelta {
			bestScore = value
			bestIteration = env.Iteration
			roundsNoImprove = 0
			return nil
		}
		roundsNoImprove++
		if roundsNoImprove >= rounds {
			env.Model.logger().Info("Early stopping",
				log.IterationKey, env.Iteration+1,
				"best_iteration", bestIteration+1,
				metric, bestScore,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops a fit once it has run longer than maxDuration.
func TimeLimit(maxDuration time.Duration) Callback {
	var startTime time.Time
	return func(env *CallbackEnv) error {
		if env.Iteration == 0 {
			startTime = env.BeginTime
		}
		if env.EndTime.Sub(startTime) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}
