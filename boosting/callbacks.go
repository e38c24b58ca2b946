package boosting

import (
	"sort"
	"time"

	"github.com/glassbox-ml/glassbox/pkg/log"
)

// CallbackEnv is the environment passed to training callbacks. Callbacks
// may set StopTraining to end the boosting loop after the current
// iteration.
type CallbackEnv struct {
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback is invoked around each boosting iteration.
type Callback func(env *CallbackEnv) error

// PrintEvaluation logs evaluation results every period iterations.
func PrintEvaluation(period int) Callback {
	if period <= 0 {
		period = 1
	}
	logger := log.GetLoggerWithName("boosting.trainer")
	return func(env *CallbackEnv) error {
		if env.Iteration%period != 0 || len(env.EvalResults) == 0 {
			return nil
		}

		names := make([]string, 0, len(env.EvalResults))
		for name := range env.EvalResults {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := []any{log.IterationKey, env.Iteration}
		for _, name := range names {
			fields = append(fields, name, env.EvalResults[name])
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation appends each iteration's evaluation results to history,
// keyed by metric name.
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if len(env.EvalResults) == 0 {
			return nil
		}
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// TimeLimit stops training once the wall-clock budget is spent.
func TimeLimit(maxDuration time.Duration) Callback {
	logger := log.GetLoggerWithName("boosting.trainer")
	return func(env *CallbackEnv) error {
		if env.BeginTime.IsZero() || time.Since(env.BeginTime) <= maxDuration {
			return nil
		}
		logger.Info("Time limit reached",
			log.IterationKey, env.Iteration,
			"limit", maxDuration.String(),
		)
		env.StopTraining = true
		return nil
	}
}

// CallbackList runs a set of callbacks around boosting iterations, sharing
// one environment so a stop request persists.
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a callback list.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			EvalResults: make(map[string]float64),
		},
	}
}

// Add appends callbacks to the list.
func (cl *CallbackList) Add(callbacks ...Callback) {
	cl.callbacks = append(cl.callbacks, callbacks...)
}

// BeforeIteration runs the callbacks before an iteration starts. The
// environment's begin time is stamped here on the first iteration so time
// budgets cover the whole training run. Evaluation results are cleared so
// metric callbacks fire only in the after phase.
func (cl *CallbackList) BeforeIteration(iteration int) error {
	cl.env.Iteration = iteration
	cl.env.EvalResults = nil
	if cl.env.BeginTime.IsZero() {
		cl.env.BeginTime = time.Now()
	}

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return nil
}

// AfterIteration runs the callbacks with the iteration's evaluation
// results.
func (cl *CallbackList) AfterIteration(iteration int, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop reports whether any callback requested a stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
