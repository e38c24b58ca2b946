package boosting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassbox-ml/glassbox/pkg/log"
)

func TestRecordEvaluation(t *testing.T) {
	X, y := makeBinaryBlobs(60)

	var history map[string][]float64
	trainer := NewTrainer(TrainingParams{
		NumIterations: 6,
		NumLeaves:     7,
		MinDataInLeaf: 5,
		Objective:     BinaryLogistic,
	}).WithCallbacks(RecordEvaluation(&history))
	require.NoError(t, trainer.Fit(X, y))

	require.Contains(t, history, "train")
	assert.Len(t, history["train"], 6)
	assert.Less(t, history["train"][5], history["train"][0])
	assert.Equal(t, trainer.EvalHistory(), history["train"])
}

func TestTimeLimit(t *testing.T) {
	X, y := makeBinaryBlobs(60)

	trainer := NewTrainer(TrainingParams{
		NumIterations: 50,
		NumLeaves:     7,
		MinDataInLeaf: 5,
		Objective:     BinaryLogistic,
	}).WithCallbacks(TimeLimit(0))
	require.NoError(t, trainer.Fit(X, y))

	assert.Len(t, trainer.GetModel().Trees, 1,
		"a zero budget stops after the first iteration")
}

func TestPrintEvaluation(t *testing.T) {
	provider, buf := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetLoggerProvider(provider)

	cb := PrintEvaluation(2)
	env := &CallbackEnv{Iteration: 4, EvalResults: map[string]float64{"train": 0.25}}
	require.NoError(t, cb(env))
	assert.Contains(t, buf.String(), "Evaluation")
	assert.Contains(t, buf.String(), "train")

	buf.Reset()
	env.Iteration = 5
	require.NoError(t, cb(env))
	assert.Empty(t, buf.String(), "off-period iterations stay silent")

	buf.Reset()
	env.Iteration = 6
	env.EvalResults = nil
	require.NoError(t, cb(env))
	assert.Empty(t, buf.String(), "no results, no log line")
}

func TestCallbackListStopPersists(t *testing.T) {
	calls := 0
	stopper := func(env *CallbackEnv) error {
		calls++
		env.StopTraining = true
		return nil
	}

	cl := NewCallbackList(stopper)
	require.NoError(t, cl.AfterIteration(0, map[string]float64{"train": 1}))
	assert.True(t, cl.ShouldStop())
	assert.Equal(t, 1, calls)

	// The stop request survives the next before-phase.
	require.NoError(t, cl.BeforeIteration(1))
	assert.True(t, cl.ShouldStop())
}

func TestCallbackListBeginTime(t *testing.T) {
	cl := NewCallbackList()
	require.NoError(t, cl.BeforeIteration(0))
	first := cl.env.BeginTime
	assert.False(t, first.IsZero())

	time.Sleep(time.Millisecond)
	require.NoError(t, cl.BeforeIteration(1))
	assert.Equal(t, first, cl.env.BeginTime, "begin time is stamped once")
}
