package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitFixture(t *testing.T, n int) (*Table, []float64) {
	t.Helper()
	id := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		id[i] = float64(i)
		y[i] = float64(i) * 10
	}
	table, err := NewTable(NewNumericColumn("id", id, nil))
	require.NoError(t, err)
	return table, y
}

func TestTrainTestSplitSizes(t *testing.T) {
	table, y := splitFixture(t, 50)

	train, test, yTrain, yTest, err := TrainTestSplit(table, y, 0.2, 7)
	require.NoError(t, err)

	assert.Equal(t, 40, train.NumRows())
	assert.Equal(t, 10, test.NumRows())
	assert.Len(t, yTrain, 40)
	assert.Len(t, yTest, 10)
}

func TestTrainTestSplitAlignment(t *testing.T) {
	table, y := splitFixture(t, 30)

	train, test, yTrain, yTest, err := TrainTestSplit(table, y, 0.3, 42)
	require.NoError(t, err)

	// Labels follow their rows through the shuffle
	id, _ := train.Column("id")
	for i := range yTrain {
		assert.Equal(t, id.Float[i]*10, yTrain[i])
	}
	id, _ = test.Column("id")
	for i := range yTest {
		assert.Equal(t, id.Float[i]*10, yTest[i])
	}
}

func TestTrainTestSplitDeterminism(t *testing.T) {
	table, y := splitFixture(t, 40)

	_, test1, _, _, err := TrainTestSplit(table, y, 0.25, 99)
	require.NoError(t, err)
	_, test2, _, _, err := TrainTestSplit(table, y, 0.25, 99)
	require.NoError(t, err)

	a, _ := test1.Column("id")
	b, _ := test2.Column("id")
	assert.Equal(t, a.Float, b.Float, "identical seeds give identical splits")

	_, test3, _, _, err := TrainTestSplit(table, y, 0.25, 100)
	require.NoError(t, err)
	c, _ := test3.Column("id")
	assert.NotEqual(t, a.Float, c.Float, "different seeds shuffle differently")
}

func TestTrainTestSplitValidation(t *testing.T) {
	table, y := splitFixture(t, 10)

	_, _, _, _, err := TrainTestSplit(table, y[:5], 0.2, 1)
	assert.Error(t, err, "label length mismatch")

	_, _, _, _, err = TrainTestSplit(table, y, 0.0, 1)
	assert.Error(t, err, "zero test size")

	_, _, _, _, err = TrainTestSplit(table, y, 1.0, 1)
	assert.Error(t, err, "full test size")

	_, _, _, _, err = TrainTestSplit(table, y, 0.01, 1)
	assert.Error(t, err, "rounds to an empty test subset")
}
