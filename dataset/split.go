package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// TrainTestSplit shuffles rows with a seeded PCG generator and splits table
// and labels into train and test subsets. The same seed always produces the
// same split. A test size that leaves either subset empty is a configuration
// error.
func TrainTestSplit(t *Table, y []float64, testSize float64, seed uint64) (train, test *Table, yTrain, yTest []float64, err error) {
	n := t.NumRows()
	if len(y) != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Round(float64(n) * testSize))
	if nTest == 0 || nTest == n {
		return nil, nil, nil, nil, errors.NewValidationError("test_size",
			"split leaves an empty train or test subset", testSize)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]

	yTrain = make([]float64, len(trainIdx))
	for i, r := range trainIdx {
		yTrain[i] = y[r]
	}
	yTest = make([]float64, len(testIdx))
	for i, r := range testIdx {
		yTest[i] = y[r]
	}

	return t.subset(trainIdx), t.subset(testIdx), yTrain, yTest, nil
}
