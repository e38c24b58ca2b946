package boosting

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/glassbox-ml/glassbox/core/parallel"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// leafRegularizer keeps leaf values finite when a node's hessian sum is
// tiny and lambda is zero.
const leafRegularizer = 1e-10

// TrainingParams configures gradient boosting. Zero values fall back to
// the defaults set by NewTrainer.
type TrainingParams struct {
	NumIterations  int           `json:"num_iterations" yaml:"num_iterations"`
	LearningRate   float64       `json:"learning_rate" yaml:"learning_rate"`
	NumLeaves      int           `json:"num_leaves" yaml:"num_leaves"`
	MaxDepth       int           `json:"max_depth" yaml:"max_depth"`
	MinDataInLeaf  int           `json:"min_data_in_leaf" yaml:"min_data_in_leaf"`
	Lambda         float64       `json:"lambda" yaml:"lambda"`
	MinGainToSplit float64       `json:"min_gain_to_split" yaml:"min_gain_to_split"`
	MaxBin         int           `json:"max_bin" yaml:"max_bin"`
	Objective      ObjectiveType `json:"objective" yaml:"objective"`
	NumClass       int           `json:"num_class" yaml:"num_class"`
	Seed           int           `json:"seed" yaml:"seed"`
	Verbosity      int           `json:"verbosity" yaml:"verbosity"`
	EarlyStopping  int           `json:"early_stopping_round" yaml:"early_stopping_round"`
	Metric         string        `json:"metric" yaml:"metric"`
}

// featureBins holds ascending upper bin bounds for one feature. The last
// bound is +Inf so every finite value lands in a bin; NaN is assigned to
// bin 0 so missing values route left.
type featureBins struct {
	upper []float64
}

func (b *featureBins) numBins() int { return len(b.upper) }

func (b *featureBins) bin(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return sort.SearchFloat64s(b.upper, v)
}

// makeBins computes bin bounds for one feature column. Columns with few
// distinct values get one bin per value; wide columns are cut at empirical
// quantiles.
func makeBins(values []float64, maxBin int) featureBins {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return featureBins{upper: []float64{math.Inf(1)}}
	}
	sort.Float64s(clean)

	unique := clean[:1]
	for _, v := range clean[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}

	var bounds []float64
	if len(unique) <= maxBin {
		// One bin per distinct value, bounded at midpoints.
		bounds = make([]float64, 0, len(unique))
		for i := 0; i+1 < len(unique); i++ {
			bounds = append(bounds, (unique[i]+unique[i+1])/2)
		}
	} else {
		bounds = make([]float64, 0, maxBin-1)
		for i := 1; i < maxBin; i++ {
			q := stat.Quantile(float64(i)/float64(maxBin), stat.Empirical, clean, nil)
			if len(bounds) == 0 || q > bounds[len(bounds)-1] {
				bounds = append(bounds, q)
			}
		}
	}
	bounds = append(bounds, math.Inf(1))
	return featureBins{upper: bounds}
}

// histogramBin accumulates gradient statistics for the samples falling
// into one bin of one feature.
type histogramBin struct {
	sumGrad float64
	sumHess float64
	count   int
}

// splitInfo describes a candidate split: samples with feature value at or
// below the threshold (or missing) go left.
type splitInfo struct {
	feature   int
	bin       int
	threshold float64
	gain      float64
}

// Trainer grows a gradient-boosted tree ensemble using histogram-based
// greedy splits. For multiclass objectives it fits one tree per class per
// iteration against that class's softmax gradient.
type Trainer struct {
	params TrainingParams

	X         *mat.Dense
	y         []float64
	nSamples  int
	nFeatures int

	bins     []featureBins
	binIndex [][]uint8

	objective  ObjectiveFunction
	initScores []float64
	rawScores  [][]float64
	gradients  []float64
	hessians   []float64

	trees         []Tree
	splitsInTree  int
	iteration     int
	bestIteration int
	stopTraining  bool

	evalHistory []float64
	callbacks   *CallbackList
	logger      log.Logger
}

// NewTrainer creates a trainer, filling unset parameters with
// LightGBM-style defaults.
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations <= 0 {
		params.NumIterations = 100
	}
	if params.LearningRate <= 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves <= 1 {
		params.NumLeaves = 31
	}
	if params.MinDataInLeaf <= 0 {
		params.MinDataInLeaf = 20
	}
	if params.MaxBin <= 0 {
		params.MaxBin = 255
	}
	if params.MinGainToSplit <= 0 {
		params.MinGainToSplit = 1e-7
	}
	if params.Objective == "" {
		params.Objective = BinaryLogistic
	}
	if params.Metric == "" {
		params.Metric = "logloss"
	}
	return &Trainer{
		params:    params,
		callbacks: NewCallbackList(),
		logger:    log.GetLoggerWithName("boosting.trainer"),
	}
}

// WithCallbacks registers callbacks invoked around each boosting
// iteration.
func (t *Trainer) WithCallbacks(cbs ...Callback) *Trainer {
	t.callbacks.Add(cbs...)
	return t
}

// Fit trains the ensemble on X and column vector y. Binary targets must
// be 0/1; multiclass targets must be class indices 0..NumClass-1.
func (t *Trainer) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Trainer.Fit")

	if err := t.initialize(X, y); err != nil {
		return err
	}

	start := time.Now()
	outputs := t.objective.NumOutputs()
	t.logger.Debug("Boosting started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, t.nSamples,
		log.FeaturesKey, t.nFeatures,
		"objective", t.objective.Name(),
		"num_iterations", t.params.NumIterations,
	)

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.iteration = iter
		if err := t.callbacks.BeforeIteration(iter); err != nil {
			return err
		}

		if err := t.boostRound(outputs, nil, nil); err != nil {
			return err
		}

		loss := t.trainLoss()
		t.evalHistory = append(t.evalHistory, loss)
		if t.params.Verbosity > 0 && (iter+1)%t.params.Verbosity == 0 {
			t.logger.Info("Boosting iteration",
				log.IterationKey, iter+1,
				log.LossKey, loss,
			)
		}

		if err := t.callbacks.AfterIteration(iter, map[string]float64{"train": loss}); err != nil {
			return err
		}
		if t.callbacks.ShouldStop() || t.stopTraining {
			break
		}
	}

	t.logger.Info("Boosting completed",
		log.OperationKey, log.OperationFit,
		"trees", len(t.trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// initialize validates inputs, bins features, and seeds raw scores with
// the objective's constant baseline.
func (t *Trainer) initialize(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return errors.NewDimensionError("Trainer.Fit", 1, yCols, 1)
	}
	if rows != yRows {
		return errors.NewDimensionError("Trainer.Fit", rows, yRows, 0)
	}
	if rows == 0 || cols == 0 {
		return errors.NewValueError("Trainer.Fit", "training data is empty")
	}
	if t.params.MaxBin > 255 {
		return errors.NewValidationError("max_bin",
			"histogram bins are limited to 255", t.params.MaxBin)
	}

	objective, err := NewObjective(t.params.Objective, t.params.NumClass)
	if err != nil {
		return err
	}
	t.objective = objective

	t.nSamples, t.nFeatures = rows, cols
	t.X = mat.DenseCopyOf(X)
	t.y = make([]float64, rows)
	for i := 0; i < rows; i++ {
		t.y[i] = y.At(i, 0)
	}
	if err := t.validateTargets(); err != nil {
		return err
	}

	t.initScores = t.objective.InitScores(t.y)
	t.rawScores = make([][]float64, rows)
	for i := range t.rawScores {
		t.rawScores[i] = make([]float64, len(t.initScores))
		copy(t.rawScores[i], t.initScores)
	}
	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.trees = make([]Tree, 0, t.params.NumIterations*objective.NumOutputs())
	t.evalHistory = t.evalHistory[:0]
	t.bestIteration = 0
	t.stopTraining = false

	t.buildBins()
	return nil
}

func (t *Trainer) validateTargets() error {
	numClass := t.params.NumClass
	for i, v := range t.y {
		class := int(v)
		if float64(class) != v || class < 0 {
			return errors.NewValidationError("y",
				"targets must be non-negative class indices", t.y[i])
		}
		if t.params.Objective == BinaryLogistic && class > 1 {
			return errors.NewValidationError("y",
				"binary objective requires 0/1 targets", t.y[i])
		}
		if t.params.Objective == MulticlassSoftmax && class >= numClass {
			return errors.NewValidationError("y",
				"target outside num_class range", t.y[i])
		}
	}
	return nil
}

// buildBins computes quantile bins per feature and caches each sample's
// bin index, the representation every histogram pass reads.
func (t *Trainer) buildBins() {
	t.bins = make([]featureBins, t.nFeatures)
	t.binIndex = make([][]uint8, t.nFeatures)

	parallel.Parallelize(t.nFeatures, func(start, end int) {
		column := make([]float64, t.nSamples)
		for j := start; j < end; j++ {
			mat.Col(column, j, t.X)
			t.bins[j] = makeBins(column, t.params.MaxBin)

			idx := make([]uint8, t.nSamples)
			for i, v := range column {
				idx[i] = uint8(t.bins[j].bin(v))
			}
			t.binIndex[j] = idx
		}
	})
}

// computeGradients fills first- and second-order statistics for the given
// output against the current raw scores.
func (t *Trainer) computeGradients(output int) error {
	parallel.Parallelize(t.nSamples, func(start, end int) {
		for i := start; i < end; i++ {
			g, h := t.objective.GradHess(t.rawScores[i], t.y[i], output)
			t.gradients[i] = g
			t.hessians[i] = h
		}
	})
	return errors.CheckNumericalStability("gradient computation", t.gradients, t.iteration)
}

// buildTree grows one tree against the current gradients.
func (t *Trainer) buildTree() Tree {
	tree := Tree{
		TreeIndex:     len(t.trees),
		ShrinkageRate: t.params.LearningRate,
	}
	t.splitsInTree = 0

	indices := make([]int, t.nSamples)
	for i := range indices {
		indices[i] = i
	}
	t.buildNode(&tree, indices, 0, -1)

	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf() {
			tree.NumLeaves++
		}
	}
	return tree
}

// buildNode recursively grows the subtree for the given sample indices and
// returns the node's ID. Every node records its cover and the value it
// would predict as a leaf.
func (t *Trainer) buildNode(tree *Tree, indices []int, depth, parentID int) int {
	sumGrad, sumHess := 0.0, 0.0
	for _, i := range indices {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}
	value := -sumGrad / (sumHess + t.params.Lambda + leafRegularizer)

	node := Node{
		NodeID:        len(tree.Nodes),
		ParentID:      parentID,
		LeftChild:     -1,
		RightChild:    -1,
		InternalValue: value,
		InternalCount: len(indices),
	}

	canSplit := len(indices) >= 2*t.params.MinDataInLeaf &&
		t.splitsInTree < t.params.NumLeaves-1 &&
		(t.params.MaxDepth <= 0 || depth < t.params.MaxDepth)

	if canSplit {
		if split, ok := t.findBestSplit(indices, sumGrad, sumHess); ok {
			node.NodeType = NumericalNode
			node.SplitFeature = split.feature
			node.Threshold = split.threshold
			node.DefaultLeft = true
			node.Gain = split.gain
			t.splitsInTree++

			nodeID := node.NodeID
			tree.Nodes = append(tree.Nodes, node)

			left, right := t.partition(indices, split)
			leftID := t.buildNode(tree, left, depth+1, nodeID)
			rightID := t.buildNode(tree, right, depth+1, nodeID)
			tree.Nodes[nodeID].LeftChild = leftID
			tree.Nodes[nodeID].RightChild = rightID
			return nodeID
		}
	}

	node.NodeType = LeafNode
	node.LeafValue = value
	tree.Nodes = append(tree.Nodes, node)
	return node.NodeID
}

// findBestSplit builds per-feature histograms for the node in parallel and
// scans bin boundaries sequentially, so ties always resolve to the lowest
// feature index and training stays deterministic.
func (t *Trainer) findBestSplit(indices []int, totalGrad, totalHess float64) (splitInfo, bool) {
	histograms := make([][]histogramBin, t.nFeatures)
	parallel.Parallelize(t.nFeatures, func(start, end int) {
		for j := start; j < end; j++ {
			hist := make([]histogramBin, t.bins[j].numBins())
			binIdx := t.binIndex[j]
			for _, i := range indices {
				b := binIdx[i]
				hist[b].sumGrad += t.gradients[i]
				hist[b].sumHess += t.hessians[i]
				hist[b].count++
			}
			histograms[j] = hist
		}
	})

	lambda := t.params.Lambda
	parentScore := totalGrad * totalGrad / (totalHess + lambda)

	best := splitInfo{feature: -1, gain: t.params.MinGainToSplit}
	for j := 0; j < t.nFeatures; j++ {
		hist := histograms[j]
		leftGrad, leftHess := 0.0, 0.0
		leftCount := 0

		for b := 0; b < len(hist)-1; b++ {
			leftGrad += hist[b].sumGrad
			leftHess += hist[b].sumHess
			leftCount += hist[b].count

			rightCount := len(indices) - leftCount
			if rightCount < t.params.MinDataInLeaf {
				break
			}
			if leftCount < t.params.MinDataInLeaf || hist[b].count == 0 {
				continue
			}

			rightGrad := totalGrad - leftGrad
			rightHess := totalHess - leftHess
			gain := 0.5 * (leftGrad*leftGrad/(leftHess+lambda) +
				rightGrad*rightGrad/(rightHess+lambda) -
				parentScore)

			if gain > best.gain {
				best = splitInfo{
					feature:   j,
					bin:       b,
					threshold: t.bins[j].upper[b],
					gain:      gain,
				}
			}
		}
	}

	return best, best.feature >= 0
}

// partition splits node indices by cached bin index; missing values sit in
// bin 0 and therefore go left, matching prediction-time routing.
func (t *Trainer) partition(indices []int, split splitInfo) (left, right []int) {
	binIdx := t.binIndex[split.feature]
	for _, i := range indices {
		if int(binIdx[i]) <= split.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// boostRound fits one tree per output against the current gradients and
// folds its predictions into the running raw scores. When validation data
// is supplied the validation raw scores advance in lockstep.
func (t *Trainer) boostRound(outputs int, valX *mat.Dense, valRaw [][]float64) error {
	for out := 0; out < outputs; out++ {
		if err := t.computeGradients(out); err != nil {
			return err
		}
		tree := t.buildTree()
		t.trees = append(t.trees, tree)
		addTreePredictions(t.rawScores, t.X, &tree, out)
		if valX != nil {
			addTreePredictions(valRaw, valX, &tree, out)
		}
	}
	return nil
}

// addTreePredictions adds one tree's shrunk predictions to the given
// output of every raw-score row.
func addTreePredictions(raw [][]float64, X *mat.Dense, tree *Tree, output int) {
	rows, cols := X.Dims()
	parallel.Parallelize(rows, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			raw[i][output] += tree.Predict(features)
		}
	})
}

// trainLoss evaluates the mean objective loss at the current raw scores.
func (t *Trainer) trainLoss() float64 {
	total := 0.0
	for i := 0; i < t.nSamples; i++ {
		total += t.objective.Loss(t.rawScores[i], t.y[i])
	}
	return total / float64(t.nSamples)
}

// EvalHistory returns the per-iteration training loss recorded by Fit.
func (t *Trainer) EvalHistory() []float64 {
	out := make([]float64, len(t.evalHistory))
	copy(out, t.evalHistory)
	return out
}

// GetModel assembles the trained ensemble.
func (t *Trainer) GetModel() *Model {
	numClass := t.params.NumClass
	if t.params.Objective == BinaryLogistic {
		numClass = 2
	}
	outputs := 1
	if t.objective != nil {
		outputs = t.objective.NumOutputs()
	}

	model := &Model{
		Objective:     t.params.Objective,
		NumClass:      numClass,
		NumIteration:  len(t.trees) / outputs,
		LearningRate:  t.params.LearningRate,
		NumLeaves:     t.params.NumLeaves,
		MaxDepth:      t.params.MaxDepth,
		Trees:         t.trees,
		NumFeatures:   t.nFeatures,
		InitScores:    t.initScores,
		BestIteration: t.bestIteration,
	}
	return model
}
