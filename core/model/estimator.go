package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// LinearModel は線形分類モデルのインターフェース
type LinearModel interface {
	// Weights は学習されたクラス別の重み行列を返す (nClasses × nFeatures)
	Weights() mat.Matrix
	// Intercepts は学習されたクラス別の切片を返す
	Intercepts() []float64
	// Classes は学習時に観測されたクラスラベルを返す
	Classes() []int
}
