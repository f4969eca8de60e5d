package model

import "gonum.org/v1/gonum/mat"

// Fitter は教師あり学習が可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は行列を入力とする学習・予測モデル
type Estimator interface {
	Fitter
	Predictor
}

// Classifier は分類モデルのインターフェース
type Classifier interface {
	Estimator

	// PredictProba は各クラスの確率を (n_samples, n_classes) で返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Score は正解率を返す
	Score(X, y mat.Matrix) (float64, error)

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []int
}

// ParamsGetter はハイパーパラメータを公開するモデル
type ParamsGetter interface {
	GetParams() map[string]interface{}
}

// ParamsSetter はハイパーパラメータを変更可能なモデル
type ParamsSetter interface {
	SetParams(params map[string]interface{}) error
}
