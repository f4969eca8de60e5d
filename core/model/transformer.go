package model

import "github.com/YuminosukeSato/tsunamiml/core/frame"

// Transformer はテーブル変換のインターフェース
//
// Transform は入力を変更せず、新しい Frame を返します。
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X *frame.Frame) error

	// Transform はデータを変換する
	Transform(X *frame.Frame) (*frame.Frame, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X *frame.Frame) (*frame.Frame, error)
}

// FitChecker は学習状態を問い合わせ可能なモデル
type FitChecker interface {
	IsFitted() bool
}
