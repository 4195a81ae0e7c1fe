package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)

	// Clone は学習済みの統計量も含めた独立したコピーを返す
	Clone() Transformer
}

// InverseTransformer は逆変換可能な変換器
type InverseTransformer interface {
	Transformer

	// InverseTransform は変換を逆方向に適用する
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
