package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// logLossEpsilon は log(0) を避けるためのクリッピング幅
const logLossEpsilon = 1e-15

func checkVectors(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - Accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionCounts は二値分類の混同行列
type ConfusionCounts struct {
	TP, FP, TN, FN int
}

// BinaryConfusion は陽性ラベル 1 に対する混同行列を数える
func BinaryConfusion(yTrue, yPred *mat.VecDense) (ConfusionCounts, error) {
	var c ConfusionCounts
	n, err := checkVectors("BinaryConfusion", yTrue, yPred)
	if err != nil {
		return c, err
	}
	if err := checkBinary("BinaryConfusion", yTrue); err != nil {
		return c, err
	}
	if err := checkBinary("BinaryConfusion", yPred); err != nil {
		return c, err
	}
	for i := 0; i < n; i++ {
		switch t, p := yTrue.AtVec(i) == 1, yPred.AtVec(i) == 1; {
		case t && p:
			c.TP++
		case !t && p:
			c.FP++
		case t && !p:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// undefined は 0 除算時に UndefinedMetricWarning を出して 0 を返す
func undefined(metric, condition string) float64 {
	errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
	return 0
}

// Precision は適合率 TP / (TP + FP) を計算する
// 陽性予測が 0 件の場合は警告を出して 0 を返す。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if c.TP+c.FP == 0 {
		return undefined("precision", "no predicted samples"), nil
	}
	return float64(c.TP) / float64(c.TP+c.FP), nil
}

// Recall は再現率 TP / (TP + FN) を計算する
// 陽性サンプルが 0 件の場合は警告を出して 0 を返す。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if c.TP+c.FN == 0 {
		return undefined("recall", "no true samples"), nil
	}
	return float64(c.TP) / float64(c.TP+c.FN), nil
}

// F1Score は適合率と再現率の調和平均を計算する
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := 2*c.TP + c.FP + c.FN
	if denom == 0 {
		return undefined("f1", "no true nor predicted samples"), nil
	}
	return float64(2*c.TP) / float64(denom), nil
}

// AUC はROC曲線下面積を計算する
// 同順位のスコアは平均順位で扱う (Mann-Whitney U 統計量)。
// 片方のクラスしか存在しない場合は警告を出して 0.5 を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	var nPos, nNeg int
	var rankSum float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		// 1-based average rank of the tie block
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSum += rank
			} else {
				nNeg++
			}
		}
		i = j + 1
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する (先頭列を使用)
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(t, p)
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// BinaryLogLoss は二値交差エントロピーを計算する
// 予測確率は [eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), logLossEpsilon), 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}
