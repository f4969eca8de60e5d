package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// パラメータ:
//   - model: 保存するモデル（公開フィールドに学習結果を持つ構造体のポインタ）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	imp := preprocessing.NewIntensityImputer()
//	// ... imp.Fit(df) ...
//	err := model.SaveModel(imp, "imputer.gob")
func SaveModel(model interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close file")
		}
	}()
	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合、返されるエラーは os.ErrNotExist を満たします。
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// Register はインターフェース値として保存される具象型をgobに登録します。
// パイプラインのステップとして保存する型は init で登録してください。
func Register(values ...interface{}) {
	for _, v := range values {
		gob.Register(v)
	}
}
