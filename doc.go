// Package tsunamiml trains and serves a tsunami-risk classifier for
// earthquake events, designed for backend services and real-time inference.
//
// The model is a scikit-learn style pipeline: an IntensityImputer fills
// missing shaking intensity from the median intensity of earthquakes with
// the same rounded magnitude, the remaining numeric gaps are filled with
// column medians, country is one-hot encoded, features are standardized and
// a logistic regression produces the tsunami probability.
//
// # Quick Start
//
// Train a pipeline from a catalog CSV and score one event:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/tsunamiml/internal/catalog"
//	    "github.com/YuminosukeSato/tsunamiml/internal/inference"
//	)
//
//	func main() {
//	    cat, err := catalog.LoadFile("earthquakes.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    p, report, err := inference.Train(cat, inference.DefaultTrainOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("training accuracy %.3f\n", report.Accuracy)
//
//	    pred, err := inference.New(p)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := pred.Predict(context.Background(), inference.Input{
//	        Magnitude: 8.6, Depth: 20, Latitude: 2.1, Longitude: 97.1, Country: "INDONESIA",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Label)
//	}
//
// # Packages
//
//   - preprocessing: IntensityImputer, median imputer, one-hot encoder, standard scaler
//   - sklearn/linear_model: LogisticRegression
//   - sklearn/pipeline: chained transformers and a final estimator, gob artifacts
//   - metrics: binary classification metrics (accuracy, precision, recall, AUC)
//   - core/frame: named-column tables and CSV loading
//   - core/model: estimator interfaces, fit state and persistence
//   - core/parallel: chunked parallel loops
//   - pkg/errors, pkg/log: structured errors and zerolog logging
//   - internal/...: catalog, inference, maps, HTTP and Kafka adapters
//
// # Commands
//
//   - cmd/tsunami: fit, predict and map from the command line
//   - cmd/tsunami-server: HTTP predictions plus an optional Kafka scoring loop
package tsunamiml
