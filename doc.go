// Package treestack provides tree ensembles, linear solvers and a K-fold
// stacking meta-learner for tabular regression in Go.
//
// Every model implements the same contract from core/model:
//
//	Fit(X, y mat.Matrix) error
//	Predict(X mat.Matrix) (mat.Matrix, error)
//	Score(X, y mat.Matrix) (float64, error)
//	Clone() model.Regressor
//
// X is n_samples × n_features and y is an n_samples × 1 column. Because the
// stacking ensemble and the grid search only depend on this contract, any
// model (including a scaler pipeline) can be blended or tuned.
//
// # Features
//
// - CART decision tree regressor with midpoint thresholds and SSE splits
// - Random forest with bootstrap rows, random feature subsets and parallel tree training
// - Gradient boosting with depth-wise (XGBoost style) and leaf-wise (LightGBM style) growth
// - Ordinary least squares (minimum-norm SVD solve) and Ridge regression
// - Out-of-fold stacking with per-fold metrics
// - K-fold cross-validation and grid search over parameter maps or JSON grids
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/treestack/datasets"
//	    "github.com/YuminosukeSato/treestack/metrics"
//	    "github.com/YuminosukeSato/treestack/sklearn/ensemble"
//	    "github.com/YuminosukeSato/treestack/sklearn/model_selection"
//	)
//
//	func main() {
//	    X, y, err := datasets.MakeFriedman1(500, 6, 1.0, 42)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, 0.2, 42)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    stack := ensemble.NewDefaultStacking(42)
//	    if err := stack.Fit(XTrain, yTrain); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    report, err := metrics.Evaluate(stack, XTest, yTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("MSE=%.4f R²=%.4f\n", report.MSE, report.R2)
//	}
//
// # Packages
//
//   - core/model: Regressor, Transformer and parameter interfaces, input validation
//   - core/parallel: chunked goroutine fan-out
//   - sklearn/tree: DecisionTreeRegressor and the arena Tree shared by all tree models
//   - sklearn/ensemble: RandomForestRegressor and StackingRegressor
//   - sklearn/boosting: gradient-boosted trees with depth-wise and leaf-wise growth
//   - sklearn/model_selection: KFold, CrossValidate, GridSearchCV, TrainTestSplit
//   - sklearn/pipeline: scaler + regressor pipeline
//   - linear: LinearRegression and Ridge
//   - preprocessing: StandardScaler and MinMaxScaler
//   - metrics: MSE, RMSE, MAE, R², evaluation reports and prediction plots
//   - datasets: synthetic regression data
//   - pkg/errors, pkg/log: error types, warnings and structured logging
//
// # Logging
//
// Logging goes through pkg/log. The default provider writes warnings to
// stderr with zerolog; call log.SetupLogger("info") to switch to JSON slog
// output. Stacking, grid search and boosting also accept an explicit logger.
//
// # Reproducibility
//
// All randomness (bootstrap rows, feature subsets, fold shuffles) comes from
// PCG sources seeded by the caller, so the same seed always yields the same
// folds, trees and predictions, including when forest trees are trained in
// parallel.
package treestack
