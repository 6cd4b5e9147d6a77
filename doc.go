// Package mathscore trains and serves a regression model that predicts a
// student's math score from demographic attributes and the reading and
// writing scores.
//
// The repository is organized as a batch training pipeline plus an online
// inference surface sharing one pair of persisted artifacts:
//
//   - dataset: typed column tables, CSV reading and writing, the train/test split
//   - preprocessing: imputers, one-hot encoding and scaling combined into a Preprocessor
//   - sklearn/...: the candidate regressors, k-fold splitting and grid search
//   - metrics: R², MSE, RMSE and MAE
//   - training: candidate evaluation, selection behind a minimum score and the Trainer
//   - artifact: gob persistence with staged, atomic commits
//   - inference: the loaded preprocessor/model pair used for prediction
//   - serve: the HTML form and JSON API
//   - report: the score chart and run summary
//   - config, pkg/log, pkg/errors: the ambient configuration, logging and error types
//
// # Quick Start
//
// Train with the defaults and predict one student:
//
//	cfg := config.Default()
//	tr, err := training.NewTrainer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := tr.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := inference.Load(res.PreprocessorPath, res.ModelPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pred, err := p.Predict([]inference.Record{student.ToRecord()})
//
// The same steps are available from the command line:
//
//	mathscore train --config mathscore.yaml
//	mathscore predict --input students.csv
//	mathscore serve --addr :5000
//
// # Errors
//
// Every pipeline failure carries the stage it happened at (ingestion,
// transformation, evaluation, selection, persistence or inference); use
// errors.StageOf to read it and errors.As to reach the typed error.
package mathscore
