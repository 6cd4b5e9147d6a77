package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mathscore/config"
	"github.com/YuminosukeSato/mathscore/inference"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/report"
	"github.com/YuminosukeSato/mathscore/serve"
	"github.com/YuminosukeSato/mathscore/training"
)

// app は全コマンドで共有する状態。PersistentPreRunE で設定を読み込む。
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mathscore",
		Short:         "Train and serve a model that predicts student math scores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(
		a.ingestCmd(),
		a.trainCmd(),
		a.predictCmd(),
		a.serveCmd(),
		a.reportCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := log.SetupLogger(log.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) ingestCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Read the source CSV and write raw, train and test copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != "" {
				a.cfg.Data.Source = source
			}
			tr, err := training.NewTrainer(a.cfg)
			if err != nil {
				return err
			}
			train, test, err := tr.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "train rows: %d\ntest rows: %d\n", train.Rows(), test.Rows())
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source CSV (overrides data.source)")
	return cmd
}

func (a *app) trainCmd() *cobra.Command {
	var (
		source   string
		minScore float64
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Evaluate every candidate, select the best and persist the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if source != "" {
				a.cfg.Data.Source = source
			}
			if cmd.Flags().Changed("min-score") {
				a.cfg.Training.MinScore = minScore
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Training.Workers = workers
			}
			reg := prometheus.NewRegistry()
			tr, err := training.NewTrainer(a.cfg, training.WithMetrics(training.NewMetrics(reg)))
			if err != nil {
				return err
			}
			res, runErr := tr.Run(cmd.Context())

			art := a.cfg.Artifacts
			if art.MetricsFile != "" {
				if err := os.MkdirAll(art.Dir, 0o755); err != nil {
					return errors.Wrap(err, "mkdir")
				}
				if err := prometheus.WriteToTextfile(art.Path(art.MetricsFile), reg); err != nil {
					return errors.Wrap(err, "write training metrics")
				}
			}
			if runErr != nil {
				return runErr
			}

			if err := writeJSON(art.Path(art.RunSummary), res); err != nil {
				return err
			}
			if art.ScoresChart != "" {
				if err := report.RenderScores(res.Report, a.cfg.Training.MinScore, art.Path(art.ScoresChart)); err != nil {
					return err
				}
			}
			return report.WriteSummary(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source CSV (overrides data.source)")
	cmd.Flags().Float64Var(&minScore, "min-score", training.DefaultMinScore, "minimum selection score of the winner")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel fits during grid search (0 = GOMAXPROCS)")
	return cmd
}

func (a *app) predictCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict math scores for every row of a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.NewValidationError("input", "is required", input)
			}
			p, err := inference.Load(a.cfg.Artifacts.PreprocessorPath(), a.cfg.Artifacts.ModelPath())
			if err != nil {
				return err
			}
			pred, err := p.PredictCSV(input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "create %s", output)
				}
				defer f.Close()
				out = f
			}
			return writePredictions(out, pred)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV with the feature columns")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write predictions here instead of stdout")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction form and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Serve.Addr = addr
			}
			gin.SetMode(a.cfg.Serve.Mode)
			p, err := inference.Load(a.cfg.Artifacts.PreprocessorPath(), a.cfg.Artifacts.ModelPath())
			if err != nil {
				return err
			}
			return serve.New(p, nil).Run(cmd.Context(), a.cfg.Serve.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides serve.addr)")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	var chart string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the summary of the last training run and redraw its chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			art := a.cfg.Artifacts
			raw, err := os.ReadFile(art.Path(art.RunSummary))
			if err != nil {
				return errors.Wrap(err, "read run summary (run `mathscore train` first)")
			}
			var res training.Result
			if err := json.Unmarshal(raw, &res); err != nil {
				return errors.Wrap(err, "decode run summary")
			}
			if chart == "" {
				chart = art.Path(art.ScoresChart)
			}
			if chart != "" {
				if err := report.RenderScores(res.Report, a.cfg.Training.MinScore, chart); err != nil {
					return err
				}
			}
			return report.WriteSummary(cmd.OutOrStdout(), &res)
		},
	}
	cmd.Flags().StringVar(&chart, "chart", "", "chart path (overrides artifacts.scores_chart)")
	return cmd
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode run summary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "write %s", path)
}

func writePredictions(w io.Writer, pred []float64) error {
	if _, err := fmt.Fprintln(w, "predicted_math_score"); err != nil {
		return err
	}
	for _, v := range pred {
		if _, err := fmt.Fprintln(w, strconv.FormatFloat(v, 'f', 4, 64)); err != nil {
			return err
		}
	}
	return nil
}
