// Package report renders the outcome of a training run: a bar chart of the
// candidate scores and a ranked plain-text summary.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/training"
)

// RenderScores は候補のスコアを順位順の棒グラフにし、合格ラインを水平線で重ねて path に保存する。
// 形式は拡張子で決まる（.png, .svg, .pdf など）。NaN のスコアは0として描く。
func RenderScores(r *training.Report, minScore float64, path string) error {
	if r == nil || len(r.Entries) == 0 {
		return errors.NewValueError("RenderScores", "report is empty")
	}
	ranked := training.Rank(r)

	values := make(plotter.Values, len(ranked))
	names := make([]string, len(ranked))
	for i, e := range ranked {
		names[i] = e.Name
		if !math.IsNaN(e.Score) {
			values[i] = e.Score
		}
	}

	p := plot.New()
	p.Title.Text = "Candidate scores (R²)"
	p.Y.Label.Text = "R²"
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return errors.Wrap(err, "report: bar chart")
	}
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight

	gate, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: minScore},
		{X: float64(len(ranked)) - 0.5, Y: minScore},
	})
	if err != nil {
		return errors.Wrap(err, "report: gate line")
	}
	gate.LineStyle.Color = color.RGBA{R: 200, A: 255}
	gate.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(gate)
	p.Legend.Add(fmt.Sprintf("min score %.2f", minScore), gate)
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "report: mkdir")
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// WriteSummary は学習結果を順位表として書き出す
func WriteSummary(w io.Writer, res *training.Result) error {
	if res == nil || res.Report == nil {
		return errors.NewValueError("WriteSummary", "result is empty")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "selected\t%s %v\n", res.BestName, res.BestParams)
	fmt.Fprintf(tw, "selection score\t%.4f\n", res.SelectionScore)
	fmt.Fprintf(tw, "test R2\t%.4f\n", res.TestScore)
	fmt.Fprintf(tw, "test MSE / RMSE / MAE\t%.4f / %.4f / %.4f\n",
		res.TestMetrics.MSE, res.TestMetrics.RMSE, res.TestMetrics.MAE)
	fmt.Fprintf(tw, "artifacts\t%s, %s\n\n", res.PreprocessorPath, res.ModelPath)

	fmt.Fprintln(tw, "RANK\tCANDIDATE\tSCORE\tSOURCE\tPARAMS")
	for i, e := range training.Rank(res.Report) {
		source := "test split"
		if e.CrossValidated {
			source = fmt.Sprintf("%d-fold CV", len(e.FoldScores))
		}
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\t%v\n", i+1, e.Name, e.Score, source, e.Params)
	}
	return tw.Flush()
}
