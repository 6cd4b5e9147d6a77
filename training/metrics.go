package training

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics は学習実行の Prometheus メトリクス
type Metrics struct {
	// StageDuration は各ステージの所要時間。Labels: stage
	StageDuration *prometheus.HistogramVec

	// Runs は実行回数。Labels: outcome (success, or the failing stage)
	Runs *prometheus.CounterVec

	// CandidateScore は候補ごとの直近のスコア。Labels: candidate
	CandidateScore *prometheus.GaugeVec

	// TestScore は直近に選ばれたモデルのテスト分割R²
	TestScore prometheus.Gauge
}

// NewMetrics は reg にメトリクスを登録する。reg が nil なら登録しない。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mathscore",
			Subsystem: "training",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each training pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mathscore",
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Total training runs by outcome",
		}, []string{"outcome"}),
		CandidateScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mathscore",
			Subsystem: "training",
			Name:      "candidate_score",
			Help:      "Selection score of each candidate in the latest run",
		}, []string{"candidate"}),
		TestScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mathscore",
			Subsystem: "training",
			Name:      "test_r2_score",
			Help:      "Held-out R2 of the model selected in the latest run",
		}),
	}
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
