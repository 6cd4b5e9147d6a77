package serve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	// predictions は予測リクエスト数。Labels: endpoint (form, api), outcome (success, invalid, error)
	predictions *prometheus.CounterVec

	// latency はパイプラインの予測時間。Labels: endpoint
	latency *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mathscore",
			Subsystem: "serve",
			Name:      "predictions_total",
			Help:      "Total prediction requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mathscore",
			Subsystem: "serve",
			Name:      "predict_duration_seconds",
			Help:      "Time spent in the prediction pipeline in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"endpoint"}),
	}
}
