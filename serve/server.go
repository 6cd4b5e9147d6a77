// Package serve exposes a prediction pipeline over HTTP: an HTML form at
// /predictdata, a JSON API at /api/v1/predict, a health check and Prometheus
// metrics.
package serve

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/mathscore/inference"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
)

//go:embed templates/*.html
var templates embed.FS

// Predictor は予測を行うもの。inference.Pipeline が満たす。
type Predictor interface {
	Predict(records []inference.Record) ([]float64, error)
}

// Server は予測APIのHTTPサーバー
type Server struct {
	predictor Predictor
	registry  *prometheus.Registry
	metrics   *metrics
	engine    *gin.Engine
	logger    log.Logger
}

// New はルーティングを設定した Server を作成する。
// reg が nil なら新しいレジストリを作り、Goランタイムのメトリクスも登録する。
func New(p Predictor, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s := &Server{
		predictor: p,
		registry:  reg,
		metrics:   newMetrics(reg),
		logger:    log.GetLoggerWithName("serve"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	engine.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/predictdata") })
	engine.GET("/predictdata", s.handleForm)
	engine.POST("/predictdata", s.handleFormPredict)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	v1 := engine.Group("/api/v1")
	v1.POST("/predict", s.handlePredict)

	s.engine = engine
	return s
}

// Handler は http.Handler としてのサーバーを返す
func (s *Server) Handler() http.Handler { return s.engine }

// Run は addr で待ち受け、ctx が終了すると処理中のリクエストを待って停止する
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve: listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Server shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)

		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}
