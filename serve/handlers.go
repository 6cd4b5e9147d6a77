package serve

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mathscore/inference"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// PredictRequest は JSON API の入力
type PredictRequest struct {
	Records []inference.StudentRecord `json:"records"`
}

// PredictResponse は JSON API の出力。Predictions は Records と同じ順序。
type PredictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// ErrorResponse はエラー時の出力
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// FormOptions はフォームの選択肢
type FormOptions struct {
	Gender                   []string
	RaceEthnicity            []string
	ParentalLevelOfEducation []string
	Lunch                    []string
	TestPreparationCourse    []string
}

var defaultOptions = FormOptions{
	Gender:        []string{"male", "female"},
	RaceEthnicity: []string{"group A", "group B", "group C", "group D", "group E"},
	ParentalLevelOfEducation: []string{
		"associate's degree", "bachelor's degree", "high school",
		"master's degree", "some college", "some high school",
	},
	Lunch:                 []string{"free/reduced", "standard"},
	TestPreparationCourse: []string{"none", "completed"},
}

type formPage struct {
	Options   FormOptions
	Input     inference.StudentRecord
	Result    float64
	HasResult bool
	Error     string
}

func (s *Server) handleForm(c *gin.Context) {
	c.HTML(http.StatusOK, "predict.html", formPage{Options: defaultOptions})
}

func (s *Server) handleFormPredict(c *gin.Context) {
	page := formPage{Options: defaultOptions}
	if err := c.ShouldBind(&page.Input); err != nil {
		s.metrics.predictions.WithLabelValues("form", "invalid").Inc()
		page.Error = "invalid form: " + err.Error()
		c.HTML(http.StatusBadRequest, "predict.html", page)
		return
	}

	pred, status, err := s.predict("form", []inference.StudentRecord{page.Input})
	if err != nil {
		page.Error = err.Error()
		c.HTML(status, "predict.html", page)
		return
	}
	page.Result, page.HasResult = pred[0], true
	c.HTML(http.StatusOK, "predict.html", page)
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.predictions.WithLabelValues("api", "invalid").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	if len(req.Records) == 0 {
		s.metrics.predictions.WithLabelValues("api", "invalid").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "records is empty", Code: "INVALID_REQUEST"})
		return
	}

	pred, status, err := s.predict("api", req.Records)
	if err != nil {
		code := "PREDICTION_FAILED"
		if status == http.StatusBadRequest {
			code = "INVALID_RECORD"
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, PredictResponse{Predictions: pred})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// predict は入力を検証して予測し、失敗時は返すべきステータスも返す
func (s *Server) predict(endpoint string, records []inference.StudentRecord) ([]float64, int, error) {
	raw := make([]inference.Record, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			s.metrics.predictions.WithLabelValues(endpoint, "invalid").Inc()
			return nil, http.StatusBadRequest, err
		}
		raw[i] = r.ToRecord()
	}

	start := time.Now()
	pred, err := s.predictor.Predict(raw)
	s.metrics.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		var te *errors.TransformationError
		if errors.As(err, &te) {
			s.metrics.predictions.WithLabelValues(endpoint, "invalid").Inc()
			return nil, http.StatusBadRequest, err
		}
		s.metrics.predictions.WithLabelValues(endpoint, "error").Inc()
		s.logger.Error("Prediction failed", err, "endpoint", endpoint)
		return nil, http.StatusInternalServerError, err
	}
	s.metrics.predictions.WithLabelValues(endpoint, "success").Inc()
	return pred, http.StatusOK, nil
}
