package serve

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mathscore/inference"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePredictor は (reading + writing) / 2 を返す
type fakePredictor struct {
	err   error
	calls [][]inference.Record
}

func (f *fakePredictor) Predict(records []inference.Record) ([]float64, error) {
	f.calls = append(f.calls, records)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(records))
	for i, r := range records {
		var reading, writing float64
		_ = json.Unmarshal([]byte(r["reading_score"]), &reading)
		_ = json.Unmarshal([]byte(r["writing_score"]), &writing)
		out[i] = (reading + writing) / 2
	}
	return out, nil
}

func validForm() url.Values {
	return url.Values{
		"gender":                      {"female"},
		"ethnicity":                   {"group B"},
		"parental_level_of_education": {"bachelor's degree"},
		"lunch":                       {"standard"},
		"test_preparation_course":     {"none"},
		"reading_score":               {"72"},
		"writing_score":               {"74"},
	}
}

func validRecord() inference.StudentRecord {
	return inference.StudentRecord{
		Gender: "male", RaceEthnicity: "group A", ParentalLevelOfEducation: "high school",
		Lunch: "standard", TestPreparationCourse: "completed",
		ReadingScore: inference.Score(60), WritingScore: inference.Score(80),
	}
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/predictdata", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestIndexRedirects(t *testing.T) {
	s := New(&fakePredictor{}, prometheus.NewRegistry())
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/predictdata", w.Header().Get("Location"))
}

func TestForm(t *testing.T) {
	s := New(&fakePredictor{}, prometheus.NewRegistry())
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/predictdata", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student Exam Performance Prediction")
	assert.Contains(t, w.Body.String(), "some high school")
	assert.NotContains(t, w.Body.String(), "The prediction is")
	assert.NotContains(t, w.Body.String(), "nil")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestFormPredict(t *testing.T) {
	fake := &fakePredictor{}
	s := New(fake, prometheus.NewRegistry())

	w := do(t, s, postForm(validForm()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The prediction is 73.00")
	assert.Contains(t, w.Body.String(), `value="72"`)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "group B", fake.calls[0][0]["race_ethnicity"], "form field ethnicity maps to race_ethnicity")
}

func TestFormPredictInvalid(t *testing.T) {
	fake := &fakePredictor{}
	s := New(fake, prometheus.NewRegistry())

	form := validForm()
	form.Set("reading_score", "150")
	w := do(t, s, postForm(form))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "The prediction is")
	assert.Empty(t, fake.calls)

	form = validForm()
	form.Set("writing_score", "abc")
	w = do(t, s, postForm(form))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未入力のスコアは0として扱わない
	form = validForm()
	form.Del("reading_score")
	w = do(t, s, postForm(form))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.calls)
}

func TestAPIPredict(t *testing.T) {
	s := New(&fakePredictor{}, prometheus.NewRegistry())

	second := validRecord()
	second.ReadingScore, second.WritingScore = inference.Score(90), inference.Score(100)
	w := do(t, s, postJSON(t, PredictRequest{Records: []inference.StudentRecord{validRecord(), second}}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []float64{70, 95}, resp.Predictions)
}

func TestAPIPredictErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   interface{}
		status int
		code   string
	}{
		{"empty records", nil, PredictRequest{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"malformed", nil, "not an object", http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid record", nil, PredictRequest{Records: []inference.StudentRecord{{ReadingScore: inference.Score(50)}}}, http.StatusBadRequest, "INVALID_RECORD"},
		{
			"transformation failure", errors.NewTransformationError("Transform", "lunch", "column is missing"),
			PredictRequest{Records: []inference.StudentRecord{validRecord()}}, http.StatusBadRequest, "INVALID_RECORD",
		},
		{
			"model failure", errors.New("boom"),
			PredictRequest{Records: []inference.StudentRecord{validRecord()}}, http.StatusInternalServerError, "PREDICTION_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakePredictor{err: tt.err}, prometheus.NewRegistry())
			w := do(t, s, postJSON(t, tt.body))
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := New(&fakePredictor{}, prometheus.NewRegistry())

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	do(t, s, postJSON(t, PredictRequest{Records: []inference.StudentRecord{validRecord()}}))
	w = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mathscore_serve_predictions_total{endpoint="api",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "mathscore_serve_predict_duration_seconds")
}

func TestNewWithDefaultRegistry(t *testing.T) {
	s := New(&fakePredictor{}, nil)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
