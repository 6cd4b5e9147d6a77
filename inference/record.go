package inference

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// StudentRecord は予測フォームとJSON APIの入力
type StudentRecord struct {
	Gender                   string   `json:"gender" form:"gender" validate:"required"`
	RaceEthnicity            string   `json:"race_ethnicity" form:"ethnicity" validate:"required"`
	ParentalLevelOfEducation string   `json:"parental_level_of_education" form:"parental_level_of_education" validate:"required"`
	Lunch                    string   `json:"lunch" form:"lunch" validate:"required"`
	TestPreparationCourse    string   `json:"test_preparation_course" form:"test_preparation_course" validate:"required"`
	ReadingScore             *float64 `json:"reading_score" form:"reading_score" validate:"required,gte=0,lte=100"`
	WritingScore             *float64 `json:"writing_score" form:"writing_score" validate:"required,gte=0,lte=100"`
}

// Score はスコアのフィールド用のポインタを返す
func Score(v float64) *float64 { return &v }

var validate = validator.New()

// Validate はフィールドの制約を検査する。最初に違反したフィールドを ValidationError で返す。
func (s StudentRecord) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return errors.NewValidationError(f.Field(), "failed on the '"+f.Tag()+"' rule", f.Value())
		}
		return err
	}
	return nil
}

// ToRecord は学習データの列名をキーとする Record に変換する
func (s StudentRecord) ToRecord() Record {
	return Record{
		"gender":                      s.Gender,
		"race_ethnicity":              s.RaceEthnicity,
		"parental_level_of_education": s.ParentalLevelOfEducation,
		"lunch":                       s.Lunch,
		"test_preparation_course":     s.TestPreparationCourse,
		"reading_score":               formatScore(s.ReadingScore),
		"writing_score":               formatScore(s.WritingScore),
	}
}

// formatScore は未入力を空文字列（欠損）にする
func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
