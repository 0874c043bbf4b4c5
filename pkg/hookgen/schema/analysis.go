package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Analysis is the model's viral-potential assessment of a single script.
type Analysis struct {
	ViralScore     int            `json:"viralScore" validate:"gte=0,lte=100"`
	Engagement     Engagement     `json:"engagement"`
	ViewPrediction ViewPrediction `json:"viewPrediction"`
	Analysis       Breakdown      `json:"analysis"`
}

// Engagement holds predicted interaction rates in percent.
type Engagement struct {
	LikeRate    float64 `json:"likeRate" validate:"gte=0"`
	CommentRate float64 `json:"commentRate" validate:"gte=0"`
	ShareRate   float64 `json:"shareRate" validate:"gte=0"`
	SaveRate    float64 `json:"saveRate" validate:"gte=0"`
}

// ViewPrediction holds the predicted view range and average watch time.
type ViewPrediction struct {
	Min          int     `json:"min" validate:"gte=0"`
	Max          int     `json:"max" validate:"gtefield=Min"`
	AvgWatchTime float64 `json:"avgWatchTime" validate:"gte=0"`
}

// Breakdown is the qualitative part of an analysis.
type Breakdown struct {
	Strengths   []string    `json:"strengths" validate:"required,min=1"`
	Weaknesses  []string    `json:"weaknesses"`
	Suggestions []string    `json:"suggestions" validate:"required,min=1"`
	HookQuality HookQuality `json:"hookQuality"`
}

// HookQuality scores the hook line itself.
type HookQuality struct {
	WordCount      int    `json:"wordCount" validate:"gte=0"`
	PowerWords     int    `json:"powerWords" validate:"gte=0"`
	EmotionTrigger string `json:"emotionTrigger"`
	PatternMatch   string `json:"patternMatch"`
}

// ParseAnalysis decodes and validates an analysis response.
func ParseAnalysis(text string) (*Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(CleanJSON(text)), &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}

	if err := Validator().Struct(&a); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		ve := &ValidationError{}
		for _, fe := range verrs {
			ve.Violations = append(ve.Violations, Violation{
				Path:    fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
		return nil, ve
	}
	return &a, nil
}
