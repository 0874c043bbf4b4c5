// Package schema validates the JSON the generative model returns.
// Invalid shapes are rejected outright; nothing is auto-corrected here.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	// ScriptCount is the exact number of hook variations a result must carry
	ScriptCount = 10

	// MinCaptions is the minimum number of on-screen captions
	MinCaptions = 3

	// StrictCaptions is the exact caption count required in strict mode
	StrictCaptions = 6
)

// Script is a single hook variation.
type Script struct {
	Hook         string `json:"hook" validate:"required,max=50"`
	Body         string `json:"body" validate:"min=50"`
	CallToAction string `json:"callToAction" validate:"required"`
}

// Caption is a timed on-screen text overlay.
type Caption struct {
	Timing string `json:"timing" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

// Result is a validated generation result.
type Result struct {
	Scripts      []Script  `json:"scripts" validate:"len=10,dive"`
	OnScreenText []Caption `json:"onScreenText" validate:"min=3,dive"`
	VisualPrompt string    `json:"visualPrompt" validate:"min=20"`
}

// Options tune validation for stricter deployments.
type Options struct {
	// ExactCaptions, when positive, requires exactly this many captions
	ExactCaptions int
}

// Violation is a single failed rule at a JSON field path.
type Violation struct {
	Path    string
	Message string
}

// ValidationError lists every violation found in a result.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Path+": "+v.Message)
	}
	return "invalid generation response: " + strings.Join(parts, ", ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator, configured to report JSON field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// CleanJSON strips markdown code fences the model sometimes wraps around JSON.
func CleanJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// Parse decodes raw model text into a Result and validates it.
func Parse(text string, opts Options) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(CleanJSON(text)), &r); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if err := Validate(&r, opts); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks a decoded Result against the structural contract.
// A valid result is returned untouched, so validating twice is a no-op.
func Validate(r *Result, opts Options) error {
	if r == nil {
		return &ValidationError{Violations: []Violation{{Path: "", Message: "result is required"}}}
	}

	var violations []Violation
	if err := Validator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			violations = append(violations, Violation{
				Path:    fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	if opts.ExactCaptions > 0 && len(r.OnScreenText) != opts.ExactCaptions {
		violations = append(violations, Violation{
			Path:    "onScreenText",
			Message: fmt.Sprintf("must contain exactly %d items", opts.ExactCaptions),
		})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// fieldPath turns "Result.scripts[3].hook" into "scripts.3.hook".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must contain exactly %s items", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at least %s items", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must contain at most %s items", fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}
