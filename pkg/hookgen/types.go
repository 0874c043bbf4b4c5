package hookgen

import (
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen/prompt"
	"github.com/mihaimyh/hookgen/pkg/hookgen/schema"
)

const (
	// DefaultLanguage is used when a request carries no language
	DefaultLanguage = "tr"
	// DefaultDuration is the video length bucket used when a request carries none
	DefaultDuration = "60"

	// DefaultFreeLimit is the daily generation limit for free users
	DefaultFreeLimit = 3
	// DefaultProLimit is the daily generation limit for pro users
	DefaultProLimit = 100
)

// GenerationResult is the validated model output returned to callers.
type GenerationResult = schema.Result

// Request is the input to the generation pipeline.
type Request struct {
	Niche      string `json:"niche" validate:"required"`
	VideoStyle string `json:"videoStyle" validate:"required"`
	Topic      string `json:"topic" validate:"required"`
	Tone       string `json:"tone,omitempty"`
	Duration   string `json:"duration,omitempty"`
	WordCount  string `json:"wordCount,omitempty" validate:"omitempty,max=16"`
	Language   string `json:"language,omitempty" validate:"omitempty,max=8"`
	UserID     string `json:"userId,omitempty"`

	// Optional targeting hints
	TargetAudience string `json:"targetAudience,omitempty" validate:"omitempty,max=500"`
	PainPoint      string `json:"painPoint,omitempty" validate:"omitempty,max=500"`
	UniqueValue    string `json:"uniqueValue,omitempty" validate:"omitempty,max=500"`
}

// applyDefaults fills in the language and duration buckets the request leaves empty.
func (r *Request) applyDefaults() {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Duration == "" {
		r.Duration = DefaultDuration
	}
}

// PromptParams converts the request into prompt builder parameters.
func (r *Request) PromptParams() prompt.Params {
	return prompt.Params{
		Niche:          r.Niche,
		VideoStyle:     r.VideoStyle,
		Topic:          r.Topic,
		Tone:           r.Tone,
		Duration:       r.Duration,
		WordCount:      r.WordCount,
		Language:       r.Language,
		TargetAudience: r.TargetAudience,
		PainPoint:      r.PainPoint,
		UniqueValue:    r.UniqueValue,
	}
}

// Record is the per-user quota record, keyed by UserID.
type Record struct {
	UserID             string    `json:"id"`
	Email              string    `json:"email,omitempty"`
	GenerationsToday   int       `json:"generationsToday"`
	GenerationsTotal   int       `json:"generationsTotal"`
	LastGenerationDate string    `json:"lastGenerationDate"`
	IsPro              bool      `json:"isPro"`
	IsAdmin            bool      `json:"isAdmin"`
	IsOnline           bool      `json:"isOnline"`
	CreatedAt          time.Time `json:"createdAt"`
	LastActivity       time.Time `json:"lastActivity"`
}

// UsedOn returns the generations counted against the given day.
// A record last written on another day counts as zero (lazy daily reset).
func (r *Record) UsedOn(day string) int {
	if r == nil || r.LastGenerationDate != day {
		return 0
	}
	return r.GenerationsToday
}

// RecordUpdate describes an admin mutation of a quota record.
// Nil pointers leave the corresponding field unchanged.
type RecordUpdate struct {
	IsPro            *bool
	IsAdmin          *bool
	IsOnline         *bool
	ResetGenerations bool
	Now              time.Time
}

// Decision is the result of a quota check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	IsPro     bool      `json:"isPro"`
	ResetAt   time.Time `json:"resetAt"`
}

// Generation is a persisted generation, written after a successful run.
type Generation struct {
	ID         string
	UserID     string
	RequestID  string
	Niche      string
	VideoStyle string
	Tone       string
	Duration   string
	Topic      string
	Language   string
	Result     *GenerationResult
	CreatedAt  time.Time
}

// Outcome is what Service.Generate hands back to the HTTP layer.
type Outcome struct {
	RequestID    string            `json:"requestId"`
	Result       *GenerationResult `json:"result"`
	Remaining    int               `json:"remaining"`
	GenerationID string            `json:"generationId,omitempty"`
}

// AnalyzeRequest asks the model to score a single hook/body pair.
type AnalyzeRequest struct {
	Hook       string `json:"hook" validate:"required"`
	Body       string `json:"body" validate:"required"`
	Niche      string `json:"niche"`
	VideoStyle string `json:"videoStyle"`
	Language   string `json:"language,omitempty"`
}

// Increment applies one successful generation on day to the record in place.
// Adapters that cannot run this logic server-side call it inside a transaction.
func (r *Record) Increment(day string, now time.Time) {
	if r.LastGenerationDate != day {
		r.GenerationsToday = 0
	}
	r.GenerationsToday++
	r.GenerationsTotal++
	r.LastGenerationDate = day
	r.LastActivity = now.UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
}

// Apply applies an admin mutation to the record in place.
func (r *Record) Apply(u RecordUpdate) {
	if u.IsPro != nil {
		r.IsPro = *u.IsPro
	}
	if u.IsAdmin != nil {
		r.IsAdmin = *u.IsAdmin
	}
	if u.IsOnline != nil {
		r.IsOnline = *u.IsOnline
	}
	if u.ResetGenerations {
		r.GenerationsToday = 0
	}
	if !u.Now.IsZero() {
		r.LastActivity = u.Now.UTC()
	}
}
