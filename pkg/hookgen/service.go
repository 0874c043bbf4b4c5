package hookgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mihaimyh/hookgen/pkg/hookgen/prompt"
	"github.com/mihaimyh/hookgen/pkg/hookgen/schema"
)

// AnalysisTemperature is the sampling temperature for hook analysis
const AnalysisTemperature float32 = 0.7

type requestIDKey struct{}

// WithRequestID attaches a request ID that the pipeline uses in logs and outcomes.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request ID attached to ctx, or a new one.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// ServiceConfig wires the pipeline stages together
type ServiceConfig struct {
	// Gate enforces daily quotas (required)
	Gate *Gate

	// Generator runs the model retry loop (required)
	Generator *Generator

	// Caller is used for single-shot calls such as Analyze (required)
	Caller *Caller

	// Access resolves admin and pro status (optional; without it nobody bypasses the gate)
	Access *Access

	// Recorder persists successful generations (optional)
	Recorder GenerationRecorder

	// Now returns the current time (default: time.Now)
	Now func() time.Time

	// Metrics is used for tracking pipeline operations (default: NoopMetrics)
	Metrics Metrics

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Service runs the full generation pipeline for one request.
type Service struct {
	gate      *Gate
	generator *Generator
	caller    *Caller
	access    *Access
	recorder  GenerationRecorder
	now       func() time.Time
	metrics   Metrics
	logger    Logger
}

// NewService creates a new generation pipeline
func NewService(config ServiceConfig) (*Service, error) {
	if config.Gate == nil {
		return nil, ErrStorageUnavailable
	}
	if config.Generator == nil || config.Caller == nil {
		return nil, ErrModelRequired
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}

	return &Service{
		gate:      config.Gate,
		generator: config.Generator,
		caller:    config.Caller,
		access:    config.Access,
		recorder:  config.Recorder,
		now:       config.Now,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Generate validates the request, checks the quota, runs the model and
// commits the quota only after a fully validated result.
func (s *Service) Generate(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	req.applyDefaults()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUnauthenticated
	}

	requestID := RequestIDFrom(ctx)
	s.logger.Info("generation requested",
		Field{Key: "request_id", Value: requestID},
		Field{Key: "user_id", Value: req.UserID},
		Field{Key: "niche", Value: req.Niche},
		Field{Key: "language", Value: req.Language},
	)

	isAdmin := s.access != nil && s.access.IsAdmin(ctx, req.UserID)

	var decision Decision
	if !isAdmin {
		decision = s.gate.CheckLimit(ctx, req.UserID)
		if !decision.Allowed {
			s.logger.Info("daily limit reached",
				Field{Key: "request_id", Value: requestID},
				Field{Key: "user_id", Value: req.UserID},
				Field{Key: "limit", Value: decision.Limit},
			)
			return nil, &QuotaExceededError{Decision: decision}
		}
	}

	result, err := s.generator.Generate(ctx, req.PromptParams(), requestID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{RequestID: requestID, Result: result, Remaining: -1}

	// The generation already happened; count and record it even if the client left.
	ctx = context.WithoutCancel(ctx)
	rec, err := s.gate.Commit(ctx, req.UserID)
	if err != nil {
		s.logger.Error("failed to commit quota",
			Field{Key: "request_id", Value: requestID},
			Field{Key: "user_id", Value: req.UserID},
			errField(err),
		)
	}
	if !isAdmin {
		outcome.Remaining = remainingAfter(decision, rec)
	}

	if s.recorder != nil {
		id, err := s.recorder.SaveGeneration(ctx, &Generation{
			UserID:     req.UserID,
			RequestID:  requestID,
			Niche:      req.Niche,
			VideoStyle: req.VideoStyle,
			Tone:       req.Tone,
			Duration:   req.Duration,
			Topic:      req.Topic,
			Language:   req.Language,
			Result:     result,
			CreatedAt:  s.now().UTC(),
		})
		if err != nil {
			s.logger.Warn("failed to save generation",
				Field{Key: "request_id", Value: requestID},
				errField(err),
			)
		} else {
			outcome.GenerationID = id
		}
	}

	return outcome, nil
}

// Usage returns the caller's quota view for today.
func (s *Service) Usage(ctx context.Context, userID string) (*Record, Decision, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, Decision{}, ErrUnauthenticated
	}
	return s.gate.Usage(ctx, userID)
}

// Analyze scores a single hook and body with one model call. It is not metered.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*schema.Analysis, error) {
	if err := schema.Validator().Struct(req); err != nil {
		return nil, invalidRequest(err)
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	requestID := RequestIDFrom(ctx)
	text, err := s.caller.CallWith(ctx, "", prompt.BuildAnalysisPrompt(prompt.AnalysisParams{
		Hook:       req.Hook,
		Body:       req.Body,
		Niche:      req.Niche,
		VideoStyle: req.VideoStyle,
		Language:   req.Language,
	}), AnalysisTemperature, requestID)
	if err != nil {
		if Classify(err) == ClassRateLimit {
			var rateErr *RateLimitError
			if !errors.As(err, &rateErr) {
				err = &RateLimitError{Err: err}
			}
		}
		return nil, err
	}

	analysis, err := schema.ParseAnalysis(text)
	if err != nil {
		return nil, &InvalidResponseError{Err: err}
	}
	return analysis, nil
}

func remainingAfter(d Decision, rec *Record) int {
	if rec == nil {
		// Commit failed; report what the check promised.
		if d.Remaining > 0 {
			return d.Remaining - 1
		}
		return 0
	}
	remaining := d.Limit - rec.GenerationsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

func validateRequest(req *Request) error {
	if err := schema.Validator().Struct(req); err != nil {
		return invalidRequest(err)
	}
	return nil
}

// invalidRequest turns validator errors into an ErrInvalidRequest naming the fields.
func invalidRequest(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("%w: missing or invalid fields: %s", ErrInvalidRequest, strings.Join(fields, ", "))
}
