package hookgen

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mihaimyh/hookgen/pkg/hookgen/prompt"
	"github.com/mihaimyh/hookgen/pkg/hookgen/schema"
)

// DefaultMaxRetries is the number of model attempts per generation
const DefaultMaxRetries = 3

// GeneratorConfig holds orchestrator configuration
type GeneratorConfig struct {
	// MaxRetries is the number of model attempts (default: 3)
	MaxRetries int

	// RetryDelays are the backoff delays between attempts (default: 1s, 2s, 4s)
	RetryDelays []time.Duration

	// StrictCaptions requires exactly schema.StrictCaptions captions instead of at least schema.MinCaptions
	StrictCaptions bool

	// Metrics is used for tracking generation attempts (default: NoopMetrics)
	Metrics Metrics

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Generator runs the retry, repair and validation loop around a Caller.
type Generator struct {
	caller  *Caller
	config  GeneratorConfig
	metrics Metrics
	logger  Logger
	tracer  trace.Tracer
}

// NewGenerator creates a new generation orchestrator
func NewGenerator(caller *Caller, config GeneratorConfig) (*Generator, error) {
	if caller == nil {
		return nil, ErrModelRequired
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryDelays == nil {
		config.RetryDelays = DefaultRetryDelays
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}

	return &Generator{
		caller:  caller,
		config:  config,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("github.com/mihaimyh/hookgen/pkg/hookgen"),
	}, nil
}

// MaxDuration is the longest Generate can run: every attempt and the repair
// call reaching the call timeout, plus every backoff delay.
func (g *Generator) MaxDuration() time.Duration {
	calls := g.config.MaxRetries + 1
	d := time.Duration(calls) * g.caller.config.Timeout
	if len(g.config.RetryDelays) == 0 {
		return d
	}
	for i := 0; i < g.config.MaxRetries-1; i++ {
		d += g.config.RetryDelays[min(i, len(g.config.RetryDelays)-1)]
	}
	return d
}

// schemaOptions returns the validation options matching the configured caption mode.
func (g *Generator) schemaOptions() schema.Options {
	if g.config.StrictCaptions {
		return schema.Options{ExactCaptions: schema.StrictCaptions}
	}
	return schema.Options{}
}

// Captions returns the number of captions requested from the model.
func (g *Generator) Captions() int {
	if g.config.StrictCaptions {
		return schema.StrictCaptions
	}
	return prompt.DefaultCaptions
}

// Generate builds the prompt and runs attempts until a valid result,
// a terminal error, or exhaustion.
func (g *Generator) Generate(ctx context.Context, params prompt.Params, requestID string) (*schema.Result, error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "hookgen.Generate", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("niche", params.Niche),
		attribute.String("language", params.Language),
	))
	defer span.End()

	if params.Captions <= 0 {
		params.Captions = g.Captions()
	}
	userPrompt := prompt.BuildUserPrompt(params)

	result, err := g.run(ctx, userPrompt, requestID)

	class := Classify(err)
	g.metrics.RecordGeneration(class, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, string(class))
		span.RecordError(errors.New(RedactSecrets(err.Error())))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (g *Generator) run(ctx context.Context, userPrompt, requestID string) (*schema.Result, error) {
	policy := NewRetryPolicy(g.config.MaxRetries, g.config.RetryDelays)

	for {
		g.logger.Info("generation attempt",
			Field{Key: "request_id", Value: requestID},
			Field{Key: "attempt", Value: policy.Attempt() + 1},
			Field{Key: "max_attempts", Value: g.config.MaxRetries},
			Field{Key: "state", Value: string(policy.State())},
		)

		text, result, err := g.attempt(ctx, userPrompt, requestID, "attempt")
		if err == nil {
			g.logger.Info("generation succeeded",
				Field{Key: "request_id", Value: requestID},
				Field{Key: "scripts", Value: len(result.Scripts)},
			)
			return result, nil
		}

		action, delay := policy.OnFailure(err, text != "")

		if action == ActionRepair {
			g.logger.Info("attempting JSON repair", Field{Key: "request_id", Value: requestID})
			_, repaired, repairErr := g.attempt(ctx, prompt.BuildRepairPrompt(text), requestID, "repair")
			if repairErr == nil {
				policy.OnRepaired()
				g.metrics.RecordGenerationAttempt("repair_success")
				g.logger.Info("repair succeeded", Field{Key: "request_id", Value: requestID})
				return repaired, nil
			}
			g.metrics.RecordGenerationAttempt("repair_failed")
			g.logger.Warn("repair failed", Field{Key: "request_id", Value: requestID}, errField(repairErr))
			action, delay = policy.OnRepairFailed(repairErr)
		}

		if action == ActionFail {
			return nil, g.finalError(policy, requestID)
		}

		g.logger.Info("retrying after backoff",
			Field{Key: "request_id", Value: requestID},
			Field{Key: "delay", Value: delay.String()},
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt performs one model call plus parse and validation.
// It returns the raw text even when validation fails so it can be repaired.
func (g *Generator) attempt(ctx context.Context, p, requestID, kind string) (string, *schema.Result, error) {
	ctx, span := g.tracer.Start(ctx, "hookgen.attempt", trace.WithAttributes(
		attribute.String("kind", kind),
	))
	defer span.End()

	text, err := g.caller.Call(ctx, p, requestID)
	if err != nil {
		class := Classify(err)
		g.metrics.RecordGenerationAttempt(string(class))
		span.SetStatus(codes.Error, string(class))
		return "", nil, err
	}

	result, err := schema.Parse(text, g.schemaOptions())
	if err != nil {
		g.metrics.RecordGenerationAttempt(string(ClassInvalidResponse))
		span.SetStatus(codes.Error, string(ClassInvalidResponse))
		g.logger.Warn("model response rejected",
			Field{Key: "request_id", Value: requestID},
			errField(err),
		)
		return text, nil, &InvalidResponseError{Err: err}
	}

	g.metrics.RecordGenerationAttempt("success")
	return text, result, nil
}

// finalError converts the policy's last error into what the caller sees.
func (g *Generator) finalError(policy *RetryPolicy, requestID string) error {
	err := policy.LastErr()
	if err == nil {
		return ErrGenerationFailed
	}

	switch Classify(err) {
	case ClassTimeout:
		g.logger.Error("model timed out, not retrying", Field{Key: "request_id", Value: requestID})
	case ClassRateLimit:
		g.logger.Error("model rate limited, not retrying", Field{Key: "request_id", Value: requestID})
		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			err = &RateLimitError{Err: err}
		}
	default:
		g.logger.Error("all attempts exhausted",
			Field{Key: "request_id", Value: requestID},
			errField(err),
		)
	}
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
