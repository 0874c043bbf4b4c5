package hookgen

import (
	"context"
	"errors"
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen/prompt"
)

const (
	// DefaultCallTimeout is the hard wall-clock limit for one model call
	DefaultCallTimeout = 50 * time.Second

	// DefaultTemperature is the sampling temperature for script generation
	DefaultTemperature float32 = 0.85
)

// CompletionRequest is a single text completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
}

// Model is the outbound generative-AI text completion service.
// Implementations must stop work when ctx is cancelled.
type Model interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CallerConfig holds model call configuration
type CallerConfig struct {
	// System is the system prompt sent with every call (default: prompt.SystemPrompt())
	System string

	// Temperature is the sampling temperature (default: 0.85)
	Temperature float32

	// Timeout is the per-call deadline (default: 50s)
	Timeout time.Duration

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger
}

// Caller wraps a Model with a per-call timeout.
type Caller struct {
	model  Model
	config CallerConfig
	logger Logger
}

// NewCaller creates a new timed model caller
func NewCaller(model Model, config CallerConfig) (*Caller, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if config.System == "" {
		config.System = prompt.SystemPrompt()
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCallTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Caller{model: model, config: config, logger: logger}, nil
}

// Timeout returns the configured per-call deadline.
func (c *Caller) Timeout() time.Duration {
	return c.config.Timeout
}

// Call sends text to the model and returns its raw response.
// When the call deadline fires first, Call returns *TimeoutError.
func (c *Caller) Call(ctx context.Context, text, requestID string) (string, error) {
	return c.CallWith(ctx, c.config.System, text, c.config.Temperature, requestID)
}

// CallWith is Call with an explicit system prompt and temperature.
func (c *Caller) CallWith(ctx context.Context, system, text string, temperature float32, requestID string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	c.logger.Debug("calling model",
		Field{Key: "request_id", Value: requestID},
		Field{Key: "timeout", Value: c.config.Timeout.String()},
	)

	start := time.Now()
	resp, err := c.model.Complete(callCtx, CompletionRequest{
		System:      system,
		Prompt:      text,
		Temperature: temperature,
	})
	elapsed := time.Since(start)

	if err != nil {
		// Only our own deadline is a timeout; a cancelled parent stays a context error.
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("model call timed out",
				Field{Key: "request_id", Value: requestID},
				Field{Key: "elapsed", Value: elapsed.String()},
			)
			return "", &TimeoutError{RequestID: requestID}
		}
		return "", err
	}

	c.logger.Debug("model call finished",
		Field{Key: "request_id", Value: requestID},
		Field{Key: "elapsed", Value: elapsed.String()},
	)
	return resp, nil
}
