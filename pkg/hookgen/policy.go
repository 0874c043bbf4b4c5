package hookgen

import "time"

// AttemptState is the retry state of a single generation request.
type AttemptState string

const (
	StateFirstAttempt AttemptState = "first_attempt"
	StateRepaired     AttemptState = "repaired"
	StateRetrying     AttemptState = "retrying"
	StateExhausted    AttemptState = "exhausted"
)

// Action tells the orchestrator what to do after a failed attempt.
type Action string

const (
	ActionRepair Action = "repair"
	ActionRetry  Action = "retry"
	ActionFail   Action = "fail"
)

// DefaultRetryDelays are the backoff delays between attempts
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// RetryPolicy decides between repair, backoff and failure for one request.
// The repair prompt is offered at most once, and only for an invalid first response.
type RetryPolicy struct {
	maxAttempts int
	delays      []time.Duration

	state      AttemptState
	attempt    int
	repairUsed bool
	lastErr    error
}

// NewRetryPolicy creates a policy allowing maxAttempts model attempts
func NewRetryPolicy(maxAttempts int, delays []time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		delays:      delays,
		state:       StateFirstAttempt,
	}
}

// State returns the current state.
func (p *RetryPolicy) State() AttemptState {
	return p.state
}

// Attempt returns the zero-based index of the current attempt.
func (p *RetryPolicy) Attempt() int {
	return p.attempt
}

// LastErr returns the last failure the policy saw.
func (p *RetryPolicy) LastErr() error {
	return p.lastErr
}

// OnFailure records a failed attempt. hasResponse reports whether the model
// returned any text that a repair prompt could work from.
func (p *RetryPolicy) OnFailure(err error, hasResponse bool) (Action, time.Duration) {
	p.lastErr = err

	class := Classify(err)
	if class.Terminal() {
		p.state = StateExhausted
		return ActionFail, 0
	}

	if class == ClassInvalidResponse && hasResponse && p.state == StateFirstAttempt && !p.repairUsed {
		p.repairUsed = true
		return ActionRepair, 0
	}

	return p.advance()
}

// OnRepairFailed records a failed repair call and continues with normal backoff,
// unless the repair itself hit a terminal error.
func (p *RetryPolicy) OnRepairFailed(err error) (Action, time.Duration) {
	if err != nil && Classify(err).Terminal() {
		p.lastErr = err
		p.state = StateExhausted
		return ActionFail, 0
	}
	return p.advance()
}

// OnRepaired records a successful repair.
func (p *RetryPolicy) OnRepaired() {
	p.state = StateRepaired
}

func (p *RetryPolicy) advance() (Action, time.Duration) {
	if p.attempt >= p.maxAttempts-1 {
		p.state = StateExhausted
		return ActionFail, 0
	}

	var delay time.Duration
	if len(p.delays) > 0 {
		i := p.attempt
		if i >= len(p.delays) {
			i = len(p.delays) - 1
		}
		delay = p.delays[i]
	}

	p.attempt++
	p.state = StateRetrying
	return ActionRetry, delay
}
