package hookgen_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/internal/fixture"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/storage/memory"
)

type serviceFixture struct {
	service *hookgen.Service
	store   *memory.Storage
	model   *scriptedModel
}

func newTestService(t *testing.T, replies ...reply) *serviceFixture {
	t.Helper()
	store := memory.New()
	model := newModel(replies...)

	caller, err := hookgen.NewCaller(model, hookgen.CallerConfig{Timeout: time.Second})
	require.NoError(t, err)
	gen, err := hookgen.NewGenerator(caller, hookgen.GeneratorConfig{RetryDelays: []time.Duration{}})
	require.NoError(t, err)
	access, err := hookgen.NewAccess(store, hookgen.AccessConfig{AdminEmails: []string{"boss@example.com"}})
	require.NoError(t, err)

	service, err := hookgen.NewService(hookgen.ServiceConfig{
		Gate:      newTestGate(t, store),
		Generator: gen,
		Caller:    caller,
		Access:    access,
		Recorder:  store,
		Now:       fixedClock,
	})
	require.NoError(t, err)
	return &serviceFixture{service: service, store: store, model: model}
}

func fitnessRequest() *hookgen.Request {
	return &hookgen.Request{
		Niche:      "fitness",
		VideoStyle: "educational/how-to",
		Topic:      "sabah egzersizi",
		Tone:       "casual",
		WordCount:  "30-50",
		Language:   "tr",
		UserID:     "user1",
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := hookgen.NewService(hookgen.ServiceConfig{})
	assert.ErrorIs(t, err, hookgen.ErrStorageUnavailable)

	gate := newTestGate(t, memory.New())
	_, err = hookgen.NewService(hookgen.ServiceConfig{Gate: gate})
	assert.ErrorIs(t, err, hookgen.ErrModelRequired)
}

func TestService_FitnessScenario(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := hookgen.WithRequestID(context.Background(), "req-fit")

	outcome, err := f.service.Generate(ctx, fitnessRequest())
	require.NoError(t, err)
	assert.Equal(t, "req-fit", outcome.RequestID)
	assert.Len(t, outcome.Result.Scripts, 10)
	require.NotEmpty(t, outcome.Result.OnScreenText)
	for _, c := range outcome.Result.OnScreenText {
		assert.NotEmpty(t, c.Timing)
	}
	assert.Equal(t, 2, outcome.Remaining)
	assert.NotEmpty(t, outcome.GenerationID)

	p := f.model.Request(0).Prompt
	assert.Contains(t, p, "TURKISH")
	assert.Contains(t, p, "~30-50 words")
	assert.Contains(t, p, "Tone: casual")

	rec, err := f.store.GetRecord(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GenerationsToday)

	gens := f.store.Generations("user1")
	require.Len(t, gens, 1)
	assert.Equal(t, "req-fit", gens[0].RequestID)
	assert.Equal(t, "sabah egzersizi", gens[0].Topic)
}

func TestService_QuotaMonotonicity(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		outcome, err := f.service.Generate(ctx, fitnessRequest())
		require.NoError(t, err)
		assert.Equal(t, 3-n, outcome.Remaining)
	}

	_, err := f.service.Generate(ctx, fitnessRequest())
	var quotaErr *hookgen.QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.False(t, quotaErr.Decision.Allowed)
	assert.Equal(t, 3, f.model.Calls(), "rejected requests never reach the model")
}

func TestService_AdminBypass(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := context.Background()
	require.NoError(t, f.store.SetRecord(ctx, &hookgen.Record{
		UserID: "user1", IsAdmin: true, GenerationsToday: 999, LastGenerationDate: "2025-03-01",
	}))

	outcome, err := f.service.Generate(ctx, fitnessRequest())
	require.NoError(t, err)
	assert.Equal(t, -1, outcome.Remaining)
	assert.Equal(t, 1, f.model.Calls())
}

func TestService_AdminByEmail(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := context.Background()
	require.NoError(t, f.store.SetRecord(ctx, &hookgen.Record{
		UserID: "user1", Email: "boss@example.com", GenerationsToday: 3, LastGenerationDate: "2025-03-01",
	}))

	_, err := f.service.Generate(ctx, fitnessRequest())
	require.NoError(t, err)
}

func TestService_FailedGenerationIsNotCounted(t *testing.T) {
	f := newTestService(t, reply{block: true})
	caller, err := hookgen.NewCaller(f.model, hookgen.CallerConfig{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	gen, err := hookgen.NewGenerator(caller, hookgen.GeneratorConfig{RetryDelays: []time.Duration{}})
	require.NoError(t, err)
	service, err := hookgen.NewService(hookgen.ServiceConfig{
		Gate:      newTestGate(t, f.store),
		Generator: gen,
		Caller:    caller,
	})
	require.NoError(t, err)

	_, err = service.Generate(context.Background(), fitnessRequest())
	assert.Equal(t, hookgen.ClassTimeout, hookgen.Classify(err))

	_, err = f.store.GetRecord(context.Background(), "user1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestService_CommitSurvivesClientDisconnect(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caller, err := hookgen.NewCaller(&hangupModel{text: fixture.ValidResult(), cancel: cancel}, hookgen.CallerConfig{Timeout: time.Second})
	require.NoError(t, err)
	gen, err := hookgen.NewGenerator(caller, hookgen.GeneratorConfig{RetryDelays: []time.Duration{}})
	require.NoError(t, err)
	service, err := hookgen.NewService(hookgen.ServiceConfig{
		Gate:      newTestGate(t, contextStore{Store: store}),
		Generator: gen,
		Caller:    caller,
		Recorder:  store,
		Now:       fixedClock,
	})
	require.NoError(t, err)

	outcome, err := service.Generate(ctx, fitnessRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Remaining)
	assert.NotEmpty(t, outcome.GenerationID)

	rec, err := store.GetRecord(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GenerationsToday)
}

func TestService_InvalidRequests(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := context.Background()

	_, err := f.service.Generate(ctx, nil)
	assert.ErrorIs(t, err, hookgen.ErrInvalidRequest)

	req := fitnessRequest()
	req.Topic = ""
	_, err = f.service.Generate(ctx, req)
	assert.ErrorIs(t, err, hookgen.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "topic")

	req = fitnessRequest()
	req.UserID = " "
	_, err = f.service.Generate(ctx, req)
	assert.ErrorIs(t, err, hookgen.ErrUnauthenticated)

	assert.Equal(t, 0, f.model.Calls())
}

func TestService_AppliesDefaults(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	req := &hookgen.Request{Niche: "finance", VideoStyle: "storytime", Topic: "budgeting", UserID: "user1"}

	_, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, hookgen.DefaultLanguage, req.Language)
	assert.Equal(t, hookgen.DefaultDuration, req.Duration)
	assert.Contains(t, f.model.Request(0).Prompt, "~300-360 words")
}

func TestService_Usage(t *testing.T) {
	f := newTestService(t, reply{text: fixture.ValidResult()})
	ctx := context.Background()

	_, _, err := f.service.Usage(ctx, "")
	assert.ErrorIs(t, err, hookgen.ErrUnauthenticated)

	_, err = f.service.Generate(ctx, fitnessRequest())
	require.NoError(t, err)

	rec, d, err := f.service.Usage(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GenerationsToday)
	assert.Equal(t, 2, d.Remaining)
}

func TestService_Analyze(t *testing.T) {
	f := newTestService(t, reply{text: fixture.Fenced(fixture.Analysis())})
	ctx := context.Background()

	analysis, err := f.service.Analyze(ctx, hookgen.AnalyzeRequest{
		Hook: "Nobody tells you this",
		Body: "Most people stretch wrong before running.",
	})
	require.NoError(t, err)
	assert.Equal(t, 78, analysis.ViralScore)

	req := f.model.Request(0)
	assert.Equal(t, hookgen.AnalysisTemperature, req.Temperature)
	assert.Empty(t, req.System)
	assert.Contains(t, req.Prompt, "TURKISH")

	_, err = f.service.Analyze(ctx, hookgen.AnalyzeRequest{Hook: "only a hook"})
	assert.ErrorIs(t, err, hookgen.ErrInvalidRequest)
}

func TestService_AnalyzeErrors(t *testing.T) {
	f := newTestService(t, reply{text: `{"viralScore": 150}`}, reply{err: errors.New("rate limit exceeded")})
	ctx := context.Background()
	req := hookgen.AnalyzeRequest{Hook: "h", Body: "b"}

	_, err := f.service.Analyze(ctx, req)
	assert.Equal(t, hookgen.ClassInvalidResponse, hookgen.Classify(err))

	_, err = f.service.Analyze(ctx, req)
	var rateErr *hookgen.RateLimitError
	assert.True(t, errors.As(err, &rateErr))
}
