package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/llm"
)

const validAnalysisJSON = `{
  "summary": "Perfil dominante e direto.",
  "strengths": ["Decisão rápida", "Foco em resultado"],
  "developmentAreas": ["Paciência"],
  "workStyleInsights": "Prefere autonomia.",
  "teamDynamicsInsights": "Assume a liderança.",
  "traitDescriptions": {"D": "Alta dominância"}
}`

func newTestQueue(t *testing.T, client llm.Client, cache AnalysisCache) *AnalysisQueue {
	t.Helper()
	q := NewAnalysisQueue(client, cache, AnalysisQueueConfig{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		YieldDelay:  time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(q.Close)
	return q
}

func sampleRequest(resultID string) AnalysisRequest {
	return AnalysisRequest{
		ResultID: resultID,
		UserName: "Ana",
		Traits: []AnalysisTrait{
			{Name: "D", Score: 50, Label: "Moderate"},
			{Name: "I", Score: 25, Label: "Low"},
		},
	}
}

func TestAnalysisQueueSecondCallHitsCache(t *testing.T) {
	client := &llm.ScriptedClient{Replies: []llm.Reply{{Text: validAnalysisJSON}}}
	cache := NewMemoryAnalysisCache()
	q := newTestQueue(t, client, cache)
	ctx := context.Background()

	first, err := q.GetAnalysis(ctx, sampleRequest("r1"))
	require.NoError(t, err)
	assert.Equal(t, "Perfil dominante e direto.", first.Summary)
	assert.False(t, first.Fallback)

	second, err := q.GetAnalysis(ctx, sampleRequest("r1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, 1, q.Stats()[JobCachedHit])
	assert.Equal(t, 1, q.Stats()[JobSucceeded])
}

func TestAnalysisQueueMalformedTwiceReturnsPersistedFallback(t *testing.T) {
	client := &llm.ScriptedClient{Replies: []llm.Reply{{Text: "não é json"}, {Text: `{"strengths": ["x"]}`}}}
	cache := NewMemoryAnalysisCache()
	q := newTestQueue(t, client, cache)

	rec, err := q.GetAnalysis(context.Background(), sampleRequest("r2"))
	require.NoError(t, err)
	assert.True(t, rec.Fallback)
	assert.Equal(t, fallbackAnalysis(rec.GeneratedAt), rec)
	assert.Equal(t, 2, client.Calls())

	stored, ok, err := cache.Get(context.Background(), "r2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, stored)

	again, err := q.GetAnalysis(context.Background(), sampleRequest("r2"))
	require.NoError(t, err)
	assert.Equal(t, rec, again)
	assert.Equal(t, 2, client.Calls())
}

func TestAnalysisQueueRateLimitPropagatesAndStartsCooldown(t *testing.T) {
	client := &llm.ScriptedClient{Replies: []llm.Reply{{Err: &llm.RateLimitError{RetryAfter: 30 * time.Second}}}}
	cache := NewMemoryAnalysisCache()
	q := newTestQueue(t, client, cache)
	ctx := context.Background()

	_, err := q.GetAnalysis(ctx, sampleRequest("r3"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
	assert.Equal(t, 1, client.Calls())

	_, ok, _ := cache.Get(ctx, "r3")
	assert.False(t, ok, "rate limited requests must not persist a fallback")

	assert.Greater(t, q.CooldownRemaining(), 20*time.Second)

	_, err = q.GetAnalysis(ctx, sampleRequest("r4"))
	secs, limited := RetryAfterSeconds(err)
	require.True(t, limited)
	assert.InDelta(t, 30, secs, 2)
	assert.Equal(t, 1, client.Calls(), "cooldown must skip the external call")
}

func TestAnalysisQueueCacheHitIgnoresCooldown(t *testing.T) {
	client := &llm.ScriptedClient{Replies: []llm.Reply{{Err: &llm.RateLimitError{RetryAfter: time.Minute}}}}
	cache := NewMemoryAnalysisCache()
	require.NoError(t, cache.Put(context.Background(), "cached", domain.AnalysisRecord{Summary: "ok"}))
	q := newTestQueue(t, client, cache)

	_, err := q.GetAnalysis(context.Background(), sampleRequest("miss"))
	require.Error(t, err)

	rec, err := q.GetAnalysis(context.Background(), sampleRequest("cached"))
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Summary)
}

func TestAnalysisQueueAcceptsFencedJSONAndCoercesFields(t *testing.T) {
	raw := "```json\n" + `{
  "summary": "Resumo",
  "strengths": ["a", 3, null, "b", ""],
  "developmentAreas": "não é lista",
  "workStyleInsights": 42,
  "teamDynamicsInsights": true,
  "traitDescriptions": {"D": "dom", "I": 7, "S": null}
}` + "\n```"
	client := &llm.MockClient{Response: raw}
	q := newTestQueue(t, client, NewMemoryAnalysisCache())

	rec, err := q.GetAnalysis(context.Background(), sampleRequest("r5"))
	require.NoError(t, err)
	assert.Equal(t, "Resumo", rec.Summary)
	assert.Equal(t, []string{"a", "b"}, rec.Strengths)
	assert.Equal(t, []string{}, rec.DevelopmentAreas)
	assert.Equal(t, "42", rec.WorkStyleInsights)
	assert.Equal(t, "true", rec.TeamDynamicsInsights)
	assert.Equal(t, map[string]string{"D": "dom", "I": "7"}, rec.TraitDescriptions)
	assert.Equal(t, analysisSystemPrompt, client.LastRequest().System)
	assert.Contains(t, client.LastRequest().Prompt, "Ana")
}

func TestAnalysisQueueForceRefreshBypassesCache(t *testing.T) {
	cache := NewMemoryAnalysisCache()
	require.NoError(t, cache.Put(context.Background(), "r6", domain.AnalysisRecord{Summary: "antigo"}))
	client := &llm.MockClient{Response: validAnalysisJSON}
	q := newTestQueue(t, client, cache)

	req := sampleRequest("r6")
	req.ForceRefresh = true
	rec, err := q.GetAnalysis(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Perfil dominante e direto.", rec.Summary)
	assert.Equal(t, 1, client.Calls())

	stored, _, _ := cache.Get(context.Background(), "r6")
	assert.Equal(t, rec.Summary, stored.Summary)
}

func TestAnalysisQueueRegeneratesMalformedCacheEntry(t *testing.T) {
	cache := NewMemoryAnalysisCache()
	require.NoError(t, cache.Put(context.Background(), "r7", domain.AnalysisRecord{Summary: "  "}))
	client := &llm.MockClient{Response: validAnalysisJSON}
	q := newTestQueue(t, client, cache)

	rec, err := q.GetAnalysis(context.Background(), sampleRequest("r7"))
	require.NoError(t, err)
	assert.True(t, rec.WellFormed())
	assert.Equal(t, 1, client.Calls())
}

func TestAnalysisQueueUnavailableIsNotMasked(t *testing.T) {
	client := &llm.MockClient{Err: fmt.Errorf("%w: dial tcp", llm.ErrUnavailable)}
	cache := NewMemoryAnalysisCache()
	q := newTestQueue(t, client, cache)

	_, err := q.GetAnalysis(context.Background(), sampleRequest("r8"))
	assert.True(t, errors.Is(err, llm.ErrUnavailable))
	assert.Equal(t, 1, client.Calls())
	_, ok, _ := cache.Get(context.Background(), "r8")
	assert.False(t, ok)
}

func TestAnalysisQueueOtherErrorsFallBack(t *testing.T) {
	client := &llm.MockClient{Err: llm.ErrPollTimeout}
	q := newTestQueue(t, client, NewMemoryAnalysisCache())

	rec, err := q.GetAnalysis(context.Background(), sampleRequest("r9"))
	require.NoError(t, err)
	assert.True(t, rec.Fallback)
	assert.Equal(t, 2, client.Calls())
	assert.Equal(t, 1, q.Stats()[JobFallbackSucceeded])
}

func TestAnalysisQueueRejectsEmptyResultID(t *testing.T) {
	q := newTestQueue(t, &llm.MockClient{}, nil)
	_, err := q.GetAnalysis(context.Background(), AnalysisRequest{ResultID: "  "})
	assert.ErrorIs(t, err, ErrInvalidAnalysisResult)
}

type concurrencyClient struct {
	inFlight int32
	maxSeen  int32
	calls    int32
}

func (c *concurrencyClient) Complete(ctx context.Context, r llm.Request) (string, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	atomic.AddInt32(&c.calls, 1)
	for {
		prev := atomic.LoadInt32(&c.maxSeen)
		if n <= prev || atomic.CompareAndSwapInt32(&c.maxSeen, prev, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return validAnalysisJSON, nil
}

func TestAnalysisQueueSingleFlight(t *testing.T) {
	client := &concurrencyClient{}
	q := newTestQueue(t, client, NewMemoryAnalysisCache())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.GetAnalysis(context.Background(), sampleRequest(fmt.Sprintf("sf-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(6), atomic.LoadInt32(&client.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.maxSeen))
}

type gatedClient struct {
	release chan struct{}
	started chan struct{}
}

func (g *gatedClient) Complete(ctx context.Context, r llm.Request) (string, error) {
	close(g.started)
	<-g.release
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return validAnalysisJSON, nil
}

func TestAnalysisQueueJobCompletesAfterCallerGivesUp(t *testing.T) {
	client := &gatedClient{release: make(chan struct{}), started: make(chan struct{})}
	cache := NewMemoryAnalysisCache()
	q := NewAnalysisQueue(client, cache, AnalysisQueueConfig{Backoff: time.Millisecond, YieldDelay: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.GetAnalysis(ctx, sampleRequest("late"))
		errCh <- err
	}()

	<-client.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(client.release)
	q.Close()

	rec, ok, err := cache.Get(context.Background(), "late")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Perfil dominante e direto.", rec.Summary)
}

func TestAnalysisQueueBackoffDoublesBetweenAttempts(t *testing.T) {
	const backoff = 20 * time.Millisecond
	client := &llm.ScriptedClient{Replies: []llm.Reply{{Text: "não é json"}}}
	q := NewAnalysisQueue(client, NewMemoryAnalysisCache(), AnalysisQueueConfig{
		MaxAttempts: 3,
		Backoff:     backoff,
		YieldDelay:  time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(q.Close)

	start := time.Now()
	rec, err := q.GetAnalysis(context.Background(), sampleRequest("backoff"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, rec.Fallback)
	assert.Equal(t, 3, client.Calls())
	// 20ms + 40ms entre intentos, nada despues del ultimo
	assert.GreaterOrEqual(t, elapsed, backoff*3)
}

func TestAnalysisQueueCloseStopsWorker(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	q := NewAnalysisQueue(&llm.MockClient{Response: validAnalysisJSON}, NewMemoryAnalysisCache(), AnalysisQueueConfig{YieldDelay: time.Millisecond}, zap.NewNop())
	_, err := q.GetAnalysis(context.Background(), sampleRequest("close"))
	require.NoError(t, err)

	q.Close()
	q.Close()

	_, err = q.GetAnalysis(context.Background(), sampleRequest("after-close"))
	assert.ErrorIs(t, err, ErrQueueClosed)

	goleak.VerifyNone(t, ignore)
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	secs, ok := RetryAfterSeconds(&llm.RateLimitError{RetryAfter: 1500 * time.Millisecond})
	require.True(t, ok)
	assert.Equal(t, 2, secs)

	_, ok = RetryAfterSeconds(errors.New("x"))
	assert.False(t, ok)
}
