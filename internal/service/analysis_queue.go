package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/llm"
)

// AnalysisCache guarda un AnalysisRecord por resultado.
type AnalysisCache interface {
	Get(ctx context.Context, resultID string) (domain.AnalysisRecord, bool, error)
	Put(ctx context.Context, resultID string, rec domain.AnalysisRecord) error
}

type AnalysisRequest struct {
	ResultID     string
	Traits       []AnalysisTrait
	Frequencies  []AnalysisFrequency
	UserName     string
	ForceRefresh bool
}

// JobState es el estado de un pedido dentro de la cola.
type JobState string

const (
	JobPending           JobState = "pending"
	JobInFlight          JobState = "in-flight"
	JobCachedHit         JobState = "cached-hit"
	JobSucceeded         JobState = "succeeded"
	JobFallbackSucceeded JobState = "fallback-succeeded"
	JobRateLimited       JobState = "rate-limited"
	JobFailed            JobState = "failed"
)

var (
	ErrQueueClosed           = errors.New("analysis queue closed")
	ErrInvalidAnalysisResult = errors.New("analysis request without result id")
)

type AnalysisQueueConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	QueueSize   int
	YieldDelay  time.Duration
}

func (c AnalysisQueueConfig) withDefaults() AnalysisQueueConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.YieldDelay <= 0 {
		c.YieldDelay = 50 * time.Millisecond
	}
	return c
}

type analysisJob struct {
	ctx    context.Context
	req    AnalysisRequest
	result chan analysisOutcome
}

type analysisOutcome struct {
	rec domain.AnalysisRecord
	err error
}

// AnalysisQueue serializa las llamadas al LLM: un unico worker atiende los pedidos en orden de llegada.
type AnalysisQueue struct {
	llm    llm.Client
	cache  AnalysisCache
	logger *zap.Logger
	cfg    AnalysisQueueConfig
	now    func() time.Time

	jobs chan *analysisJob
	quit chan struct{}
	done chan struct{}

	sendMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once

	mu            sync.Mutex
	cooldownUntil time.Time
	stats         map[JobState]int
}

func NewAnalysisQueue(client llm.Client, cache AnalysisCache, cfg AnalysisQueueConfig, logger *zap.Logger) *AnalysisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	q := &AnalysisQueue{
		llm:    client,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		jobs:   make(chan *analysisJob, cfg.QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		stats:  make(map[JobState]int),
	}
	go q.run()
	return q
}

// GetAnalysis devuelve el analisis cacheado o espera su turno en la cola.
// Si ctx termina el llamador deja de esperar, pero el pedido encolado se completa igual.
func (q *AnalysisQueue) GetAnalysis(ctx context.Context, req AnalysisRequest) (domain.AnalysisRecord, error) {
	req.ResultID = strings.TrimSpace(req.ResultID)
	if req.ResultID == "" {
		return domain.AnalysisRecord{}, ErrInvalidAnalysisResult
	}

	if !req.ForceRefresh {
		if rec, ok := q.lookup(ctx, req.ResultID); ok {
			q.transition(req.ResultID, JobCachedHit)
			return rec, nil
		}
	}

	if err := q.cooldownError(); err != nil {
		q.transition(req.ResultID, JobRateLimited)
		return domain.AnalysisRecord{}, err
	}

	job := &analysisJob{
		ctx:    context.WithoutCancel(ctx),
		req:    req,
		result: make(chan analysisOutcome, 1),
	}
	if err := q.enqueue(ctx, job); err != nil {
		return domain.AnalysisRecord{}, err
	}

	select {
	case out := <-job.result:
		return out.rec, out.err
	case <-ctx.Done():
		return domain.AnalysisRecord{}, ctx.Err()
	}
}

func (q *AnalysisQueue) enqueue(ctx context.Context, job *analysisJob) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.transition(job.req.ResultID, JobPending)
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close deja de aceptar pedidos, procesa los ya encolados y espera al worker.
func (q *AnalysisQueue) Close() {
	q.closeOnce.Do(func() {
		q.sendMu.Lock()
		q.closed = true
		close(q.quit)
		q.sendMu.Unlock()
	})
	<-q.done
}

// Stats devuelve cuantas transiciones hubo a cada estado.
func (q *AnalysisQueue) Stats() map[JobState]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[JobState]int, len(q.stats))
	for k, v := range q.stats {
		out[k] = v
	}
	return out
}

// CooldownRemaining es el tiempo que falta para volver a llamar al LLM tras un rate limit.
func (q *AnalysisQueue) CooldownRemaining() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if d := q.cooldownUntil.Sub(q.now()); d > 0 {
		return d
	}
	return 0
}

func (q *AnalysisQueue) run() {
	defer close(q.done)
	for {
		select {
		case job := <-q.jobs:
			q.process(job)
			q.yield()
		case <-q.quit:
			for {
				select {
				case job := <-q.jobs:
					q.process(job)
				default:
					return
				}
			}
		}
	}
}

func (q *AnalysisQueue) yield() {
	t := time.NewTimer(q.cfg.YieldDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-q.quit:
	}
}

func (q *AnalysisQueue) process(job *analysisJob) {
	rec, err := q.handle(job.ctx, job.req)
	job.result <- analysisOutcome{rec: rec, err: err}
}

func (q *AnalysisQueue) handle(ctx context.Context, req AnalysisRequest) (domain.AnalysisRecord, error) {
	// Un pedido identico que llego antes pudo haber llenado el cache mientras este esperaba.
	if !req.ForceRefresh {
		if rec, ok := q.lookup(ctx, req.ResultID); ok {
			q.transition(req.ResultID, JobCachedHit)
			return rec, nil
		}
	}
	if err := q.cooldownError(); err != nil {
		q.transition(req.ResultID, JobRateLimited)
		return domain.AnalysisRecord{}, err
	}

	q.transition(req.ResultID, JobInFlight)
	prompt := buildAnalysisPrompt(req.UserName, req.Traits, req.Frequencies)

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		raw, err := q.llm.Complete(ctx, llm.Request{System: analysisSystemPrompt, Prompt: prompt})
		if err != nil {
			if wait, limited := llm.RetryAfterFrom(err); limited {
				q.startCooldown(wait)
				q.logger.Warn("analysis rate limited", zap.String("result_id", req.ResultID), zap.Duration("retry_after", wait))
				q.transition(req.ResultID, JobRateLimited)
				return domain.AnalysisRecord{}, err
			}
			if errors.Is(err, llm.ErrUnavailable) {
				q.logger.Error("analysis llm unavailable", zap.String("result_id", req.ResultID), zap.Error(err))
				q.transition(req.ResultID, JobFailed)
				return domain.AnalysisRecord{}, err
			}
			lastErr = err
		} else {
			rec, perr := parseAnalysis(raw)
			if perr == nil {
				rec.GeneratedAt = q.now()
				q.persist(ctx, req.ResultID, rec)
				q.transition(req.ResultID, JobSucceeded)
				return rec, nil
			}
			lastErr = perr
		}

		q.logger.Warn("analysis attempt failed",
			zap.String("result_id", req.ResultID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", q.cfg.MaxAttempts),
			zap.Error(lastErr),
		)
		if attempt < q.cfg.MaxAttempts {
			time.Sleep(q.cfg.Backoff << (attempt - 1))
		}
	}

	q.logger.Error("analysis attempts exhausted, using fallback", zap.String("result_id", req.ResultID), zap.Error(lastErr))
	rec := fallbackAnalysis(q.now())
	q.persist(ctx, req.ResultID, rec)
	q.transition(req.ResultID, JobFallbackSucceeded)
	return rec, nil
}

func (q *AnalysisQueue) lookup(ctx context.Context, resultID string) (domain.AnalysisRecord, bool) {
	if q.cache == nil {
		return domain.AnalysisRecord{}, false
	}
	rec, ok, err := q.cache.Get(ctx, resultID)
	if err != nil {
		q.logger.Warn("analysis cache get failed", zap.String("result_id", resultID), zap.Error(err))
		return domain.AnalysisRecord{}, false
	}
	if !ok || !rec.WellFormed() {
		return domain.AnalysisRecord{}, false
	}
	return rec, true
}

func (q *AnalysisQueue) persist(ctx context.Context, resultID string, rec domain.AnalysisRecord) {
	if q.cache == nil {
		return
	}
	if err := q.cache.Put(ctx, resultID, rec); err != nil {
		q.logger.Error("analysis cache put failed", zap.String("result_id", resultID), zap.Error(err))
	}
}

func (q *AnalysisQueue) startCooldown(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	until := q.now().Add(d)
	if until.After(q.cooldownUntil) {
		q.cooldownUntil = until
	}
}

func (q *AnalysisQueue) cooldownError() error {
	if d := q.CooldownRemaining(); d > 0 {
		return &llm.RateLimitError{RetryAfter: d, Message: "cooldown active"}
	}
	return nil
}

func (q *AnalysisQueue) transition(resultID string, state JobState) {
	q.mu.Lock()
	q.stats[state]++
	q.mu.Unlock()
	q.logger.Info("analysis job state", zap.String("result_id", resultID), zap.String("state", string(state)))
}

// RetryAfterSeconds redondea hacia arriba la espera de un rate limit para mostrarla al usuario.
func RetryAfterSeconds(err error) (int, bool) {
	d, ok := llm.RetryAfterFrom(err)
	if !ok {
		return 0, false
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs, true
}
