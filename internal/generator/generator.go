// Package generator is the top-level generation pipeline. It owns a FIFO
// request queue served by a single worker, sizes every request against the
// model's token budget, and routes it through either a single streaming call
// or the chunked path (split, batched calls, merge). Transient provider
// failures are retried with linear backoff; a token-limit failure on the
// single-shot path falls back to chunking instead of failing.
package generator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/testweaver-ai/testweaver/internal/batch"
	"github.com/testweaver-ai/testweaver/internal/budget"
	"github.com/testweaver-ai/testweaver/internal/cache"
	"github.com/testweaver-ai/testweaver/internal/chunker"
	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/llm"
	"github.com/testweaver-ai/testweaver/internal/logger"
	"github.com/testweaver-ai/testweaver/internal/merge"
	"github.com/testweaver-ai/testweaver/internal/progress"
	"github.com/testweaver-ai/testweaver/internal/rag"
)

// Request is one generation job
type Request struct {
	ID      string
	Code    string
	Options Options

	// Context describes the scraped artifact (file path, language,
	// dependencies); may be nil
	Context *chunker.ContextSnapshot
	// Snippets is retrieval context gathered before budgeting
	Snippets []rag.Snippet
	// History is prior conversation, oldest first
	History []*llm.Message

	// OnDelta receives streaming content; in chunked mode the accumulated
	// text is per chunk. May be nil.
	OnDelta llm.StreamCallback
	// OnProgress receives chunk completion counts; may be nil
	OnProgress progress.Callback
}

// Result is the terminal outcome of one request
type Result struct {
	Text       string
	Chunked    bool
	ChunkCount int
	TokensUsed int
	ModelID    string
	FromCache  bool
}

// Config tunes a Generator; zero values fall back to defaults
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	CallTimeout   time.Duration
	Cache         *cache.Store
}

// Generator runs generation requests one at a time in arrival order
type Generator struct {
	client   llm.Client
	est      *llm.Estimator
	budgeter *budget.Budgeter
	splitter *chunker.Chunker
	store    *cache.Store

	maxConcurrent int
	maxRetries    int
	callTimeout   time.Duration
	backoffBase   time.Duration
	sleep         func(time.Duration)

	queue chan *pending
	quit  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

type pending struct {
	ctx      context.Context
	req      *Request
	resultCh chan outcome
}

type outcome struct {
	result *Result
	err    error
}

// New creates a Generator and starts its worker loop
func New(client llm.Client, est *llm.Estimator, cfg Config) *Generator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = consts.DefaultMaxConcurrent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = consts.DefaultMaxRetries
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = consts.DefaultLLMTimeout
	}

	g := &Generator{
		client:        client,
		est:           est,
		budgeter:      budget.New(est),
		splitter:      chunker.New(est),
		store:         cfg.Cache,
		maxConcurrent: cfg.MaxConcurrent,
		maxRetries:    cfg.MaxRetries,
		callTimeout:   cfg.CallTimeout,
		backoffBase:   consts.RetryBackoffBase,
		sleep:         time.Sleep,
		queue:         make(chan *pending, consts.RequestQueueSize),
		quit:          make(chan struct{}),
		inflight:      make(map[string]context.CancelFunc),
	}
	go g.worker()
	return g
}

// Generate enqueues a request and blocks until it settles. Requests are
// served strictly in arrival order; a second request while one is in flight
// waits rather than running in parallel.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || strings.TrimSpace(req.Code) == "" {
		return nil, llm.NewError(llm.KindInvalidInput, "no code provided")
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if req.ID != "" {
		g.mu.Lock()
		g.inflight[req.ID] = cancel
		g.mu.Unlock()
		defer func() {
			g.mu.Lock()
			delete(g.inflight, req.ID)
			g.mu.Unlock()
		}()
	}

	p := &pending{ctx: reqCtx, req: req, resultCh: make(chan outcome, 1)}
	select {
	case g.queue <- p:
	case <-reqCtx.Done():
		return nil, llm.WrapError(llm.KindOf(reqCtx.Err()), reqCtx.Err(), "request aborted before processing")
	case <-g.quit:
		return nil, llm.NewError(llm.KindCancelled, "generator is shut down")
	}

	out := <-p.resultCh
	return out.result, out.err
}

// Cancel aborts the request with the given ID, whether queued or in flight.
// Unknown IDs are ignored.
func (g *Generator) Cancel(requestID string) {
	g.mu.Lock()
	cancel := g.inflight[requestID]
	g.mu.Unlock()

	if cancel != nil {
		logger.Info("generator: cancelling request %s", requestID)
		cancel()
	}
}

// Close stops the worker. Queued requests settle with a cancellation error.
func (g *Generator) Close() {
	g.once.Do(func() { close(g.quit) })
}

func (g *Generator) worker() {
	for {
		select {
		case <-g.quit:
			g.drain()
			return
		case p := <-g.queue:
			result, err := g.process(p.ctx, p.req)
			p.resultCh <- outcome{result: result, err: err}
		}
	}
}

func (g *Generator) drain() {
	for {
		select {
		case p := <-g.queue:
			p.resultCh <- outcome{err: llm.NewError(llm.KindCancelled, "generator is shut down")}
		default:
			return
		}
	}
}

func (g *Generator) process(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.WrapError(llm.KindOf(err), err, "request aborted while queued")
	}

	modelID := req.Options.Model
	if modelID == "" {
		modelID = g.client.GetModelName()
	}

	cacheKey := cache.Key(modelID, req.Options.Fingerprint(), req.Code)
	if g.store != nil {
		if text, ok := g.store.Get(cacheKey); ok {
			logger.Debug("generator: cache hit for request %s", req.ID)
			if req.OnDelta != nil {
				_ = req.OnDelta(text, text)
			}
			return &Result{Text: text, ChunkCount: 1, ModelID: modelID, FromCache: true}, nil
		}
	}

	content := budget.Content{
		Code:       req.Code,
		RAGContext: rag.JoinFull(req.Snippets),
		History:    req.History,
	}
	bud := g.budgeter.ComputeBudget(
		g.est.EstimateTokens(content.Code),
		g.est.EstimateTokens(content.RAGContext),
		g.est.CountMessagesTokens(content.History),
		modelID,
	)
	logger.Debug("generator: request %s budget %d/%d tokens (chunking=%v)",
		req.ID, bud.TotalTokens, bud.EffectiveLimit, bud.NeedsChunking)

	result, err := g.route(ctx, req, modelID, content, bud)
	if err != nil {
		return nil, err
	}

	if g.store != nil {
		g.store.Put(cacheKey, result.Text)
	}
	return result, nil
}

// route decides the processing path. Code that fits on its own goes single
// shot, truncating history and retrieval context as needed; code that does
// not fit is chunked. A single-shot attempt rejected by the provider for
// size falls back to chunking rather than failing.
func (g *Generator) route(ctx context.Context, req *Request, modelID string, content budget.Content, bud budget.TokenBudget) (*Result, error) {
	codeFitsAlone := bud.CodeTokens+consts.PromptOverheadTokens <= bud.EffectiveLimit

	if !bud.NeedsChunking || codeFitsAlone {
		fitted, fittedBudget, err := g.budgeter.TruncateToFit(modelID, content)
		if err == nil {
			result, singleErr := g.singleShot(ctx, req, modelID, fitted, fittedBudget)
			if singleErr == nil {
				return result, nil
			}
			if llm.KindOf(singleErr) != llm.KindTokenLimit {
				return nil, singleErr
			}
			logger.Warn("generator: provider rejected single-shot request for size, switching to chunked processing")
		}
	}

	return g.chunked(ctx, req, modelID, bud)
}

func (g *Generator) singleShot(ctx context.Context, req *Request, modelID string, content budget.Content, bud budget.TokenBudget) (*Result, error) {
	userPrompt := buildUserPrompt(content.Code, content.RAGContext, req.Context, req.Options)

	messages := make([]*llm.Message, 0, len(content.History)+1)
	messages = append(messages, content.History...)
	messages = append(messages, &llm.Message{Role: "user", Content: userPrompt})

	completion := &llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: buildSystemPrompt(req.Options),
		Temperature:  consts.DefaultTemperature,
		MaxTokens:    consts.DefaultMaxTokens,
	}

	text, err := g.callWithRetry(ctx, completion, req.OnDelta)
	if err != nil {
		return nil, err
	}

	progress.Dispatch(req.OnProgress, progress.Update{
		Processed: 1, Total: 1, Percentage: 100, IsLast: true,
	})

	return &Result{
		Text:       text,
		ChunkCount: 1,
		TokensUsed: bud.TotalTokens + g.est.EstimateTokens(text),
		ModelID:    modelID,
	}, nil
}

func (g *Generator) chunked(ctx context.Context, req *Request, modelID string, bud budget.TokenBudget) (*Result, error) {
	language := ""
	if req.Context != nil {
		language = req.Context.Language
	}

	chunks := g.splitter.CreateSemanticChunks(req.Code, language, modelID)
	if len(chunks) == 0 {
		return nil, llm.NewError(llm.KindInvalidInput, "no code provided")
	}

	// Per-chunk context carries snippet previews, not full snippets: N
	// chunks each embedding the full retrieval context would multiply its
	// token cost by N
	snapshot := req.Context.Clone()
	if snapshot == nil {
		snapshot = &chunker.ContextSnapshot{}
	}
	if len(req.Snippets) > 0 {
		summary := rag.Summarize(g.est, req.Snippets, 0)
		snapshot.RAGContext = summary.Text
		snapshot.RAGSources = summary.Sources
	}
	chunks = g.splitter.PrepareChunksWithContext(chunks, snapshot)

	systemPrompt := buildSystemPrompt(req.Options)

	// OnDelta may be invoked from concurrent chunk tasks
	var deltaMu sync.Mutex
	forward := func(delta, accumulated string) error {
		if req.OnDelta == nil {
			return nil
		}
		deltaMu.Lock()
		defer deltaMu.Unlock()
		return req.OnDelta(delta, accumulated)
	}

	tasks := make([]batch.Task[string], len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		tasks[i] = batch.Task[string]{
			Index: chunk.Index,
			Run: func(taskCtx context.Context) (string, error) {
				completion := &llm.CompletionRequest{
					Messages:     []*llm.Message{{Role: "user", Content: buildChunkPrompt(chunk, req.Options)}},
					SystemPrompt: systemPrompt,
					Temperature:  consts.DefaultTemperature,
					MaxTokens:    consts.DefaultMaxTokens,
				}
				return g.callWithRetry(taskCtx, completion, forward)
			},
		}
	}

	results := batch.ProcessBatches(ctx, batch.Split(tasks, g.maxConcurrent), req.OnProgress)

	failures := 0
	var firstErr error
	tokensUsed := bud.TotalTokens
	for _, result := range results {
		if result.Err != nil {
			failures++
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		tokensUsed += g.est.EstimateTokens(result.Output)
	}

	if failures == len(results) {
		return nil, llm.WrapError(llm.KindOf(firstErr), firstErr, "all %d chunks failed", len(results))
	}
	if err := ctx.Err(); err != nil {
		return nil, llm.WrapError(llm.KindOf(err), err, "request aborted during chunk processing")
	}
	if failures > 0 {
		logger.Warn("generator: %d of %d chunks failed, merging partial result", failures, len(results))
	}

	return &Result{
		Text:       merge.Merge(results, merge.StrategyIntelligent),
		Chunked:    true,
		ChunkCount: len(chunks),
		TokensUsed: tokensUsed,
		ModelID:    modelID,
	}, nil
}

// callWithRetry performs one streaming call with a per-call timeout,
// retrying transient failures with linear backoff. Cancellation and
// non-retryable kinds return immediately. Timeouts and empty responses get
// a single extra attempt; other transient kinds get the full retry cap.
func (g *Generator) callWithRetry(ctx context.Context, completion *llm.CompletionRequest, onDelta llm.StreamCallback) (string, error) {
	retries := make(map[llm.Kind]int)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", llm.WrapError(llm.KindOf(err), err, "request aborted")
		}

		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		text, err := g.client.Stream(callCtx, completion, onDelta)
		cancel()

		if err == nil {
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			err = llm.NewError(llm.KindEmptyResponse, "provider returned no content")
		}

		// The parent context aborting must surface as cancellation even when
		// the per-call deadline classified it as a timeout
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", llm.WrapError(llm.KindOf(ctxErr), ctxErr, "request aborted")
		}

		if !llm.IsRetryable(err) {
			return "", err
		}

		kind := llm.KindOf(err)
		retries[kind]++
		if retries[kind] > g.retryLimit(kind) {
			return "", err
		}

		logger.Debug("generator: retry %d for %s after %v", retries[kind], kind, err)
		g.sleep(g.backoffBase * time.Duration(attempt+1))
	}
}

// retryLimit is the number of additional attempts allowed per failure kind:
// one for timeouts and empty responses, the full cap for connectivity and
// rate-limit failures.
func (g *Generator) retryLimit(kind llm.Kind) int {
	switch kind {
	case llm.KindTimeout, llm.KindEmptyResponse:
		return 1
	default:
		return g.maxRetries
	}
}
