package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xyleth/desloppify-sub004/internal/config"
	"github.com/xyleth/desloppify-sub004/internal/scoring"
	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

// maxPromptFindings bounds how many open findings are listed per prompt.
const maxPromptFindings = 40

// MessageCreator is the slice of the Anthropic client the reviewer uses.
// *anthropic.MessageService satisfies it.
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Reviewer asks a model for one subjective assessment per dimension.
type Reviewer struct {
	client    MessageCreator
	model     string
	maxTokens int64
	retry     RetryConfig
	breaker   *CircuitBreaker
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	policy    *scoring.Policy
}

// NewReviewer creates a reviewer backed by the Anthropic API. The key is
// read from ANTHROPIC_API_KEY.
func NewReviewer(cfg config.ReviewConfig, policy *scoring.Policy) (*Reviewer, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newReviewer(cfg, &client.Messages, policy), nil
}

func newReviewer(cfg config.ReviewConfig, client MessageCreator, policy *scoring.Policy) *Reviewer {
	if policy == nil {
		policy = scoring.DefaultPolicy()
	}
	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Reviewer{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(maxTokens),
		retry:     retry,
		breaker:   NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		policy:    policy,
	}
}

// dimensionResponse is what the model is asked to return.
type dimensionResponse struct {
	Score    float64 `json:"score"`
	Findings []struct {
		File       string           `json:"file"`
		Name       string           `json:"name"`
		Summary    string           `json:"summary"`
		Tier       int              `json:"tier"`
		Confidence types.Confidence `json:"confidence"`
	} `json:"findings"`
}

// Run reviews the given dimensions, or every default subjective dimension
// when dims is empty, and returns an import payload. A dimension that fails
// fails the whole run so that a partial review is never imported.
func (r *Reviewer) Run(ctx context.Context, s *types.State, dims []string) (*Payload, error) {
	if len(dims) == 0 {
		dims = r.policy.SubjectiveDefaults
	}
	keys := make([]string, 0, len(dims))
	seen := make(map[string]bool)
	for _, d := range dims {
		k := scoring.NormalizeDimensionKey(d)
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	open := findingContext(s)
	results := make([]*dimensionResponse, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range keys {
		g.Go(func() error {
			res, err := r.reviewDimension(gctx, dim, open)
			if err != nil {
				return fmt.Errorf("reviewing %s: %w", dim, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &Payload{Assessments: make(map[string]Score, len(keys)), Findings: []types.RawFinding{}}
	for i, dim := range keys {
		res := results[i]
		p.Assessments[dim] = Score(res.Score)
		for _, f := range res.Findings {
			if strings.TrimSpace(f.File) == "" || strings.TrimSpace(f.Summary) == "" {
				slog.Debug("dropping incomplete review finding", "dimension", dim, "file", f.File)
				continue
			}
			tier := f.Tier
			if tier < 1 || tier > 4 {
				tier = 3
			}
			confidence := f.Confidence
			if !confidence.IsValid() {
				confidence = types.ConfidenceMedium
			}
			name := f.Name
			if name == "" {
				name = dim
			}
			p.Findings = append(p.Findings, types.RawFinding{
				Detector:   "review",
				File:       f.File,
				Name:       name,
				Tier:       tier,
				Confidence: confidence,
				Summary:    f.Summary,
				Detail:     types.Detail{"dimension": dim},
			})
		}
	}
	return p, nil
}

func (r *Reviewer) reviewDimension(ctx context.Context, dim, findings string) (*dimensionResponse, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	prompt := r.buildPrompt(dim, findings)
	var text string
	err := r.retryWithBackoff(ctx, "review "+dim, func(attemptCtx context.Context) error {
		if err := r.limiter.Wait(attemptCtx); err != nil {
			return err
		}
		resp, err := r.client.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(r.model),
			MaxTokens: r.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, err := parseModelJSON[dimensionResponse](text)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Reviewer) buildPrompt(dim, findings string) string {
	return fmt.Sprintf(`You are reviewing a codebase for the quality dimension %q (%s).

Score the dimension from 0 to 100 based on your own independent judgement.
Do not anchor on any target score. Report concrete problems as findings.

Open mechanical findings for context:
%s

Respond with ONLY raw JSON of the form:
{"score": <0-100>, "findings": [{"file": "path", "name": "short_id", "summary": "...", "tier": 1-4, "confidence": "high|medium|low"}]}`,
		dim, r.policy.DisplayName(dim), findings)
}

// findingContext lists the highest-priority open findings.
func findingContext(s *types.State) string {
	q := state.BuildQueue(s, state.QueueOptions{Count: maxPromptFindings})
	if len(q.Items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, f := range q.Items {
		fmt.Fprintf(&b, "- [T%d] %s: %s\n", f.Tier, f.ID, f.Summary)
	}
	if q.Total > len(q.Items) {
		fmt.Fprintf(&b, "... and %d more\n", q.Total-len(q.Items))
	}
	return b.String()
}
