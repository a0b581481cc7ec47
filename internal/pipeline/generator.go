package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialPoster/internal/ports"
)

// GeneratorConfig tunes the model fallback chain.
type GeneratorConfig struct {
	PrimaryModel        string
	FallbackModels      []string
	TotalBudget         time.Duration
	MaxRateLimitRetries int
	RetryBaseDelay      time.Duration
	MinResponseChars    int
}

// ModelFailure records why one attempt was rejected.
type ModelFailure struct {
	Model   string
	Attempt int
	Reason  string
}

// Generation is the outcome of one generation pass.
type Generation struct {
	Raw      string
	Model    string
	Attempts int
	Failures []ModelFailure
}

// Summary renders the failures for a step log message.
func (g Generation) Summary() string {
	parts := make([]string, 0, len(g.Failures))
	for _, f := range g.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Model, f.Reason))
	}
	return strings.Join(parts, "; ")
}

// Generator walks an ordered model chain under a shared time budget.
type Generator struct {
	client ports.CompletionClient
	models []string
	cfg    GeneratorConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGenerator builds a generator over the completion client.
func NewGenerator(client ports.CompletionClient, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.TotalBudget <= 0 {
		cfg.TotalBudget = 90 * time.Second
	}
	if cfg.MaxRateLimitRetries < 0 {
		cfg.MaxRateLimitRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.MinResponseChars <= 0 {
		cfg.MinResponseChars = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	var models []string
	seen := map[string]bool{}
	for _, m := range append([]string{cfg.PrimaryModel}, cfg.FallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}

	return &Generator{
		client: client,
		models: models,
		cfg:    cfg,
		logger: logger.With("component", "ai_generator"),
		sleep:  sleepContext,
	}
}

// Models returns the effective model chain.
func (g *Generator) Models() []string {
	return append([]string(nil), g.models...)
}

// Generate returns the first acceptable response. ok is false when every model
// failed or the budget ran out; that is a normal outcome, not an error.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (gen Generation, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.TotalBudget)
	defer cancel()

	for _, model := range g.models {
		for retry := 0; ; retry++ {
			if ctx.Err() != nil {
				gen.Failures = append(gen.Failures, ModelFailure{Model: model, Attempt: retry + 1, Reason: "time budget exhausted"})
				g.logger.Warn("generation budget exhausted", "model", model)
				return gen, false
			}

			gen.Attempts++
			raw, err := g.client.Complete(ctx, systemPrompt, userPrompt, model)
			if err == nil {
				raw = strings.TrimSpace(raw)
				if reason := g.rejectReason(raw); reason != "" {
					gen.Failures = append(gen.Failures, ModelFailure{Model: model, Attempt: retry + 1, Reason: reason})
					g.logger.Warn("model response rejected", "model", model, "reason", reason)
					break
				}
				gen.Raw, gen.Model = raw, model
				g.logger.Info("generation succeeded", "model", model, "attempts", gen.Attempts)
				return gen, true
			}

			gen.Failures = append(gen.Failures, ModelFailure{Model: model, Attempt: retry + 1, Reason: err.Error()})
			if !ports.IsRetryable(err) || retry >= g.cfg.MaxRateLimitRetries {
				g.logger.Warn("model failed", "model", model, "kind", ports.CompletionKind(err), "error", err)
				break
			}

			delay := g.cfg.RetryBaseDelay * time.Duration(retry+1)
			if deadline, has := ctx.Deadline(); has && time.Until(deadline) <= delay {
				g.logger.Warn("retry delay exceeds remaining budget", "model", model, "delay", delay)
				break
			}
			g.logger.Info("rate limited, retrying", "model", model, "delay", delay)
			if err := g.sleep(ctx, delay); err != nil {
				break
			}
		}
	}
	return gen, false
}

// rejectReason applies the minimum length and structure checks.
func (g *Generator) rejectReason(raw string) string {
	if runeLen(raw) < g.cfg.MinResponseChars {
		return fmt.Sprintf("response too short (%d chars)", runeLen(raw))
	}
	if !looksStructured(raw) {
		return "response has no recognizable post structure"
	}
	return ""
}

// looksStructured accepts section markers or at least two paragraphs.
func looksStructured(raw string) bool {
	upper := strings.ToUpper(raw)
	for _, marker := range []string{MarkerLong, MarkerShort, "LINKEDIN", "TWITTER"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return len(splitParagraphs(raw)) >= 2
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
