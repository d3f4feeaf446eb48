// internal/oracle/router.go

// Package oracle provides the concrete LLM backends behind the pipeline's
// Oracle interface, plus a router that builds them from configuration and
// throttles outbound calls with a shared rate limiter.
package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
)

// Router owns the configured providers and hands out role-bound oracles.
type Router struct {
	logger    *zap.Logger
	providers map[string]schemas.Oracle
	proposer  string
	evaluator string
}

// NewRouter builds every configured provider. All providers share one rate
// limiter so concurrent stages cannot overrun the upstream quota.
func NewRouter(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*Router, error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	if cfg.RateLimit <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	providers := make(map[string]schemas.Oracle, len(cfg.Models))
	for name, model := range cfg.Models {
		var (
			client schemas.Oracle
			err    error
		)
		switch model.Provider {
		case config.ProviderGeminiHTTP:
			client, err = NewGeminiClient(name, model, logger)
		case config.ProviderGenAI:
			client, err = NewGenAIClient(ctx, name, model, logger)
		default:
			err = fmt.Errorf("unknown oracle provider %q", model.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize oracle %q: %w", name, err)
		}
		providers[name] = &limitedOracle{inner: client, limiter: limiter}
	}

	if _, ok := providers[cfg.Proposer]; !ok {
		return nil, fmt.Errorf("proposer oracle %q is not configured", cfg.Proposer)
	}
	if _, ok := providers[cfg.Evaluator]; !ok {
		return nil, fmt.Errorf("evaluator oracle %q is not configured", cfg.Evaluator)
	}

	return &Router{
		logger:    logger.Named("oracle_router"),
		providers: providers,
		proposer:  cfg.Proposer,
		evaluator: cfg.Evaluator,
	}, nil
}

// Proposer returns the oracle used to generate candidates and supportive
// review framing.
func (r *Router) Proposer() schemas.Oracle {
	return r.providers[r.proposer]
}

// Evaluator returns the independent oracle whose verdict gates mutations.
func (r *Router) Evaluator() schemas.Oracle {
	return r.providers[r.evaluator]
}

// Get returns a provider by name.
func (r *Router) Get(name string) (schemas.Oracle, bool) {
	o, ok := r.providers[name]
	return o, ok
}

// limitedOracle throttles an oracle behind the shared limiter.
type limitedOracle struct {
	inner   schemas.Oracle
	limiter *rate.Limiter
}

func (l *limitedOracle) ProviderID() string {
	return l.inner.ProviderID()
}

func (l *limitedOracle) Ask(ctx context.Context, prompt, systemPrompt string, opts schemas.AskOptions) (schemas.OracleResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return schemas.OracleResponse{ProviderID: l.inner.ProviderID()}, fmt.Errorf("rate limiter aborted: %w", err)
	}
	return l.inner.Ask(ctx, prompt, systemPrompt, opts)
}
