package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/threatdocs/internal/core/ports/driven"
)

// Ensure RateLimitedLLM implements the interface.
var _ driven.LLMService = (*RateLimitedLLM)(nil)

// agentBurst lets both extraction agents of one ingestion start together.
const agentBurst = 2

// RateLimitedLLM paces Chat calls to a provider with a token bucket.
// Ping, ModelName and Close pass straight through.
type RateLimitedLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps svc so that at most requestsPerMinute Chat calls
// are made per minute. A non-positive rate returns svc unchanged.
func NewRateLimitedLLM(svc driven.LLMService, requestsPerMinute int) driven.LLMService {
	if requestsPerMinute <= 0 {
		return svc
	}
	burst := agentBurst
	if requestsPerMinute < burst {
		burst = requestsPerMinute
	}
	return &RateLimitedLLM{
		LLMService: svc,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst),
	}
}

// Chat waits for a token, then forwards the call.
func (r *RateLimitedLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limit: %w", err)
	}
	return r.LLMService.Chat(ctx, messages, opts)
}
