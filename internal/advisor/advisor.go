package advisor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/paperdesk/advisor/internal/composer"
	"github.com/paperdesk/advisor/internal/ollama"
	"github.com/paperdesk/advisor/internal/retrieval"
)

// Outcome classifies how an advisory answer was produced. Failures are
// ordinary outcomes here: GetAdvice always returns something to show.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeEmptyQuery Outcome = "empty_query"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeFallback   Outcome = "fallback"
)

const (
	// DefaultTimeout is the hard wall-clock limit on a chat request.
	DefaultTimeout = 45 * time.Second

	promptForInput = "Please enter a question about your investments and I'll do my best to help."

	timeoutApology = "I'm sorry, that took longer than expected. Please try asking again in a moment."
)

// defaultFallbacks are shown when the model request fails outright. One is
// picked at random so repeated failures don't read like a stuck page.
var defaultFallbacks = []string{
	"Markets reward patience. Staying invested through volatility has historically beaten trying to time exits and re-entries.",
	"Before chasing returns, make sure your emergency fund covers three to six months of expenses.",
	"Diversification across asset classes is the one free lunch in investing. Concentration cuts both ways.",
	"Costs compound just like returns. Favor low-fee funds and keep portfolio turnover down.",
	"Revisit your allocation when your life changes, not when the headlines do.",
}

// sampling is fixed for every advisory request so answers stay consistent
// in tone across sessions.
var sampling = ollama.Options{
	Temperature:      0.4,
	TopP:             0.9,
	FrequencyPenalty: 1.1,
	NumPredict:       512,
}

// ChatClient is the chat surface of *ollama.Client.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, opts *ollama.Options) (string, error)
}

// ContextRetriever is the retrieval surface of *retrieval.Retriever.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieval.ScoredChunk
	Ready() bool
	IndexSize() int
}

// Advice is the answer to a single query, whatever happened underneath.
type Advice struct {
	Text        string
	Outcome     Outcome
	ContextUsed int
	Duration    time.Duration
}

// Service answers investment questions with reference-grounded model calls.
// Every failure path degrades to a canned answer; the caller never sees an
// error from GetAdvice.
type Service struct {
	chat      ChatClient
	retriever ContextRetriever
	model     string
	topK      int
	timeout   time.Duration
	fallbacks []string
	log       *slog.Logger
}

type Config struct {
	Model     string
	TopK      int
	Timeout   time.Duration
	Fallbacks []string
}

func New(chat ChatClient, retriever ContextRetriever, cfg Config, log *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	fallbacks := cfg.Fallbacks
	if len(fallbacks) == 0 {
		fallbacks = defaultFallbacks
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		chat:      chat,
		retriever: retriever,
		model:     cfg.Model,
		topK:      retrieval.ClampTopK(cfg.TopK),
		timeout:   cfg.Timeout,
		fallbacks: fallbacks,
		log:       log,
	}
}

// Ready reports whether reference retrieval is available. The service still
// answers when it isn't, just without grounding.
func (s *Service) Ready() bool {
	return s.retriever.Ready()
}

// IndexSize reports the number of indexed reference chunks.
func (s *Service) IndexSize() int {
	return s.retriever.IndexSize()
}

// GetAdvice answers query using retrieved reference context and the given
// portfolio facts. A blank query short-circuits to a prompt for input
// without touching the network. Model failures map to canned text; the
// returned Advice is always usable.
func (s *Service) GetAdvice(ctx context.Context, query string, facts map[string]string) Advice {
	query = strings.TrimSpace(query)
	if query == "" {
		return Advice{Text: promptForInput, Outcome: OutcomeEmptyQuery}
	}

	start := time.Now()

	// The timeout budget covers the whole request path: a hung embed call
	// during retrieval must not stall the answer any more than a hung chat
	// call may. An expired retrieval degrades to the no-context path.
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chunks := s.retriever.Retrieve(reqCtx, query, s.topK)
	messages := composer.Compose(query, chunks, facts)

	opts := sampling
	text, err := s.chat.Chat(reqCtx, s.model, messages, &opts)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("advisory request timed out", "model", s.model, "elapsed", elapsed)
			return Advice{Text: timeoutApology, Outcome: OutcomeTimeout, ContextUsed: len(chunks), Duration: elapsed}
		}
		s.log.Warn("advisory request failed", "model", s.model, "error", err)
		return Advice{Text: s.pickFallback(), Outcome: OutcomeFallback, ContextUsed: len(chunks), Duration: elapsed}
	}

	s.log.Debug("advisory request served", "model", s.model, "context_chunks", len(chunks), "elapsed", elapsed)
	return Advice{Text: text, Outcome: OutcomeOK, ContextUsed: len(chunks), Duration: elapsed}
}

func (s *Service) pickFallback() string {
	return s.fallbacks[rand.IntN(len(s.fallbacks))]
}
