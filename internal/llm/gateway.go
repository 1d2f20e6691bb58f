package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/graceverse/study-api/internal/apperror"
	"github.com/graceverse/study-api/internal/models"
)

// Config configures the Gateway's provider order and retry tuning.
type Config struct {
	UseMock         bool
	Provider        string // primary provider name: "openai" or "anthropic"
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Timeout         time.Duration
	MaxRetries      int // bounded JSON-parse retries, default 3
}

// Gateway assembles prompts, dispatches to providers in configured order with
// failover on transient errors, and retries malformed JSON with escalating
// temperature/provider adjustments.
type Gateway struct {
	providers []Provider
	cfg       Config
}

// NewGateway builds the provider chain: configured primary first, the other
// real provider second, mock only when UseMock is set (mock never shares a
// chain with a real provider — it exists purely for provider-free dev/test).
func NewGateway(cfg Config) *Gateway {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	g := &Gateway{cfg: cfg}
	if cfg.UseMock {
		g.providers = []Provider{newMockProvider()}
		return g
	}

	primary := strings.ToLower(cfg.Provider)
	var chain []Provider
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, newOpenAIProvider(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		chain = append(chain, newAnthropicProvider(cfg.AnthropicAPIKey))
	}
	if primary == "anthropic" && len(chain) == 2 {
		chain[0], chain[1] = chain[1], chain[0]
	}
	g.providers = chain
	return g
}

// Generate produces validated StudyContent for the given input under the
// bounded-retry/failover protocol.
func (g *Gateway) Generate(ctx context.Context, kind models.InputKind, rawInput string, lang models.Language) (models.StudyContent, error) {
	if len(g.providers) == 0 {
		return models.StudyContent{}, apperror.Wrap(apperror.KindUpstream, "generation provider unavailable", fmt.Errorf("no providers configured"))
	}

	prompt := buildPrompt(kind, rawInput, lang)
	initialTemp := 0.7
	initialTopP := 0.9

	providerIdx := 0
	var lastErr error

	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if providerIdx >= len(g.providers) {
			return models.StudyContent{}, apperror.Wrap(apperror.KindUpstream, "generation provider unavailable", lastErr)
		}
		provider := g.providers[providerIdx]

		// Escalation: odd attempts retry the same provider at reduced
		// temperature; a malformed response on an odd attempt switches to the
		// next provider, which starts again at the initial temperature.
		// Adjustments are derived from the initial config and the attempt
		// index, not compounded across attempts.
		temp := initialTemp
		if attempt > 0 && attempt%2 == 1 {
			temp = initialTemp * 0.6
		}
		opts := CallOptions{Temperature: temp, TopP: initialTopP, Timeout: g.cfg.Timeout}

		raw, err := provider.Complete(ctx, prompt, opts)
		if err != nil {
			if IsRefusal(err) {
				return models.StudyContent{}, apperror.Wrap(apperror.KindUnprocessable, "generation request refused by provider", err)
			}
			if IsTransient(err) {
				providerIdx++
				lastErr = err
				continue
			}
			lastErr = err
			providerIdx++
			continue
		}

		content, parseErr := parseStudyContent(raw)
		if parseErr == nil {
			return content, nil
		}
		lastErr = parseErr

		if attempt%2 == 1 {
			providerIdx++
		}
	}

	return models.StudyContent{}, apperror.Wrap(apperror.KindUpstream, "generation provider returned malformed content", lastErr)
}

func parseStudyContent(raw string) (models.StudyContent, error) {
	var content models.StudyContent
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &content); err != nil {
		return models.StudyContent{}, err
	}
	if err := content.Validate(); err != nil {
		return models.StudyContent{}, err
	}
	return content, nil
}

// extractJSONObject trims any leading/trailing prose a provider adds around
// the JSON object despite being asked not to.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func buildPrompt(kind models.InputKind, rawInput string, lang models.Language) string {
	var subject string
	switch kind {
	case models.InputScripture:
		subject = fmt.Sprintf("the Bible passage %q", rawInput)
	case models.InputTopic:
		subject = fmt.Sprintf("the topic %q", rawInput)
	default:
		subject = fmt.Sprintf("%q", rawInput)
	}

	return fmt.Sprintf(`You are generating a Bible study guide about %s, written in %s.

Respond with ONLY a single JSON object, no surrounding prose or markdown fences, no explanation before or after. Do not alter standard JSON escaping rules. The object must have exactly these six fields:

{
  "summary": "a short summary",
  "interpretation": "a faithful interpretation of the passage or topic",
  "context": "historical and literary context",
  "related_verses": ["reference one", "reference two"],
  "reflection_questions": ["question one", "question two"],
  "prayer_points": ["point one", "point two"]
}

Every field must be non-empty and every array must contain at least one non-empty string.`, subject, languageName(lang))
}

func languageName(lang models.Language) string {
	switch lang {
	case models.LangHindi:
		return "Hindi"
	case models.LangMalayalam:
		return "Malayalam"
	default:
		return "English"
	}
}
