// Package analyzer turns fetched page content into a content summary,
// keywords and a category.
package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Result is one complete analysis. Summary always passes Validate.
type Result struct {
	Summary  model.ContentSummary `json:"summary"`
	Keywords []string             `json:"keywords"`
	Category string               `json:"category"`
}

// Analyzer is implemented once per backend.
type Analyzer interface {
	Analyze(ctx context.Context, content model.PageContent) (Result, error)
	// Similarity scores two results in [0,1].
	Similarity(a, b Result) float64
}

// Config selects and tunes the backend.
type Config struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Endpoint      string        `mapstructure:"endpoint"`
	MaxInputChars int           `mapstructure:"max_input_chars"`
	Timeout       time.Duration `mapstructure:"timeout"`

	HTTPClient *retryablehttp.Client `mapstructure:"-"`
	Clock      func() time.Time      `mapstructure:"-"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"

	defaultModel         = "gpt-4.1-mini"
	defaultEndpoint      = "https://api.openai.com/v1/chat/completions"
	defaultMaxInputChars = 12000
	defaultTimeout       = 60 * time.Second
)

// New builds the analyzer named by cfg.Provider. An empty provider picks
// openai when an API key is configured and the local heuristic otherwise.
func New(cfg Config) (Analyzer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = ProviderHeuristic
		if strings.TrimSpace(cfg.APIKey) != "" {
			provider = ProviderOpenAI
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = model.Now
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIAnalyzer(cfg)
	case ProviderHeuristic:
		return newHeuristicAnalyzer(cfg), nil
	}
	return nil, errs.Newf(errs.CodeModelLoadFailed, "unsupported analyzer provider: %s", provider)
}

// Similarity blends keyword overlap (Jaccard) with category and content type
// agreement.
func Similarity(a, b Result) float64 {
	ka := keywordSet(a.Keywords)
	kb := keywordSet(b.Keywords)
	var inter int
	for k := range ka {
		if kb[k] {
			inter++
		}
	}
	union := len(ka) + len(kb) - inter

	score := 0.0
	if union > 0 {
		score = 0.7 * float64(inter) / float64(union)
	}
	if a.Category != "" && strings.EqualFold(a.Category, b.Category) {
		score += 0.2
	}
	if a.Summary.ContentType != "" && a.Summary.ContentType == b.Summary.ContentType {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

func keywordSet(kw []string) map[string]bool {
	out := make(map[string]bool, len(kw))
	for _, k := range kw {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out[k] = true
		}
	}
	return out
}

// readingTime assumes 200 words per minute and never reports zero for a
// non-empty text.
func readingTime(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words + 199) / 200
}

// truncate cuts s to at most n bytes, dropping a split trailing rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
