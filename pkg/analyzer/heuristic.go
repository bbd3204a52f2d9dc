package analyzer

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/merge"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// heuristicAnalyzer works offline: term frequency keywords, lead sentences
// as the summary and host/path hints for the content type.
type heuristicAnalyzer struct {
	cfg Config
}

func newHeuristicAnalyzer(cfg Config) *heuristicAnalyzer {
	return &heuristicAnalyzer{cfg: cfg}
}

func (h *heuristicAnalyzer) Similarity(a, b Result) float64 { return Similarity(a, b) }

func (h *heuristicAnalyzer) Analyze(ctx context.Context, content model.PageContent) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, errs.New(errs.CodeAnalysisTimeout, "analyzing "+content.URL, err)
	}
	text := truncate(strings.TrimSpace(content.Text), h.cfg.MaxInputChars)

	summaryText := strings.TrimSpace(content.Description)
	if summaryText == "" {
		summaryText = leadSentences(text, 2)
	}
	if summaryText == "" {
		summaryText = strings.TrimSpace(content.Title)
	}
	if summaryText == "" {
		return Result{}, errs.Newf(errs.CodeProcessingFailed, "no text to analyze for %s", content.URL)
	}

	keywords := merge.NormalizeKeywords(append(append([]string{}, content.Keywords...), topTerms(content.Title+" "+text, 8)...))
	if len(keywords) > 8 {
		keywords = keywords[:8]
	}
	ct := guessContentType(content.URL, text)

	confidence := 0.3
	if content.Description != "" {
		confidence = 0.5
	}
	return Result{
		Summary: model.ContentSummary{
			SummaryText:        summaryText,
			KeyPoints:          sentences(text, 3),
			ContentType:        ct,
			Language:           guessLanguage(text),
			ReadingTimeMinutes: readingTime(text),
			ConfidenceScore:    confidence,
			GeneratedAt:        h.cfg.Clock(),
		},
		Keywords: keywords,
		Category: string(ct),
	}, nil
}

func sentences(text string, n int) []string {
	var out []string
	start := 0
	for i, r := range text {
		if len(out) == n {
			break
		}
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); len(s) > 1 {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if len(out) < n {
		if s := strings.TrimSpace(text[start:]); s != "" && len(out) == 0 {
			out = append(out, s)
		}
	}
	return out
}

func leadSentences(text string, n int) string {
	return strings.Join(sentences(text, n), " ")
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "any": true, "can": true, "had": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "his": true, "how": true, "its": true, "may": true,
	"new": true, "now": true, "see": true, "two": true, "who": true, "did": true, "get": true,
	"this": true, "that": true, "with": true, "from": true, "your": true, "have": true,
	"they": true, "will": true, "what": true, "when": true, "which": true, "their": true,
	"there": true, "been": true, "more": true, "also": true, "into": true, "than": true,
	"then": true, "them": true, "these": true, "some": true, "would": true, "about": true,
	"were": true, "each": true, "only": true, "other": true, "such": true, "over": true,
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// topTerms returns the n most frequent non-stopword terms, ties broken by
// first occurrence.
func topTerms(text string, n int) []string {
	counts := map[string]int{}
	first := map[string]int{}
	for i, w := range words(text) {
		w = strings.Trim(w, "-")
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		counts[w]++
	}
	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return first[terms[i]] < first[terms[j]]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func guessLanguage(text string) string {
	ws := words(text)
	if len(ws) == 0 {
		return ""
	}
	hits := 0
	for _, w := range ws {
		if stopwords[w] || w == "is" || w == "of" || w == "to" || w == "in" || w == "a" {
			hits++
		}
	}
	if hits*10 >= len(ws) {
		return "en"
	}
	return ""
}

var hostTypes = []struct {
	needle string
	ct     model.ContentType
}{
	{"youtube.", model.ContentVideo},
	{"vimeo.", model.ContentVideo},
	{"twitch.", model.ContentVideo},
	{"twitter.", model.ContentSocial},
	{"x.com", model.ContentSocial},
	{"facebook.", model.ContentSocial},
	{"mastodon", model.ContentSocial},
	{"reddit.", model.ContentForum},
	{"news.ycombinator.", model.ContentForum},
	{"stackoverflow.", model.ContentForum},
	{"amazon.", model.ContentShopping},
	{"ebay.", model.ContentShopping},
	{"wikipedia.", model.ContentReference},
	{"news", model.ContentNews},
	{"docs.", model.ContentDocumentation},
	{"pkg.go.dev", model.ContentDocumentation},
}

func guessContentType(rawURL, text string) model.ContentType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.ContentOther
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hostTypes {
		if strings.Contains(host, h.needle) {
			return h.ct
		}
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "/docs") || strings.Contains(path, "/doc/") || strings.Contains(path, "/api/"):
		return model.ContentDocumentation
	case strings.Contains(path, "/blog") || strings.Contains(path, "/article") || strings.Contains(path, "/post"):
		return model.ContentArticle
	case strings.Contains(path, "/product") || strings.Contains(path, "/cart"):
		return model.ContentShopping
	}
	if len(strings.Fields(text)) > 300 {
		return model.ContentArticle
	}
	return model.ContentOther
}
