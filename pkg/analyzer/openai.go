package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/merge"
	"github.com/sw33tLie/tabscope/pkg/model"
)

type openAIAnalyzer struct {
	cfg    Config
	apiKey string
	model  string
	url    string
	client *retryablehttp.Client
}

func newOpenAIAnalyzer(cfg Config) (*openAIAnalyzer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errs.Newf(errs.CodeModelLoadFailed, "openai analyzer requires an API key (set ai.api_key in config or OPENAI_API_KEY)")
	}
	mdl := strings.TrimSpace(cfg.Model)
	if mdl == "" {
		mdl = defaultModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = log.New(io.Discard, "", 0)
		client.RetryMax = 2
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client.HTTPClient.Timeout = timeout
	}
	return &openAIAnalyzer{cfg: cfg, apiKey: apiKey, model: mdl, url: endpoint, client: client}, nil
}

func (a *openAIAnalyzer) Similarity(x, y Result) float64 { return Similarity(x, y) }

func (a *openAIAnalyzer) Analyze(ctx context.Context, content model.PageContent) (Result, error) {
	text := strings.TrimSpace(content.Text)
	if text == "" && content.Description == "" {
		return Result{}, errs.Newf(errs.CodeProcessingFailed, "no text to analyze for %s", content.URL)
	}

	payload, err := json.Marshal(llmInput{
		URL:         content.URL,
		Title:       content.Title,
		Description: content.Description,
		Keywords:    content.Keywords,
		Text:        truncate(text, a.cfg.MaxInputChars),
	})
	if err != nil {
		return Result{}, errs.New(errs.CodeSerialization, "encoding analyzer input", err)
	}

	reqBody, err := json.Marshal(openAIChatRequest{
		Model: a.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature:    0.1,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return Result{}, errs.New(errs.CodeSerialization, "encoding chat request", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, errs.New(errs.CodeConfiguration, "bad analyzer endpoint "+a.url, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	utils.Log.Debugf("[ai] analyzing %s (%d chars)", content.URL, len(text))
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, errs.New(errs.CodeAnalysisTimeout, "analyzing "+content.URL, err)
		}
		return Result{}, errs.New(errs.CodeNetwork, "analyzer request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, errs.New(errs.CodeNetwork, "reading analyzer response", err)
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		code := errs.CodeProcessingFailed
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
			code = errs.CodeModelLoadFailed
		}
		return Result{}, errs.New(code, "ai analysis: "+msg, nil)
	}

	contentJSON := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if contentJSON == "" {
		return Result{}, errs.Newf(errs.CodeProcessingFailed, "ai analysis returned an empty response")
	}
	if !gjson.Valid(contentJSON) {
		return Result{}, errs.Newf(errs.CodeProcessingFailed, "unable to parse AI response for %s", content.URL)
	}
	return a.parse(gjson.Parse(contentJSON))
}

func (a *openAIAnalyzer) parse(out gjson.Result) (Result, error) {
	var keyPoints []string
	for _, p := range out.Get("key_points").Array() {
		if s := strings.TrimSpace(p.String()); s != "" {
			keyPoints = append(keyPoints, s)
		}
	}
	var keywords []string
	for _, k := range out.Get("keywords").Array() {
		keywords = append(keywords, k.String())
	}

	summary := model.ContentSummary{
		SummaryText:        strings.TrimSpace(out.Get("summary").String()),
		KeyPoints:          keyPoints,
		ContentType:        model.ParseContentType(strings.ToLower(out.Get("content_type").String())),
		Language:           out.Get("language").String(),
		ReadingTimeMinutes: int(out.Get("reading_time_minutes").Int()),
		ConfidenceScore:    out.Get("confidence").Float(),
		GeneratedAt:        a.cfg.Clock(),
	}
	if err := summary.Validate(); err != nil {
		return Result{}, errs.New(errs.CodeProcessingFailed, "incomplete AI analysis", err)
	}
	return Result{
		Summary:  summary,
		Keywords: merge.NormalizeKeywords(keywords),
		Category: strings.TrimSpace(out.Get("category").String()),
	}, nil
}

const systemPrompt = `You summarize web pages for a personal browsing index.

For the page you receive:
- Write a neutral summary of at most three sentences.
- List up to five key points.
- Pick content_type from: article, documentation, news, video, social, shopping, reference, forum, tool, other.
- Give the ISO 639-1 language code of the page.
- Estimate reading time in whole minutes.
- Give up to eight lowercase keywords and a short category label (for example "programming" or "travel").
- confidence is your confidence in the summary, between 0 and 1.

Return ONLY JSON following this schema:
{"summary": "string", "key_points": ["string"], "content_type": "article", "language": "en",
 "reading_time_minutes": 3, "keywords": ["string"], "category": "string", "confidence": 0.8}`

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type llmInput struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Text        string   `json:"text"`
}
