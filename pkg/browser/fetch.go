package browser

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

const maxPageBytes = 5 << 20

// Fetcher downloads pages and extracts the fields the analyzer needs.
type Fetcher struct {
	client *retryablehttp.Client
}

func NewFetcher(client *retryablehttp.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(3)
	}
	return &Fetcher{client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (model.PageContent, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.PageContent{}, errs.New(errs.CodeFetchFailed, "bad url "+rawURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0")
	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.PageContent{}, errs.New(errs.CodeFetchFailed, "GET "+rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return model.PageContent{}, errs.Newf(errs.CodeFetchFailed, "GET %s: HTTP %d", rawURL, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" && mediaType != "text/plain" {
		return model.PageContent{}, errs.Newf(errs.CodeUnsupportedContentType, "%s is %s", rawURL, mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return model.PageContent{}, errs.New(errs.CodeFetchFailed, "reading "+rawURL, err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	if mediaType == "text/plain" {
		text := collapseSpace(string(body))
		return model.PageContent{URL: final, Text: text, ContentType: mediaType, FetchedAt: model.Now()}, nil
	}
	pc, err := ParseHTML(final, string(body))
	if err != nil {
		return pc, err
	}
	pc.ContentType = mediaType
	return pc, nil
}

// ParseHTML extracts title, metadata, media and visible text from a document.
func ParseHTML(pageURL, body string) (model.PageContent, error) {
	base, _ := url.Parse(pageURL)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return model.PageContent{}, errs.New(errs.CodeProcessingFailed, "parsing "+pageURL, err)
	}

	pc := model.PageContent{URL: pageURL, HTML: body, FetchedAt: model.Now()}
	pc.Title = cleanTitle(doc.Find("title").First().Text())
	if pc.Title == "" {
		pc.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	pc.Description = metaContent(doc, `meta[name="description"]`)
	if pc.Description == "" {
		pc.Description = metaContent(doc, `meta[property="og:description"]`)
	}
	for _, k := range strings.Split(metaContent(doc, `meta[name="keywords"]`), ",") {
		if k = strings.TrimSpace(k); k != "" {
			pc.Keywords = append(pc.Keywords, k)
		}
	}

	doc.Find(`link[rel]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(strings.ToLower(rel), "icon") {
			return true
		}
		pc.FaviconURL = resolve(base, href)
		return false
	})
	if pc.FaviconURL == "" && base != nil && base.Host != "" {
		pc.FaviconURL = resolve(base, "/favicon.ico")
	}

	seen := map[string]bool{}
	doc.Find("img[src], video[src], video source[src], audio[src], audio source[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		abs := resolve(base, src)
		if abs == "" || seen[abs] || strings.HasPrefix(abs, "data:") {
			return
		}
		seen[abs] = true
		pc.Media = append(pc.Media, abs)
	})

	pc.Text = ExtractText(body)
	return pc, nil
}

func metaContent(doc *goquery.Document, sel string) string {
	v, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

func cleanTitle(title string) string {
	title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", " "), "\r", "")
	return strings.ToValidUTF8(collapseSpace(title), "")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

var skipText = map[string]bool{"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true}

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed.
func ExtractText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var sb strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipText[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipText[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
