package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const (
	maxFetchChars   = 50000
	maxCrawlLinks   = 100
	maxLinkTextLen  = 100
	defaultWebLimit = 5
)

// WebTools fetches pages, extracts links, and queries DuckDuckGo's HTML
// frontend. Failures are reported inside the result map; the handlers
// themselves never error.
type WebTools struct {
	client     *http.Client
	searchBase string
}

func NewWebTools(timeout time.Duration) *WebTools {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebTools{
		client:     &http.Client{Timeout: timeout},
		searchBase: "https://html.duckduckgo.com/html/?q=",
	}
}

func (w *WebTools) Tools() []Tool {
	return []Tool{
		{
			Name:        "fetch_url",
			Description: "Fetch content from a URL and return it as text. Useful for web surfing.",
			InputSchema: objectSchema([]string{"url"}, map[string]any{
				"url":          prop("string", "The URL to fetch"),
				"extract_text": prop("boolean", "If true, extract only text content from HTML (default: true)"),
			}),
			Handler: w.fetchURL,
		},
		{
			Name:        "crawl_links",
			Description: "Crawl a webpage and extract all links from it.",
			InputSchema: objectSchema([]string{"url"}, map[string]any{
				"url":           prop("string", "The URL to crawl for links"),
				"filter_domain": prop("string", "Optional: only return links from this domain"),
			}),
			Handler: w.crawlLinks,
		},
		{
			Name:        "search_web",
			Description: "Search the web using DuckDuckGo and return results.",
			InputSchema: objectSchema([]string{"query"}, map[string]any{
				"query":       prop("string", "Search query"),
				"max_results": prop("integer", "Maximum number of results (default: 5)"),
			}),
			Handler: w.searchWeb,
		},
	}
}

func (w *WebTools) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)
	return w.client.Do(req)
}

func (w *WebTools) fetchURL(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := argString(args, "url")
	if url == "" {
		return errResult("Missing 'url' parameter"), nil
	}
	extractText := true
	if v, ok := args["extract_text"].(bool); ok {
		extractText = v
	}

	resp, err := w.get(ctx, url)
	if err != nil {
		return errResult(fmt.Sprintf("HTTP error: %v", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errResult(fmt.Sprintf("HTTP error: status %d", resp.StatusCode)), nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errResult(fmt.Sprintf("Error fetching URL: %v", err)), nil
	}

	content := string(body)
	if extractText && strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		content = htmlText(body)
	}
	return map[string]any{
		"url":         resp.Request.URL.String(),
		"status_code": resp.StatusCode,
		"content":     truncate(content, maxFetchChars),
	}, nil
}

func (w *WebTools) crawlLinks(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := argString(args, "url")
	if url == "" {
		return errResult("Missing 'url' parameter"), nil
	}
	filterDomain := argString(args, "filter_domain")

	resp, err := w.get(ctx, url)
	if err != nil {
		return errResult(fmt.Sprintf("Error crawling URL: %v", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errResult(fmt.Sprintf("Error crawling URL: status %d", resp.StatusCode)), nil
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return errResult(fmt.Sprintf("Error crawling URL: %v", err)), nil
	}

	links := make([]map[string]any, 0)
	for _, a := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && attr(n, "href") != ""
	}) {
		href := attr(a, "href")
		text := nodeText(a)
		if strings.HasPrefix(href, "/") {
			href = absolutize(url, href)
		}
		if filterDomain != "" && !strings.Contains(href, filterDomain) {
			continue
		}
		if !strings.HasPrefix(href, "http") {
			continue
		}
		links = append(links, map[string]any{"url": href, "text": truncate(text, maxLinkTextLen)})
		if len(links) >= maxCrawlLinks {
			break
		}
	}
	return map[string]any{"url": url, "links": links}, nil
}

func (w *WebTools) searchWeb(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query")
	if query == "" {
		return errResult("Missing 'query' parameter"), nil
	}
	maxResults := defaultWebLimit
	if v, ok := argInt(args, "max_results"); ok && v > 0 {
		maxResults = v
	}

	searchURL := w.searchBase + neturl.QueryEscape(query)
	resp, err := w.get(ctx, searchURL)
	if err != nil {
		return errResult(fmt.Sprintf("Error searching: %v", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errResult(fmt.Sprintf("Error searching: status %d", resp.StatusCode)), nil
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return errResult(fmt.Sprintf("Error searching: %v", err)), nil
	}

	results := make([]map[string]any, 0, maxResults)
	for _, node := range findAll(doc, byClass("result")) {
		if len(results) >= maxResults {
			break
		}
		title := findFirst(node, byClass("result__title"))
		if title == nil {
			continue
		}
		snippet := ""
		if sn := findFirst(node, byClass("result__snippet")); sn != nil {
			snippet = nodeText(sn)
		}
		link := ""
		if a := findFirst(node, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a")
		}); a != nil {
			link = attr(a, "href")
		}
		results = append(results, map[string]any{
			"title":   nodeText(title),
			"snippet": snippet,
			"url":     link,
		})
	}
	return map[string]any{"query": query, "results": results}, nil
}

// htmlText flattens an HTML document to visible text, one trimmed line
// per text node, skipping script, style, and page chrome.
func htmlText(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	skip := map[string]bool{"script": true, "style": true, "nav": true, "footer": true, "header": true}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n")
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, token := range strings.Fields(attr(n, "class")) {
		if token == class {
			return true
		}
	}
	return false
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	}
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if pred(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func absolutize(base, href string) string {
	b, err := neturl.Parse(base)
	if err != nil {
		return href
	}
	ref, err := neturl.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
