// ABOUTME: Wikipedia knowledge-base lookup implementing the Searcher interface.
// ABOUTME: Uses the MediaWiki search API with extracts, attributing documents to canonical page URLs.
package research

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWikipediaBaseURL = "https://en.wikipedia.org"

// WikipediaClient looks up encyclopedia pages as a document-like retrieval
// source.
type WikipediaClient struct {
	client *resty.Client
}

// WikipediaOption is a functional option for configuring a WikipediaClient.
type WikipediaOption func(*WikipediaClient)

// WithWikipediaBaseURL overrides the API base URL.
func WithWikipediaBaseURL(url string) WikipediaOption {
	return func(c *WikipediaClient) {
		c.client.SetBaseURL(url)
	}
}

// NewWikipediaClient creates a Wikipedia lookup client.
func NewWikipediaClient(opts ...WikipediaOption) *WikipediaClient {
	client := resty.New()
	client.SetBaseURL(defaultWikipediaBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "conclave/1.0")

	wc := &WikipediaClient{client: client}
	for _, opt := range opts {
		opt(wc)
	}
	return wc
}

// wikipediaQueryResponse is the subset of the MediaWiki query response we
// read. pages is a JSON map, so search ranking survives only in each page's
// index field.
type wikipediaQueryResponse struct {
	Query struct {
		Pages map[string]wikipediaPage `json:"pages"`
	} `json:"query"`
}

type wikipediaPage struct {
	PageID  int    `json:"pageid"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Search runs a full-text search and returns page extracts as documents.
// Each document's source id is the canonical page URL and its locator is the
// page title.
func (c *WikipediaClient) Search(ctx context.Context, query string, maxResults int) ([]Document, error) {
	var parsed wikipediaQueryResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":      "query",
			"format":      "json",
			"generator":   "search",
			"gsrsearch":   query,
			"gsrlimit":    strconv.Itoa(maxResults),
			"prop":        "extracts",
			"explaintext": "1",
			"exintro":     "1",
		}).
		SetResult(&parsed).
		Get("/w/api.php")
	if err != nil {
		return nil, &RetrievalError{Provider: "wikipedia", Cause: err}
	}
	if resp.IsError() {
		return nil, &RetrievalError{Provider: "wikipedia", Cause: fmt.Errorf("status %s", resp.Status())}
	}

	// Restore search ranking before truncating: the pages map is unordered,
	// so the top-ranked result would otherwise be droppable.
	pages := make([]wikipediaPage, 0, len(parsed.Query.Pages))
	for _, page := range parsed.Query.Pages {
		if page.Extract == "" {
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	docs := make([]Document, 0, len(pages))
	for _, page := range pages {
		if len(docs) >= maxResults {
			break
		}
		slug := strings.ReplaceAll(page.Title, " ", "_")
		docs = append(docs, Document{
			SourceID: fmt.Sprintf("%s/wiki/%s", c.client.BaseURL, slug),
			Locator:  page.Title,
			Content:  page.Extract,
		})
	}
	return docs, nil
}
