// ABOUTME: Tavily web-search client implementing the Searcher interface.
// ABOUTME: Posts to the Tavily REST API and maps results onto retrieval Documents.
package research

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// TavilyClient searches the open web through the Tavily API.
type TavilyClient struct {
	client *resty.Client
	apiKey string
}

// TavilyOption is a functional option for configuring a TavilyClient.
type TavilyOption func(*TavilyClient)

// WithTavilyBaseURL overrides the API base URL.
func WithTavilyBaseURL(url string) TavilyOption {
	return func(c *TavilyClient) {
		c.client.SetBaseURL(url)
	}
}

// NewTavilyClient creates a Tavily search client with the given API key.
func NewTavilyClient(apiKey string, opts ...TavilyOption) *TavilyClient {
	client := resty.New()
	client.SetBaseURL(defaultTavilyBaseURL)
	client.SetTimeout(30 * time.Second)

	tc := &TavilyClient{client: client, apiKey: apiKey}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// tavilySearchRequest is the POST /search request body.
type tavilySearchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// tavilySearchResponse is the subset of the /search response we read.
type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search queries Tavily and returns up to maxResults documents.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]Document, error) {
	var parsed tavilySearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(tavilySearchRequest{APIKey: c.apiKey, Query: query, MaxResults: maxResults}).
		SetResult(&parsed).
		Post("/search")
	if err != nil {
		return nil, &RetrievalError{Provider: "tavily", Cause: err}
	}
	if resp.IsError() {
		return nil, &RetrievalError{Provider: "tavily", Cause: fmt.Errorf("status %s", resp.Status())}
	}

	docs := make([]Document, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		docs = append(docs, Document{
			SourceID: r.URL,
			Content:  r.Content,
		})
	}
	return docs, nil
}
