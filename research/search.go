// ABOUTME: Retrieval capability interface and document types for interview context gathering.
// ABOUTME: Defines Searcher, the retrieved Document, tagged document-block formatting, and RetrievalError.
package research

import (
	"context"
	"fmt"
	"strings"
)

// Document is one retrieved result. SourceID identifies where it came from
// (a URL or document path); Locator optionally narrows it to a page or
// section for document-like sources.
type Document struct {
	SourceID string
	Locator  string
	Content  string
}

// Searcher is the retrieval capability invoked during an interview. Both the
// open-web and knowledge-base implementations satisfy it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// RetrievalError reports a retrieval provider that was unreachable or
// answered with a transport-level failure. An empty result set is not an
// error; the interview proceeds with whatever context it has.
type RetrievalError struct {
	Provider string
	Cause    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval from %s failed: %v", e.Provider, e.Cause)
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// FormatDocuments renders retrieved documents as one tagged context block:
// each document wrapped in a <Document .../> element carrying its source id
// and, when present, its page locator, separated by dividers.
func FormatDocuments(docs []Document) string {
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		var tag string
		if doc.Locator != "" {
			tag = fmt.Sprintf(`<Document source=%q page=%q/>`, doc.SourceID, doc.Locator)
		} else {
			tag = fmt.Sprintf(`<Document source=%q/>`, doc.SourceID)
		}
		blocks = append(blocks, tag+"\n"+doc.Content+"\n</Document>")
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// ExtractSources pulls the source attribution (source id plus optional page
// locator) out of formatted context blocks, in order of first appearance,
// with duplicates collapsed. The result is the numbered citation list an
// answer cites against.
func ExtractSources(blocks []string) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, block := range blocks {
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "<Document ") {
				continue
			}
			source := parseAttr(line, "source")
			if source == "" {
				continue
			}
			if page := parseAttr(line, "page"); page != "" {
				source = source + ", page " + page
			}
			if seen[source] {
				continue
			}
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return sources
}

// parseAttr extracts a double-quoted attribute value from a document tag.
func parseAttr(tag, attr string) string {
	marker := attr + `="`
	start := strings.Index(tag, marker)
	if start < 0 {
		return ""
	}
	rest := tag[start+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
