package domain

import "strings"

// Headline is a single stored news headline keyed by its article URL.
type Headline struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// HeadlineCategory groups headlines belonging to one distinct user interest.
type HeadlineCategory struct {
	Category  string     `json:"category"`
	Headlines []Headline `json:"headlines"`
}

// HeadlinesOutput is the retrieval stage result for one pipeline run.
type HeadlinesOutput struct {
	Categories []HeadlineCategory `json:"categories"`
}

// Flatten returns every headline across all categories in category order.
func (o HeadlinesOutput) Flatten() []Headline {
	var all []Headline
	for _, c := range o.Categories {
		all = append(all, c.Headlines...)
	}
	return all
}

// Count returns the total number of headlines.
func (o HeadlinesOutput) Count() int {
	n := 0
	for _, c := range o.Categories {
		n += len(c.Headlines)
	}
	return n
}

// Empty reports whether retrieval produced no headlines at all.
func (o HeadlinesOutput) Empty() bool {
	return o.Count() == 0
}

// NormalizeText folds case and whitespace so near-identical headline texts compare equal.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NewsItem is one entry of an upstream news snapshot.
type NewsItem struct {
	URL         string
	Title       string
	Description string
	Source      string
}

// DocumentText builds the indexed text of a news item.
func (n NewsItem) DocumentText() string {
	title := strings.TrimSpace(n.Title)
	desc := strings.TrimSpace(n.Description)
	if desc == "" {
		return title
	}
	return title + "\n\n" + desc
}

// CorpusDocument is a stored similarity-search document.
type CorpusDocument struct {
	ID        string
	Text      string
	Embedding []float32
}

// SearchResult is one similarity-search hit.
type SearchResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Title extracts the headline title from a stored document text.
func (r SearchResult) Title() string {
	title, _, _ := strings.Cut(r.Text, "\n\n")
	return strings.TrimSpace(title)
}
