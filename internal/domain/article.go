package domain

// FailureMarker stands in for article text that could not be retrieved.
const FailureMarker = "Error: Could not fetch article content"

// FetchedArticle is the fetch stage's result for a single headline.
type FetchedArticle struct {
	URL              string
	BriefDescription string
	FullText         string
	// Err is set when retrieval failed; FullText then holds FailureMarker.
	Err error
}

// NewFetchedArticle wraps successfully retrieved text.
func NewFetchedArticle(h Headline, text string) FetchedArticle {
	return FetchedArticle{
		URL:              h.URL,
		BriefDescription: h.Text,
		FullText:         text,
	}
}

// NewFailedArticle keeps the headline representable downstream when retrieval failed.
func NewFailedArticle(h Headline, err error) FetchedArticle {
	return FetchedArticle{
		URL:              h.URL,
		BriefDescription: h.Text,
		FullText:         FailureMarker,
		Err:              err,
	}
}

// Failed reports whether the article carries the failure marker.
func (a FetchedArticle) Failed() bool {
	return a.Err != nil || a.FullText == FailureMarker
}

// CountFailed returns how many articles carry the failure marker.
func CountFailed(articles []FetchedArticle) int {
	n := 0
	for _, a := range articles {
		if a.Failed() {
			n++
		}
	}
	return n
}
