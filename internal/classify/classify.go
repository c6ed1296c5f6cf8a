// Package classify labels a fetched task page with an advisory category
// from URL and content signals. Classification orders which extractors are
// tried first; it never excludes an extractor outright.
package classify

import (
	"net/url"
	"strings"
)

// Category is the advisory label for a task page.
type Category string

const (
	StructuredJSON   Category = "structured-json"
	Table            Category = "table"
	DownloadableFile Category = "downloadable-file"
	PDF              Category = "pdf"
	Audio            Category = "audio"
	HeatmapImage     Category = "heatmap-image"
	GitHubTree       Category = "github-tree"
	MarkdownLink     Category = "markdown-link"
	FreeText         Category = "free-text"
)

// urlPathSignals maps URL path substrings to categories, checked in order.
var urlPathSignals = []struct {
	needle string
	cat    Category
}{
	{"audio", Audio},
	{"transcribe", Audio},
	{"heatmap", HeatmapImage},
	{"github", GitHubTree},
	{"pdf", PDF},
	{"csv", DownloadableFile},
	{"xlsx", DownloadableFile},
	{"table", Table},
	{"markdown", MarkdownLink},
	{"json", StructuredJSON},
}

// contentSignals maps content substrings to categories, checked in order
// after URL signals.
var contentSignals = []struct {
	needle string
	cat    Category
}{
	{"<pre", StructuredJSON},
	{"atob(", StructuredJSON},
	{".mp3", Audio},
	{".wav", Audio},
	{".opus", Audio},
	{"heatmap", HeatmapImage},
	{"github.com", GitHubTree},
	{".pdf", PDF},
	{".csv", DownloadableFile},
	{".xlsx", DownloadableFile},
	{".xls", DownloadableFile},
	{"<table", Table},
	{".md", MarkdownLink},
}

// Classify labels a page by URL path and content keywords. It is
// deterministic and never fails; unmatched content is free-text.
func Classify(rawURL, content string) Category {
	if u, err := url.Parse(rawURL); err == nil {
		path := strings.ToLower(u.Path)
		for _, sig := range urlPathSignals {
			if strings.Contains(path, sig.needle) {
				return sig.cat
			}
		}
	}

	lower := strings.ToLower(content)
	for _, sig := range contentSignals {
		if strings.Contains(lower, sig.needle) {
			return sig.cat
		}
	}

	return FreeText
}
