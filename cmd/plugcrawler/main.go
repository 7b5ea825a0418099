// Package main provides the entry point for the plugcrawler CLI.
//
// plugcrawler crawls websites from one or more seed URLs, runs a set of
// loadable plugins on every page and prints a trace of what it saw. Runs
// can be saved to a local SQLite history and to a Qdrant collection for
// semantic search.
//
// Usage:
//
//	plugcrawler crawl --name docs --url https://example.com --depth 2
//	plugcrawler query --query "pricing page"
//
// See --help for all available options.
package main

// main is the entry point for plugcrawler.
func main() {
	Execute()
}
