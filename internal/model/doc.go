// Package model defines the data structures shared by the crawler, the
// extension runtime and the result sinks.
//
// This package contains the following main types:
//   - CrawlRequest: the immutable parameters of one crawl run
//   - PageResult: the outcome of fetching and processing a single URL
//   - ExtensionOutput: one plugin's result for one page
//   - Output: the whole run, as a page tree and as flattened trace lines
//
// Models live in their own package so that crawler, extension, report and
// database can share them without import cycles.
package model
