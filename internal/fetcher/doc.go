// Package fetcher retrieves page content for the crawler.
//
// Two Getters perform a single retrieval: HTTPFetcher speaks plain HTTP and
// Renderer drives headless Chrome through chromedp. Retrier wraps either one
// with the per-host throttle, exponential backoff and the post-fetch delay.
//
// Failures never escape as panics. After the last attempt the caller gets a
// *FetchError or *RenderError and decides what to record.
package fetcher
