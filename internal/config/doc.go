// Package config holds the crawl configuration, its defaults and the
// optional YAML defaults file (.plugcrawler.yaml). CLI flags that were set
// explicitly override the file.
package config
