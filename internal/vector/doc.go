// Package vector persists crawl results to a Qdrant collection and runs
// semantic search over them.
//
// Text is turned into vectors by an Embedder. HTTPEmbedder calls an
// embedding service that answers POST /api/embedding/query-embedding with
// {"embedding": [...]}. QdrantStore talks to the Qdrant REST API directly.
package vector
