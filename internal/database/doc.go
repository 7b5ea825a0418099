// Package database stores crawl history in SQLite.
//
// Every run is saved as one row in runs, keyed by a random UUID, plus one
// row per visited page in pages with its title, error, BLAKE2b content
// digest and plugin outputs. The history subcommand reads it back and
// ChangedSince compares a page's digest with its previous visit.
//
// modernc.org/sqlite is used so the binary stays CGO-free. The database
// runs in WAL mode with a single connection.
package database
