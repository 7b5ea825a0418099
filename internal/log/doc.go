// Package log builds the application's slog loggers.
//
// Every logger is wrapped in a SecureHandler, which masks values of
// sensitive keys (cookies, authorization headers, Qdrant and plugin API
// keys), values that look like tokens, and passwords embedded in URLs.
// Even in verbose mode those values never reach the output.
//
// NewSecureLogger writes through lmittmann/tint and enables color only on
// a terminal. NewSecureJSONLogger writes JSON lines for log collection.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("qdrant persist failed", "api-key", key) // masked
package log
