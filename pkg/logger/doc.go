// Package logger provides structured logging for ttscraper.
//
// It wraps zerolog behind a small Logger interface. Console output is
// pretty-printed and serialized through zerolog.SyncWriter, so several
// workers can log at once without interleaving lines. When a log file is
// configured, JSON records are written there as well.
//
// Basic usage:
//
//	log, err := logger.New(&cfg.Logging)
//	wl := logger.ForWorker(log, 1, "7120798207600299310")
//	logger.LogBatch(wl, batch, cursor, token.Short(), len(items))
//
// Tests can use NewTestLogger to capture messages, or NewNopLogger to
// discard them.
package logger
