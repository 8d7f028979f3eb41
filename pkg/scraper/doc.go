// Package scraper drives the retrieval of every comment of a set of videos.
//
// Architecture:
//
// A Loop owns one target on one worker. It walks the comment pages of the
// target as a small state machine:
//
//	RESUME_CHECK -> FETCHING -> SUCCESS | FAILURE -> FETCHING | ROTATING -> DONE
//
// Each fetch uses the worker's token, which is refreshed after a fixed
// number of served batches. A page that fails is retried on the same cursor;
// after the retry budget is spent the proxy exit IP and token are rotated
// together. Progress is checkpointed periodically, after every rotation and
// at the end, so an interrupted run resumes where it stopped.
//
// The Scraper runs one Loop per target on a bounded worker pool. Every
// target yields a models.TargetResult; failures, including panics, are
// reported per target and never stop the other workers.
//
// Usage:
//
//	store, _ := checkpoint.NewStore(cfg.Checkpoint.Directory, log)
//	s := scraper.New(cfg, account, store, log)
//	results := s.Run(ctx, []models.Target{{ID: "7301234567890123456"}})
package scraper
