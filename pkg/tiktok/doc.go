// Package tiktok provides a client for the comment list web API.
//
// This package includes:
//   - A paced HTTP client with the headers the web client sends
//   - The msToken handshake used by the token provider
//   - Typed response records that tolerate the API's loose encodings
//   - A Fetcher that turns one page request into a models.BatchResult
//
// Example usage:
//
//	client := tiktok.NewClient(cfg.API, transport, limiter, log)
//	fetcher := tiktok.NewFetcher(client, cfg.Fetch.BatchSize, log)
//
//	token, _ := client.FetchToken(ctx)
//	page := fetcher.Fetch(ctx, "7301234567890123456", 0, token)
//	if !page.Success {
//	    // page.Err is an *errors.Error, page.Exhausted marks a clean end
//	}
package tiktok
