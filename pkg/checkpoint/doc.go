// Package checkpoint persists the progress of a comment fetch so that an
// interrupted run can resume where it stopped.
//
// Each (worker, target) pair owns one file, worker_<w>_<video>.json, holding
// the accumulated comments, the ids seen so far, the cursor and the batch
// number. Files are replaced atomically through a temp file and rename, so
// a reader never observes a half-written snapshot. A snapshot marked
// is_complete is terminal and is never resumed.
//
// Default locations:
//   - Linux: $XDG_DATA_HOME/ttscraper/checkpoints or ~/.local/share/ttscraper/checkpoints
//   - macOS: ~/Library/Application Support/ttscraper/checkpoints
//   - Windows: %APPDATA%/ttscraper/checkpoints
package checkpoint
