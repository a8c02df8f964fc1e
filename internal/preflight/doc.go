// Package preflight validates that a machine can run regsearch before
// the server or indexer starts doing real work.
//
// It checks:
//   - write permissions on the data directory
//   - free disk space (minimum 100MB)
//   - file descriptor limits (minimum 1024)
//   - whether each configured store has been indexed
//   - Ollama reachability and the presence of the embedding and rerank
//     models (non-critical; the static embedder covers their absence)
//
// A passing run leaves a marker file in the data directory so routine
// startups can skip the checks.
package preflight
