// Package pipeline implements the retrieval-augmented question pipeline.
//
// One Invoke call is one run: the pipeline retrieves context for the
// question, renders a prompt, and generates an answer. It owns the run tree:
// it mints the correlation id, builds the retrieval and generation sub-runs,
// and notifies the registered observer at each stage boundary:
//
//	retrieval start → retrieval end → generation start → generation end
//
// Observer notifications are synchronous and an observer error aborts the
// run: when the observer is an audit tracer, a question whose trail cannot be
// recorded is not answered. Stages run sequentially within a run; independent
// runs may execute concurrently.
package pipeline
