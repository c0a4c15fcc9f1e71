// Package analysis fans code snippets out to a text-generation backend,
// once per principle, snippet and kind (analysis or recommendations), and
// gathers the answers into an ordered [Result].
//
// Calls run concurrently up to a configurable limit. Each answer is written
// into a slot chosen before dispatch, so the result order follows the input
// order no matter how calls complete. By default the first failed call
// cancels the rest; [FailIsolate] instead records the failure and fills the
// slot with a placeholder.
package analysis
