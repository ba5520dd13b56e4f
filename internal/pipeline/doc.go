// package pipeline orchestrates the mood-playlist workflow.
//
// Each user interaction runs inside a [UserSession] that moves through a
// linear set of stages: generate song candidates, match them against the
// catalog, curate the matches, create the playlist. Stage transitions
// are compare-and-swap guarded, so operations cannot run out of order or
// twice. Long-running operations emit [ProgressUpdate] events over
// channels for non-blocking status reporting to CLI/UI layers.
package pipeline
