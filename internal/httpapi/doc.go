// Package httpapi exposes transcription jobs over HTTP.
//
// Jobs are created from an uploaded audio file or from an existing blob ref,
// run to completion in background goroutines, and are visible through an
// in-memory registry until the process exits.
package httpapi
