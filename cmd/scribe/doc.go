// Package main hosts the scribe CLI.
//
// Commands run transcription jobs in-process against the configured blob
// store and engine: single files, existing blobs, whole folders, or an HTTP
// server that accepts uploads. Status and report commands read job state
// straight from blob metadata, so they work while other runs are in flight.
package main
