// Package preflight provides readiness checks for the directories, disk
// space and external tools the transcription pipeline depends on.
//
// The CLI "scribe status" and "scribe config validate" commands display the
// full result set; the workflow runner calls CheckDiskSpace before fetching
// audio so a full disk fails the step instead of corrupting a download.
package preflight
