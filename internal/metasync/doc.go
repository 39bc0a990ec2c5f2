// Package metasync mirrors a job's tracker record into the metadata field of
// its blob, and restores it from there when a job resumes.
//
// The persisted form is the JSON encoding of tracker.Record with local-only
// fields removed. Older metadata written under the legacy key names is
// migrated on read. Concurrent writers are last-write-wins.
package metasync
