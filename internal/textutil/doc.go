// Package textutil provides small text helpers shared across packages.
//
// The primary use cases are:
//   - Scoring how alike two short strings are (MatchRatio) and picking the
//     single best candidate above a cutoff (ClosestMatch). Tracker field names
//     coming from loosely typed metadata are resolved this way.
//   - Sanitizing filenames before they reach the local filesystem or a blob
//     store.
//
// MatchRatio follows the Ratcliff/Obershelp "gestalt" algorithm: the longest
// common block is found, then the regions on either side of it are matched
// recursively. The ratio is 2*M/T where M is the number of matched characters
// and T the combined length.
package textutil
