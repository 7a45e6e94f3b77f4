// Package model defines the contract between caller-owned model elements and
// the remote-solve adapter.
//
// Elements are identified by reference: two distinct *Item values are two
// distinct elements even when they carry the same name. The adapter never
// owns elements; it renames them for the duration of one exchange and
// restores them before returning (see package naming).
//
// A Model exposes the elements reachable from it and can export itself into
// a single solver-native artifact (LP, SAV, MPS or CPO text). Exporting is
// the caller's business; this package only fixes the shape of the result.
package model
