// Package naming gives every model element a stable, unique textual identity
// for the duration of one remote exchange and restores the caller's names
// afterwards.
//
// A Bridge opens a Scope per solve. The scope is a guaranteed-release
// acquisition, used like a lock held for the duration of the call:
//
//	scope, err := bridge.Open(naming.AssignMissing, m.Elements())
//	if err != nil {
//	    return err // nothing was renamed, nothing was sent
//	}
//	defer scope.Restore()
//
// Under AssignMissing every unnamed element receives a generated,
// content-independent token; named elements are left untouched. Under
// RequireExisting every element must already carry a name. In both policies
// two distinct elements sharing a name are rejected with a ConflictError
// before any network call, since name-keyed results could not be mapped
// back unambiguously.
//
// Restore puts back each recorded original name, including "no name", and
// releases the elements so a later scope may bridge them again.
package naming
