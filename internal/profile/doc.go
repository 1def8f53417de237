// Package profile merges the identity provider's display fields with the
// ProfileStore's extended fields into one coherent profile view.
//
// Client speaks the ProfileStore REST contract (POST /users, GET
// /users/{email}, PATCH /users/{email}) and returns tagged Lookup results so
// "not found" is a branch, not an error. Coordinator performs two-sided
// saves: the identity provider's display name and the store record are
// written concurrently, both must succeed, and a one-sided failure surfaces
// as PartialSaveError so the caller can retry the save as a whole.
package profile
