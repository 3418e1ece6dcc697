// Package state implements the one-time-use handoff store used to pass opaque
// JSON payloads between two independent request legs, such as the two halves
// of an OAuth authorization redirect.
//
// # Lifecycle
//
// Put stores a payload under a fresh random id with an absolute expiry one
// hour ahead. Take returns the payload exactly once and deletes it. Expired
// entries are swept lazily at the start of every Take; there is no background
// goroutine.
//
// An id that was consumed, expired, or never issued all report ErrNotFound.
//
// # Usage
//
//	store := state.NewStore()
//	id, err := store.Put(json.RawMessage(`{"redirect_uri":"https://app/cb"}`))
//	...
//	payload, err := store.Take(id) // payload, nil
//	_, err = store.Take(id)        // nil, state.ErrNotFound
//
// Entries live in process memory only and are lost on restart.
package state
