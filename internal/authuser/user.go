// Package authuser carries the caller identity threaded through process
// dispatch and the tile-assignment store.
package authuser

// User identifies the caller a process graph is executed on behalf of,
// substituted into the special "_openeo_user" parameter reference
// (spec §4.1, core.py's value.user_id coercion).
type User struct {
	ID    string
	Admin bool
}
