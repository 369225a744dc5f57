// Package sqlite provides SQLite-backed identity persistence.
//
// It is the default on-disk store used by the server and by command tooling
// that exercises authentication flows.
package sqlite
