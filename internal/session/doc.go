// Package session mints and validates opaque bearer tokens for
// authenticated accounts. Token bytes exist only in memory and on the
// wire; storage holds a SHA-256 digest.
package session
