// Package passkey runs WebAuthn registration and assertion ceremonies for
// the relying party. The Engine consumes challenges, verifies attestation
// and assertion payloads, and persists credentials; transport layers stay
// free of ceremony rules.
package passkey
