// Package challenge issues and consumes single-use WebAuthn challenges.
//
// Challenges are random byte strings handed to the browser and reclaimed
// exactly once when the signed ceremony response comes back. Consuming is
// atomic so a replayed response cannot race a legitimate one.
package challenge
