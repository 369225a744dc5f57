// Package webauthn implements the wire formats of the WebAuthn ceremonies:
// authenticator data, client data JSON, COSE public keys, and attestation
// objects, plus the signature and sign-counter checks built on them.
package webauthn
