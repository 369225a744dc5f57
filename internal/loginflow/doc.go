// Package loginflow drives a browser's multi-step sign-in and sign-up flow.
//
// A Flow is the client-side counterpart to the server's ceremony engine: it
// asks the server which credential kinds an identity can present, picks the
// next step, and shuttles passkey ceremonies between the server and the
// browser's WebAuthn API. One Flow instance serves one authentication
// attempt; nothing in this package reaches server-side state directly.
package loginflow
