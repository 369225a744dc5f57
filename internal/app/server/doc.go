// Package server wires storage, the passkey engine, event relay, and the
// HTTP API into a runnable authentication server.
package server
