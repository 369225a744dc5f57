// Package httpapi exposes the authentication engine over a JSON API.
//
// Handlers stay thin: they decode requests, call the account service or the
// ceremony engine, and map domain error codes to HTTP statuses. Expected
// failures never leak internal error text.
package httpapi
