// Package account provides identity records, email and password validation,
// and password-based registration and login.
package account
