// Package branding centralizes user-facing product names.
package branding

// AppName is the product name shown to users and relying parties.
const AppName = "Gatehouse"
