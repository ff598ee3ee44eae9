// Package branding centralizes product naming for user-facing surfaces.
package branding

// AppName is the canonical product name.
const AppName = "Insta Agents Discovery"
