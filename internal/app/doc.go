// Package app provides the application service layer.
//
// Orchestrates use cases: first-run bootstrap, password login, language
// preference changes, global settings reads and updates.
// Sits between HTTP handlers and domain repositories. Depends on domain interfaces, not concrete implementations.
package app
