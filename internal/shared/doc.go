// Package shared holds helpers used across the codebase that belong to no
// single domain package.
//
// The testutil subpackage provides a capturing slog handler for asserting on
// log output and fixtures for census and HMDA payloads.
package shared
