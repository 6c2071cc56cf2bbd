// Package sources fetches the two upstream datasets: census income by
// metropolitan area and HMDA loan records from the CFPB data browser.
//
// Clients return raw payload bytes so callers can cache them verbatim.
// Requests honor the caller's context and are never retried; any non-2xx
// response is a NETWORK AppError.
package sources
