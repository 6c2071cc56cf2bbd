// Package app wires configuration, logging, telemetry, the aggregation
// pipeline and the HTTP surface into a single Application.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, config.yaml and MSA_* variables
//  2. Resolve paths and initialize the JSON logger
//  3. Initialize OpenTelemetry and the business metrics
//  4. Build the data sources, caches, writers and optional Postgres store
//  5. Assemble the pipeline, the services and the chi router
//
// # Usage
//
//	a, err := app.NewApplication(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := a.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Start binds the listener before returning, so a port conflict surfaces as
// an error. The pipeline then runs in the background; until it succeeds the
// query endpoints answer with empty collections and readiness reports 503.
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. Stop drains the HTTP server, closes the
// store pool, flushes telemetry and closes the log file.
package app
