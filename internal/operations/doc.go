// Package operations runs the aggregation pipeline.
//
// The pipeline is a fixed sequence of steps executed once at startup:
//
//	fetch_regions → filter_regions → load_loans → aggregate → render → persist
//
// Core Components:
//
// Pipeline: owns the step list, runs it on demand (concurrent Run calls
// join the in-flight run), publishes the finished Result atomically and
// exposes a Ready channel.
//
// Step: a single unit of work reading and writing the typed RunData carried
// by an OperationState. Optional steps may fail without failing the run.
//
// State: OperationState and StepState track status, timings and messages
// for the /api/pipeline endpoint.
package operations
