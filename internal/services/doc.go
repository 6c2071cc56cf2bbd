// Package services implements the query layer between the HTTP handlers and
// the aggregation pipeline.
//
// # Services
//
//   - AggregateService: answers the aggregate and CSV queries from the
//     published pipeline result and resolves written artifacts
//   - HealthService: liveness, readiness and version reporting
//
// Queries never block on the pipeline. Before the first successful run, and
// after a failed one, they answer with empty collections.
//
// # Testing
//
// Dependencies are small interfaces so tests can substitute testify mocks:
//
//	source := &MockResultSource{}
//	source.On("Result").Return(nil)
//	svc := NewAggregateService(source, nil, logger)
package services
