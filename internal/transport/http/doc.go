// Package http implements the HTTP handlers of the MSA loan service. Handlers
// stay thin: they read from the services layer and render JSON with
// go-chi/render.
//
// # Endpoints
//
//	GET /aggregateData          aggregate objects, ordered by region id
//	GET /aggregateCsvData       rendered CSV lines, header first
//	GET /api/pipeline           readiness and step states of the latest run
//	GET /api/artifacts          written output files
//	GET /api/artifacts/{name}   download one output file
//	GET /api/health[/live|/ready]
//
// The query endpoints answer with empty arrays until the pipeline completes.
//
// # Error Handling
//
// Errors are RFC 7807 problem documents rendered by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "Artifact 'aggregateOutput.xlsx' has not been written yet",
//	    "instance": "/api/artifacts/aggregateOutput.xlsx"
//	}
package http
