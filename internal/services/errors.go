package services

import "errors"

var (
	// Artifact errors
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrInvalidArtifact  = errors.New("invalid artifact name")

	// Pipeline errors
	ErrPipelineNotReady = errors.New("pipeline has not produced results")
	ErrPipelineFailed   = errors.New("pipeline failed")
)
