package services

import (
	"context"
)

// ServiceContainer holds instances of all the application services.
// It is the entry point handlers use to reach service functionality.
type ServiceContainer struct {
	Records RecordsSvcFacade
}

// Drainer is implemented by services that run background work which must finish before shutdown.
type Drainer interface {
	Drain(ctx context.Context) error
}
