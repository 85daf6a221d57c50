package http

import (
	"context"

	"github.com/samirrijal/superres/internal/core/ports"
	"github.com/samirrijal/superres/internal/core/usecases"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Processing *usecases.ProcessingService
	Artifacts  *usecases.ArtifactService
	Events     ports.EventSubscriber

	DB        Pinger
	NATS      Pinger
	Cache     Pinger
	Runner    Pinger
	Inference Pinger

	Version string
}
