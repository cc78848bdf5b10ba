package main

import (
	"log/slog"
	"sync"

	apiv1 "github.com/espressif/esp-bist/api/v1"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

type HarnessServiceServer struct {
	apiv1.UnimplementedHarnessServiceServer
	catalog *scenario.Catalog
	runner  *scenario.Runner
	logger  *slog.Logger

	// the debug port is fixed, one scenario at a time
	runMu sync.Mutex

	mu        sync.RWMutex
	runs      map[string]*apiv1.Run
	ownersMap map[string]string
}

func NewHarnessServiceServer(catalog *scenario.Catalog, runner *scenario.Runner, logger *slog.Logger) *HarnessServiceServer {
	return &HarnessServiceServer{
		catalog:   catalog,
		runner:    runner,
		logger:    logger,
		runs:      make(map[string]*apiv1.Run),
		ownersMap: make(map[string]string),
	}
}
