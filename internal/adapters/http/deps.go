package http

import (
	"github.com/nats-io/nats.go"

	"github.com/aquasight/aquasight/internal/adapters/postgres"
	"github.com/aquasight/aquasight/internal/adapters/valkey"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Capacity *usecases.CapacityService
	Analysis *usecases.AnalysisService
	Reports  *usecases.ReportService
	Results  ports.ResultStore
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	UploadsDir         string
	DelegateConfigured bool
}
