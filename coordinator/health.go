package coordinator

import (
	"strconv"

	"github.com/c360/swarmpulse/health"
	"github.com/c360/swarmpulse/schema"
	"github.com/c360/swarmpulse/stomp"
)

// Health is the composite pipeline health.
type Health struct {
	SchemaStatus      schema.Status `json:"schemaStatus"`
	SchemaError       string        `json:"schemaError,omitempty"`
	ConnectionState   stomp.State   `json:"connectionState"`
	InvalidFrameCount int           `json:"invalidFrameCount"`
}

// Health part names in the monitor.
const (
	PartSchema     = "schema"
	PartConnection = "connection"
	PartIngest     = "ingest"
)

func schemaStatus(h Health) health.Status {
	switch h.SchemaStatus {
	case schema.StatusReady:
		return health.NewHealthy(PartSchema, "Schema loaded")
	case schema.StatusError:
		return health.NewUnhealthy(PartSchema, health.Sanitize(h.SchemaError))
	case schema.StatusLoading:
		return health.NewDegraded(PartSchema, "Schema loading")
	default:
		return health.NewDegraded(PartSchema, "Schema not loaded")
	}
}

func connectionStatus(h Health) health.Status {
	var s health.Status
	switch h.ConnectionState {
	case stomp.StateConnected:
		s = health.NewHealthy(PartConnection, "Connected to broker")
	case stomp.StateConnecting, stomp.StateReconnecting:
		s = health.NewDegraded(PartConnection, "Connecting to broker")
	case stomp.StateOffline:
		s = health.NewDegraded(PartConnection, "Connection disabled")
	default:
		s = health.NewDegraded(PartConnection, "Connection not started")
	}
	return s.WithDetail("state", h.ConnectionState.String())
}

func ingestStatus(h Health) health.Status {
	return health.NewHealthy(PartIngest, "Ingesting frames").
		WithDetail("invalid_frames", strconv.Itoa(h.InvalidFrameCount))
}
