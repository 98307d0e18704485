// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

// AI operation timeout constants.
const (
	// GatewayTimeout is the default deadline for a single model gateway call.
	GatewayTimeout = 30 * time.Second

	// PipelineTimeout bounds a whole extract to confirm run (four gateway calls).
	PipelineTimeout = 2 * time.Minute

	// BatchTimeout bounds a batch of independent pipeline runs.
	BatchTimeout = 5 * time.Minute

	// ShutdownTimeout is the grace period given to the HTTP server on shutdown.
	ShutdownTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
