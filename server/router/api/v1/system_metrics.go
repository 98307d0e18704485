package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/eventchain/internal/observability"
)

// MetricsOverviewResponse represents the overview response of pipeline metrics
// collected since the process started.
type MetricsOverviewResponse struct {
	TotalRuns    int64                                   `json:"total_runs"`
	Confirmed    int64                                   `json:"confirmed"`
	Rejected     int64                                   `json:"rejected"`
	Failed       int64                                   `json:"failed"`
	SuccessRate  float64                                 `json:"success_rate"`
	P50LatencyMs int64                                   `json:"p50_latency_ms"`
	P95LatencyMs int64                                   `json:"p95_latency_ms"`
	Outcomes     map[string]int64                        `json:"outcomes"`
	Stages       map[string]*observability.StageSnapshot `json:"stages"`
}

// GetMetricsOverview returns the pipeline metrics overview
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Pipeline.Metrics().Snapshot()
	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRuns:    snap.RunTotal,
		Confirmed:    snap.RunConfirmed,
		Rejected:     snap.RunRejected,
		Failed:       snap.RunFailed,
		SuccessRate:  snap.SuccessRate(),
		P50LatencyMs: snap.P50.Milliseconds(),
		P95LatencyMs: snap.P95.Milliseconds(),
		Outcomes:     snap.Outcomes,
		Stages:       snap.Stages,
	})
}
