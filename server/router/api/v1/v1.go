package v1

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/eventchain/internal/profile"
	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/calendar"
	apierrors "github.com/hrygo/eventchain/server/internal/errors"
	"github.com/hrygo/eventchain/server/timezone"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Pipeline *calendar.Pipeline
	// Gateway serves the quick extraction endpoint; nil disables it.
	Gateway ai.Gateway
}

func NewAPIV1Service(profile *profile.Profile, pipeline *calendar.Pipeline, gateway ai.Gateway) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Pipeline: pipeline,
		Gateway:  gateway,
	}
}

// RegisterRoutes registers the calendar and system routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api/v1", middleware.CORS())

	apiGroup.POST("/calendar/process", s.ProcessCalendarRequest)
	apiGroup.POST("/calendar/batch", s.ProcessCalendarBatch)
	apiGroup.POST("/calendar/quick", s.QuickExtractEvent)
	apiGroup.GET("/system/metrics", s.GetMetricsOverview)
}

// referenceTime resolves the instant and zone relative dates of a request are read in.
func (s *APIV1Service) referenceTime(value, tz string) (time.Time, error) {
	loc, err := timezone.ParseTimezone(tz, s.Profile.Location())
	if err != nil {
		return time.Time{}, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error())
	}
	now, err := timezone.ReferenceTime(value, loc)
	if err != nil {
		return time.Time{}, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error())
	}
	return now, nil
}

// writeError renders err as an API error response.
func writeError(c echo.Context, err error) error {
	apiErr := apierrors.FromError(err)
	status := apiErr.HTTPStatus()
	if status >= 500 {
		slog.Error("calendar request failed",
			"path", c.Path(),
			"code", apiErr.Code,
			"kind", apiErr.Kind,
			"error", err)
	} else {
		slog.Warn("calendar request refused", "path", c.Path(), "code", apiErr.Code, "error", err)
	}
	return c.JSON(status, apiErr)
}
