package v1

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hrygo/eventchain/plugin/ai/calendar"
	"github.com/hrygo/eventchain/plugin/ai/timeout"
	apierrors "github.com/hrygo/eventchain/server/internal/errors"
)

// MaxBatchSize is the largest number of texts accepted by the batch endpoint.
const MaxBatchSize = 50

// ProcessCalendarRequestBody is the body of POST /api/v1/calendar/process.
type ProcessCalendarRequestBody struct {
	Text string `json:"text"`
	// Signer overrides the configured signer of the confirmation.
	Signer string `json:"signer,omitempty"`
	// ReferenceTime is an RFC 3339 instant relative dates are resolved against; defaults to now.
	ReferenceTime string `json:"reference_time,omitempty"`
	// Timezone is an IANA zone; defaults to the configured timezone.
	Timezone string `json:"timezone,omitempty"`
}

// ProcessCalendarBatchRequestBody is the body of POST /api/v1/calendar/batch.
type ProcessCalendarBatchRequestBody struct {
	Texts         []string `json:"texts"`
	ReferenceTime string   `json:"reference_time,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
}

// QuickExtractRequestBody is the body of POST /api/v1/calendar/quick.
type QuickExtractRequestBody struct {
	Text string `json:"text"`
}

// CalendarResultResponse is a pipeline result. Rejections are successful responses.
// ConfirmationHTML is the confirmation message rendered from Markdown.
type CalendarResultResponse struct {
	RunID            string                     `json:"run_id"`
	State            calendar.State             `json:"state"`
	Trace            []calendar.State           `json:"trace"`
	Extraction       *calendar.ExtractionRecord `json:"extraction,omitempty"`
	DetailKind       calendar.DetailKind        `json:"detail_kind,omitempty"`
	Detail           calendar.Detail            `json:"detail,omitempty"`
	Confirmation     *calendar.Confirmation     `json:"confirmation,omitempty"`
	ConfirmationHTML string                     `json:"confirmation_html,omitempty"`
	Rejection        *calendar.Rejection        `json:"rejection,omitempty"`
}

// confirmationMarkdown renders model-written messages; raw HTML in them is not passed through.
var confirmationMarkdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

func renderConfirmationHTML(message string) string {
	var buf bytes.Buffer
	if err := confirmationMarkdown.Convert([]byte(message), &buf); err != nil {
		slog.Warn("failed to render confirmation message", "error", err)
		return ""
	}
	return buf.String()
}

// BatchItemResponse is one entry of a batch response, in input order.
type BatchItemResponse struct {
	Index  int                     `json:"index"`
	Input  string                  `json:"input"`
	Result *CalendarResultResponse `json:"result,omitempty"`
	Error  *apierrors.APIError     `json:"error,omitempty"`
}

// ProcessCalendarBatchResponse is the response of POST /api/v1/calendar/batch.
type ProcessCalendarBatchResponse struct {
	Items []BatchItemResponse `json:"items"`
}

func newCalendarResultResponse(res *calendar.Result) *CalendarResultResponse {
	resp := &CalendarResultResponse{
		RunID:        res.RunID,
		State:        res.State,
		Trace:        res.Trace,
		Extraction:   res.Extraction,
		Detail:       res.Detail,
		Confirmation: res.Confirmation,
		Rejection:    res.Rejection,
	}
	if res.Detail != nil {
		resp.DetailKind = res.Detail.Kind()
	}
	if res.Confirmation != nil {
		resp.ConfirmationHTML = renderConfirmationHTML(res.Confirmation.Message)
	}
	return resp
}

// ProcessCalendarRequest runs the pipeline on one text.
// POST /api/v1/calendar/process[?format=ics]
func (s *APIV1Service) ProcessCalendarRequest(c echo.Context) error {
	var body ProcessCalendarRequestBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, "invalid request body"))
	}

	now, err := s.referenceTime(body.ReferenceTime, body.Timezone)
	if err != nil {
		return writeError(c, err)
	}

	signer := body.Signer
	if signer == "" {
		signer = s.Pipeline.Signer()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.PipelineTimeout)
	defer cancel()

	res, err := s.Pipeline.ProcessAs(ctx, body.Text, signer, now)
	if err != nil {
		return writeError(c, err)
	}

	if c.QueryParam("format") == "ics" {
		return writeICS(c, res, now.Location())
	}
	return c.JSON(http.StatusOK, newCalendarResultResponse(res))
}

// writeICS renders a confirmed new event as an iCalendar attachment.
func writeICS(c echo.Context, res *calendar.Result, loc *time.Location) error {
	details, ok := res.Detail.(*calendar.EventDetails)
	if !res.Confirmed() || !ok {
		return writeError(c, apierrors.Unsupported("only confirmed new events can be exported as iCalendar"))
	}

	var buf bytes.Buffer
	if err := calendar.EncodeICS(&buf, details, loc); err != nil {
		return writeError(c, apierrors.Wrap(err, apierrors.ErrCodeUnsupported, "event cannot be exported as iCalendar"))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="event.ics"`)
	c.Response().Header().Set("X-Run-Id", res.RunID)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// ProcessCalendarBatch runs the pipeline on several independent texts.
// POST /api/v1/calendar/batch
func (s *APIV1Service) ProcessCalendarBatch(c echo.Context) error {
	var body ProcessCalendarBatchRequestBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, "invalid request body"))
	}
	if len(body.Texts) == 0 {
		return writeError(c, apierrors.InvalidArgument("texts is required"))
	}
	if len(body.Texts) > MaxBatchSize {
		return writeError(c, apierrors.InvalidArgument("too many texts in batch"))
	}

	now, err := s.referenceTime(body.ReferenceTime, body.Timezone)
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.BatchTimeout)
	defer cancel()

	items := s.Pipeline.ProcessBatch(ctx, body.Texts, now, s.Profile.Concurrency)

	resp := ProcessCalendarBatchResponse{Items: make([]BatchItemResponse, len(items))}
	for i, item := range items {
		out := BatchItemResponse{Index: item.Index, Input: item.Input}
		if item.Err != nil {
			out.Error = apierrors.FromError(item.Err)
		} else {
			out.Result = newCalendarResultResponse(item.Result)
		}
		resp.Items[i] = out
	}
	return c.JSON(http.StatusOK, resp)
}

// QuickExtractEvent extracts event information with a single model call.
// POST /api/v1/calendar/quick
func (s *APIV1Service) QuickExtractEvent(c echo.Context) error {
	if s.Gateway == nil {
		return writeError(c, apierrors.ServiceUnavailable("quick extraction is not configured"))
	}

	var body QuickExtractRequestBody
	if err := c.Bind(&body); err != nil {
		return writeError(c, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, "invalid request body"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.PipelineTimeout)
	defer cancel()

	ev, err := calendar.QuickExtract(ctx, s.Gateway, body.Text)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}
