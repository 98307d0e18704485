package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hrygo/eventchain/internal/observability"
	"github.com/hrygo/eventchain/plugin/ai"
)

// Extractor classifies free text as a calendar request.
type Extractor interface {
	Extract(ctx context.Context, userText string, now time.Time) (*ExtractionRecord, error)
}

// ModelExtractor implements Extractor with one gateway call.
type ModelExtractor struct {
	gateway ai.Gateway
	logger  *slog.Logger
}

// NewModelExtractor creates a new ModelExtractor.
func NewModelExtractor(gateway ai.Gateway, logger *slog.Logger) *ModelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelExtractor{gateway: gateway, logger: logger}
}

// Extract classifies userText relative to now.
// An empty or refused model answer yields a non-calendar record with zero confidence
// so the gate always has something to decide on; every other gateway failure is returned.
func (e *ModelExtractor) Extract(ctx context.Context, userText string, now time.Time) (*ExtractionRecord, error) {
	log := observability.LoggerFrom(ctx, e.logger)
	log.Info("starting event extraction analysis")
	log.Debug("extraction input", "text", truncate(userText))

	var rec ExtractionRecord
	err := e.gateway.Generate(ctx, &ai.Request{
		SystemInstruction: extractionPrompt(now),
		UserContent:       userText,
		Schema:            extractionSchema,
	}, &rec)
	if err != nil {
		if ai.IsKind(err, ai.ErrKindEmpty) || ai.IsKind(err, ai.ErrKindRefused) {
			log.Warn("extraction produced no answer, treating as non-calendar input", "error", err)
			return unclassified(userText), nil
		}
		return nil, err
	}

	if err := checkExtraction(&rec); err != nil {
		return nil, err
	}
	if rec.Description == "" {
		rec.Description = userText
	}

	log.Info("extraction complete",
		"is_calendar_event", rec.IsCalendarEvent,
		"request_type", rec.RequestType,
		"confidence", fmt.Sprintf("%.2f", rec.ConfidenceScore))
	return &rec, nil
}

// unclassified is the record used when the model gives no usable classification.
func unclassified(userText string) *ExtractionRecord {
	return &ExtractionRecord{
		Description:     userText,
		RequestType:     RequestOther,
		IsCalendarEvent: false,
		ConfidenceScore: 0,
	}
}

// checkExtraction enforces the record invariants regardless of which gateway produced it.
func checkExtraction(rec *ExtractionRecord) error {
	if math.IsNaN(rec.ConfidenceScore) || rec.ConfidenceScore < 0 || rec.ConfidenceScore > 1 {
		gwErr := ai.NewGatewayError(ai.ErrKindSchema,
			fmt.Sprintf("confidence_score %v outside [0,1]", rec.ConfidenceScore), nil)
		gwErr.Schema = extractionSchema.Name
		return gwErr
	}
	switch rec.RequestType {
	case RequestNew, RequestModify, RequestOther:
	default:
		gwErr := ai.NewGatewayError(ai.ErrKindSchema,
			fmt.Sprintf("unknown request_type %q", rec.RequestType), nil)
		gwErr.Schema = extractionSchema.Name
		return gwErr
	}
	return nil
}
