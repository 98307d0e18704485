package calendar

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/eventchain/internal/observability"
	"github.com/hrygo/eventchain/plugin/ai"
)

// DefaultDurationMinutes is the duration the model is told to use when the text states none.
const DefaultDurationMinutes = 60

// DetailParser turns an admitted description into one of the Detail variants.
type DetailParser interface {
	ParseNew(ctx context.Context, description string, now time.Time) (*EventDetails, error)
	ParseModify(ctx context.Context, description string, now time.Time) (*ChangeSet, error)
}

// ModelParser implements DetailParser with one gateway call per parse.
type ModelParser struct {
	gateway ai.Gateway
	logger  *slog.Logger
}

// NewModelParser creates a new ModelParser.
func NewModelParser(gateway ai.Gateway, logger *slog.Logger) *ModelParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelParser{gateway: gateway, logger: logger}
}

// ParseNew extracts a complete event, resolving relative dates against now.
func (p *ModelParser) ParseNew(ctx context.Context, description string, now time.Time) (*EventDetails, error) {
	log := observability.LoggerFrom(ctx, p.logger)
	log.Info("starting event details parsing")

	var details EventDetails
	err := p.gateway.Generate(ctx, &ai.Request{
		SystemInstruction: newEventPrompt(now),
		UserContent:       description,
		Schema:            eventDetailsSchema,
	}, &details)
	if err != nil {
		return nil, err
	}

	details.normalize()
	if err := ai.ValidateStruct(&details); err != nil {
		return nil, schemaViolation(eventDetailsSchema, err)
	}

	log.Info("parsed event details",
		"name", details.Name,
		"date", details.Date,
		"duration_minutes", details.DurationMinutes)
	log.Debug("event participants", "participants", strings.Join(details.Participants, ", "))
	return &details, nil
}

// ParseModify extracts the change set of an existing event.
// The identifier is kept as the model wrote it; it is never resolved here.
func (p *ModelParser) ParseModify(ctx context.Context, description string, now time.Time) (*ChangeSet, error) {
	log := observability.LoggerFrom(ctx, p.logger)
	log.Info("starting event change parsing")

	var changes ChangeSet
	err := p.gateway.Generate(ctx, &ai.Request{
		SystemInstruction: modifyEventPrompt(now),
		UserContent:       description,
		Schema:            changeSetSchema,
	}, &changes)
	if err != nil {
		return nil, err
	}

	changes.normalize()
	if err := ai.ValidateStruct(&changes); err != nil {
		return nil, schemaViolation(changeSetSchema, err)
	}

	log.Info("parsed event changes",
		"event_identifier", changes.EventIdentifier,
		"changes", len(changes.Changes),
		"participants_added", len(changes.ParticipantsToAdd),
		"participants_removed", len(changes.ParticipantsToRemove))
	return &changes, nil
}

func schemaViolation(schema *ai.Schema, err error) *ai.GatewayError {
	gwErr := ai.NewGatewayError(ai.ErrKindSchema, "response violates schema constraints", err)
	gwErr.Schema = schema.Name
	return gwErr
}
