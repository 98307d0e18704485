package calendar

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/eventchain/plugin/ai"
)

// QuickEvent is the single-call extraction of a calendar event.
// Date is kept as written, such as "Friday".
type QuickEvent struct {
	Name         string   `json:"name" jsonschema:"Name of the event" validate:"required"`
	Date         string   `json:"date" jsonschema:"Date of the event as written in the text"`
	Participants []string `json:"participants" jsonschema:"List of participants"`
}

var quickEventSchema = ai.MustSchemaFor[QuickEvent]("calendar_event",
	"Event information extracted from a text")

// QuickExtract pulls event information out of text with one gateway call,
// without classification, gating or confirmation.
func QuickExtract(ctx context.Context, gateway ai.Gateway, text string) (*QuickEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}

	var ev QuickEvent
	err := gateway.Generate(ctx, &ai.Request{
		SystemInstruction: "Extract the event information.",
		UserContent:       text,
		Schema:            quickEventSchema,
	}, &ev)
	if err != nil {
		return nil, err
	}
	ev.Name = strings.TrimSpace(ev.Name)
	ev.Date = strings.TrimSpace(ev.Date)
	ev.Participants = dedupe(ev.Participants)
	return &ev, nil
}
