package calendar

import (
	"fmt"
	"time"

	"github.com/hrygo/eventchain/plugin/ai"
)

// Response schemas, one per stage.
var (
	extractionSchema = ai.MustSchemaFor[ExtractionRecord]("event_extraction",
		"Classification of a text as a calendar request").
		WithEnum("request_type", string(RequestNew), string(RequestModify), string(RequestOther))

	eventDetailsSchema = ai.MustSchemaFor[EventDetails]("event_details",
		"Details of a new calendar event")

	changeSetSchema = ai.MustSchemaFor[ChangeSet]("event_change_set",
		"Changes to an existing calendar event")

	confirmationSchema = ai.MustSchemaFor[confirmationResponse]("event_confirmation",
		"Natural language confirmation of a calendar request")
)

// confirmationResponse is what the model returns for a confirmation; links never come from the model.
type confirmationResponse struct {
	ConfirmationMessage string `json:"confirmation_message" jsonschema:"Natural language confirmation message" validate:"required"`
}

// dateContext renders the reference date the way every stage prompt states it.
func dateContext(now time.Time) string {
	return fmt.Sprintf("Today is %s.", now.Format("Monday, January 02, 2006"))
}

func extractionPrompt(now time.Time) string {
	return fmt.Sprintf(`%s Analyze whether the text describes a calendar event.

Rules:
1. is_calendar_event is true only when the text asks to create or change a scheduled event.
2. request_type is NEW for a new event, MODIFY for a change to an existing event, OTHER otherwise.
3. confidence_score is your confidence between 0 and 1.
4. description restates the request so it can be understood without the original text.`, dateContext(now))
}

func newEventPrompt(now time.Time) string {
	return fmt.Sprintf(`%s Current time: %s.
Extract detailed event information.

Rules:
1. When the text references relative dates such as "next Tuesday", resolve them against the current date above.
2. date is an ISO 8601 date-time (YYYY-MM-DDTHH:MM:SS), or an ISO 8601 date when no time is given.
3. When no duration is stated or implied, use %d for duration_minutes.
4. participants lists every named person once, without the requester.`,
		dateContext(now), now.Format("15:04 MST"), DefaultDurationMinutes)
}

func modifyEventPrompt(now time.Time) string {
	return fmt.Sprintf(`%s Current time: %s.
Extract the requested changes to an existing event.

Rules:
1. event_identifier describes the existing event using only words from the text; leave it empty when the text does not identify one.
2. changes lists each changed field with its new value; resolve relative dates against the current date and write them in ISO 8601.
3. participants_to_add and participants_to_remove list each person once.`,
		dateContext(now), now.Format("15:04 MST"))
}

func confirmationPrompt(signer string) string {
	return fmt.Sprintf(`Generate a natural confirmation message for the calendar request below. Keep it short and friendly.
Sign off with your name: %s`, signer)
}
