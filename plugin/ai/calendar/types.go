// Package calendar chains structured model calls to turn free-text calendar
// requests into event records and a confirmation message.
package calendar

import (
	"strings"
)

// RequestType is the intent of a calendar request.
type RequestType string

const (
	// RequestNew asks to create an event.
	RequestNew RequestType = "NEW"
	// RequestModify asks to change an existing event.
	RequestModify RequestType = "MODIFY"
	// RequestOther is anything else, such as queries or cancellations of unknown events.
	RequestOther RequestType = "OTHER"
)

// ExtractionRecord is the classification of the raw input.
type ExtractionRecord struct {
	Description     string      `json:"description" jsonschema:"Raw description of the request, rewritten as a standalone sentence"`
	RequestType     RequestType `json:"request_type" jsonschema:"NEW to create an event, MODIFY to change an existing one, OTHER for anything else" validate:"oneof=NEW MODIFY OTHER"`
	IsCalendarEvent bool        `json:"is_calendar_event" jsonschema:"Whether this text describes a calendar event"`
	ConfidenceScore float64     `json:"confidence_score" jsonschema:"Confidence score between 0 and 1" validate:"gte=0,lte=1"`
}

// EventDetails is a complete new event.
type EventDetails struct {
	Name            string   `json:"name" jsonschema:"Name of the event" validate:"required"`
	Date            string   `json:"date" jsonschema:"Date and time of the event in ISO 8601 format" validate:"required,iso8601"`
	DurationMinutes int      `json:"duration_minutes" jsonschema:"Expected duration in minutes" validate:"gte=0"`
	Participants    []string `json:"participants" jsonschema:"List of participants"`
}

// FieldChange is a single field update of an existing event.
type FieldChange struct {
	Field    string `json:"field" jsonschema:"Name of the field to change, such as date, duration_minutes, name or location" validate:"required"`
	NewValue string `json:"new_value" jsonschema:"New value of the field; dates in ISO 8601 format"`
}

// ChangeSet describes changes to an existing event.
type ChangeSet struct {
	// EventIdentifier is a free-text label for the target event, never a resolved key.
	EventIdentifier      string        `json:"event_identifier" jsonschema:"Description used to identify the existing event, empty when the text does not name one"`
	Changes              []FieldChange `json:"changes" jsonschema:"Field changes to apply" validate:"dive"`
	ParticipantsToAdd    []string      `json:"participants_to_add" jsonschema:"Participants to add"`
	ParticipantsToRemove []string      `json:"participants_to_remove" jsonschema:"Participants to remove"`
}

// Confirmation is the terminal output of a successful run.
type Confirmation struct {
	Message string `json:"message"`
	// Link is set only when a Linker supplied one.
	Link string `json:"link,omitempty"`
}

// DetailKind tags the variants of Detail.
type DetailKind string

const (
	DetailNewEvent DetailKind = "new_event"
	DetailChange   DetailKind = "change_set"
)

// Detail is either *EventDetails or *ChangeSet.
type Detail interface {
	Kind() DetailKind
	isDetail()
}

func (*EventDetails) Kind() DetailKind { return DetailNewEvent }
func (*EventDetails) isDetail()        {}

func (*ChangeSet) Kind() DetailKind { return DetailChange }
func (*ChangeSet) isDetail()        {}

// dedupe removes repeated names, comparing trimmed and case-folded, keeping first occurrences.
// Blank entries are dropped.
func dedupe(names []string) []string {
	if len(names) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// normalize applies the boundary rules of a new event.
func (d *EventDetails) normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Date = strings.TrimSpace(d.Date)
	d.Participants = dedupe(d.Participants)
}

// normalize applies the boundary rules of a change set.
func (c *ChangeSet) normalize() {
	c.EventIdentifier = strings.TrimSpace(c.EventIdentifier)
	c.ParticipantsToAdd = dedupe(c.ParticipantsToAdd)
	c.ParticipantsToRemove = dedupe(c.ParticipantsToRemove)
	if c.Changes == nil {
		c.Changes = []FieldChange{}
	}
}
