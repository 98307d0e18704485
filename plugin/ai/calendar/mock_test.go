package calendar

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hrygo/eventchain/plugin/ai"
)

// MockGateway implements ai.Gateway for testing. Canned answers are raw JSON
// and go through ai.Decode like a real model answer.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Generate(ctx context.Context, req *ai.Request, out any) error {
	args := m.Called(ctx, req)
	if err := args.Error(1); err != nil {
		return err
	}
	return ai.Decode(args.String(0), out)
}

// schema matches a request by its response schema name.
func schema(name string) any {
	return mock.MatchedBy(func(req *ai.Request) bool {
		return req != nil && req.Schema != nil && req.Schema.Name == name
	})
}

// reference time: Friday, March 15, 2024 10:00 UTC
var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

const (
	newEventExtraction = `{"description":"Team sync with Alice and Bob next Tuesday at 2pm","request_type":"NEW","is_calendar_event":true,"confidence_score":0.95}`
	modifyExtraction   = `{"description":"Move the team sync to Wednesday and add Carol","request_type":"MODIFY","is_calendar_event":true,"confidence_score":0.9}`
	otherExtraction    = `{"description":"What is on my calendar today?","request_type":"OTHER","is_calendar_event":true,"confidence_score":0.9}`
	notCalendar        = `{"description":"The weather is nice","request_type":"OTHER","is_calendar_event":false,"confidence_score":0.98}`

	newEventDetails = `{"name":"Team sync","date":"2024-03-19T14:00:00","duration_minutes":60,"participants":["Alice","Bob","alice"]}`
	changeSetDetail = `{"event_identifier":"team sync","changes":[{"field":"date","new_value":"2024-03-20T14:00:00"}],"participants_to_add":["Carol"],"participants_to_remove":[]}`
	confirmation    = `{"confirmation_message":"Your team sync is set for Tuesday at 2pm with Alice and Bob."}`
)

type stubExtractor struct {
	rec *ExtractionRecord
	err error
}

func (s stubExtractor) Extract(context.Context, string, time.Time) (*ExtractionRecord, error) {
	return s.rec, s.err
}

type stubParser struct {
	details *EventDetails
	changes *ChangeSet
	err     error
}

func (s stubParser) ParseNew(context.Context, string, time.Time) (*EventDetails, error) {
	return s.details, s.err
}

func (s stubParser) ParseModify(context.Context, string, time.Time) (*ChangeSet, error) {
	return s.changes, s.err
}

type stubConfirmer struct {
	conf *Confirmation
	err  error
}

func (s stubConfirmer) Confirm(context.Context, Detail, string) (*Confirmation, error) {
	return s.conf, s.err
}

func threshold(v float64) *float64 { return &v }

type stubLinker struct {
	link string
	err  error
}

func (s stubLinker) Link(context.Context, Detail) (string, error) {
	return s.link, s.err
}
