package calendar

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventchain/plugin/ai"
)

func TestModelConfirmer_SendsDetailAndSigner(t *testing.T) {
	gw := new(MockGateway)
	var req *ai.Request
	gw.On("Generate", mock.Anything, schema("event_confirmation")).
		Run(func(args mock.Arguments) { req = args.Get(1).(*ai.Request) }).
		Return(`{"confirmation_message":"All set! Best, Nozaki"}`, nil)

	c := NewModelConfirmer(gw, nil)
	conf, err := c.Confirm(context.Background(), &EventDetails{Name: "Demo", Date: "2024-03-20"}, "Nozaki")
	require.NoError(t, err)

	// already signed, nothing appended
	assert.Equal(t, "All set! Best, Nozaki", conf.Message)
	assert.Contains(t, req.SystemInstruction, "Nozaki")
	assert.True(t, strings.HasPrefix(req.UserContent, "new_event: "))
	assert.Contains(t, req.UserContent, `"name":"Demo"`)
}

func TestModelConfirmer_PropagatesGatewayError(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Generate", mock.Anything, schema("event_confirmation")).
		Return("", ai.NewGatewayError(ai.ErrKindEmpty, "empty response from model", nil))

	_, err := NewModelConfirmer(gw, nil).Confirm(context.Background(), &ChangeSet{}, "Nozaki")
	assert.True(t, ai.IsKind(err, ai.ErrKindEmpty))
}

func TestTemplateConfirmer(t *testing.T) {
	tests := []struct {
		name   string
		detail Detail
		want   string
	}{
		{
			name:   "new event",
			detail: &EventDetails{Name: "Review", Date: "2024-03-19T14:00:00", DurationMinutes: 30, Participants: []string{"Alice", "Bob", "Carol"}},
			want:   "Your event \"Review\" is scheduled for 2024-03-19T14:00:00 (30 minutes) with Alice, Bob and Carol.",
		},
		{
			name:   "new event without extras",
			detail: &EventDetails{Name: "Focus", Date: "2024-03-19"},
			want:   "Your event \"Focus\" is scheduled for 2024-03-19.",
		},
		{
			name: "change set",
			detail: &ChangeSet{
				EventIdentifier:      "weekly review",
				Changes:              []FieldChange{{Field: "date", NewValue: "2024-03-21T10:00:00"}},
				ParticipantsToAdd:    []string{"Dana"},
				ParticipantsToRemove: []string{"Eve"},
			},
			want: "I've noted the following updates to \"weekly review\": date -> 2024-03-21T10:00:00; adding Dana; removing Eve.",
		},
		{
			name:   "empty change set without identifier",
			detail: &ChangeSet{},
			want:   "No changes were requested for your event.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := TemplateConfirmer{}.Confirm(context.Background(), tt.detail, "Nozaki")
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n\n-- Nozaki", conf.Message)
		})
	}
}

func TestEnsureSigned(t *testing.T) {
	assert.Equal(t, "Done.\n\n-- Mika", ensureSigned("Done.", "Mika"))
	assert.Equal(t, "Done, mika", ensureSigned("Done, mika", "Mika"))
	assert.Equal(t, "Done.", ensureSigned(" Done. ", ""))
	assert.Equal(t, "-- Mika", ensureSigned("", "Mika"))
}
