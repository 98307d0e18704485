package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventchain/plugin/ai"
)

func TestQuickExtract(t *testing.T) {
	gw := new(MockGateway)
	gw.On("Generate", mock.Anything, schema("calendar_event")).
		Return(`{"name":"science fair","date":"Friday","participants":["Alice","Bob","Bob"]}`, nil)

	ev, err := QuickExtract(context.Background(), gw, "Alice and Bob are going to a science fair on Friday.")
	require.NoError(t, err)
	assert.Equal(t, "science fair", ev.Name)
	assert.Equal(t, "Friday", ev.Date)
	assert.Equal(t, []string{"Alice", "Bob"}, ev.Participants)
}

func TestQuickExtract_Errors(t *testing.T) {
	gw := new(MockGateway)
	_, err := QuickExtract(context.Background(), gw, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	gw.On("Generate", mock.Anything, schema("calendar_event")).
		Return(`{"name":"","date":"Friday","participants":[]}`, nil)
	_, err = QuickExtract(context.Background(), gw, "something on Friday")
	assert.True(t, ai.IsKind(err, ai.ErrKindSchema))
}
