package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/stationos/internal/models"
)

func TestTicketLifecycleHappyPath(t *testing.T) {
	lc := NewTicketLifecycle()
	tk := &models.Ticket{ID: "TICKET_1", Status: models.TicketOpen}

	for _, to := range []models.TicketStatus{
		models.TicketInProgress,
		models.TicketResolved,
		models.TicketClosed,
		models.TicketOpen,
	} {
		require.NoError(t, lc.MoveTo(tk, to))
		assert.Equal(t, to, tk.Status)
	}
}

func TestTicketLifecycleSameStatusIsNoop(t *testing.T) {
	tk := &models.Ticket{Status: models.TicketResolved}
	require.NoError(t, NewTicketLifecycle().MoveTo(tk, models.TicketResolved))
	assert.Equal(t, models.TicketResolved, tk.Status)
}

func TestTicketLifecycleRejects(t *testing.T) {
	lc := NewTicketLifecycle()

	cases := []struct {
		from, to models.TicketStatus
	}{
		{models.TicketOpen, models.TicketClosed},
		{models.TicketInProgress, models.TicketClosed},
		{models.TicketInProgress, models.TicketOpen},
		{models.TicketClosed, models.TicketInProgress},
	}
	for _, c := range cases {
		tk := &models.Ticket{ID: "x", Status: c.from}
		err := lc.MoveTo(tk, c.to)
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s to %s", c.from, c.to)
		assert.Equal(t, c.from, tk.Status)
	}

	tk := &models.Ticket{Status: models.TicketOpen}
	err := lc.MoveTo(tk, "archived")
	assert.True(t, errors.Is(err, models.ErrInvalidPayload))
}
