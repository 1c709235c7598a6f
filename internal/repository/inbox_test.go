package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/stationos/internal/models"
)

func TestTicketStoreNewestFirstAndCapped(t *testing.T) {
	s := NewMemoryTicketStore()
	for i := 0; i < InboxCapacity+3; i++ {
		s.Add(&models.Ticket{ID: fmt.Sprintf("t-%d", i), Status: models.TicketOpen})
	}

	tickets := s.List()
	require.Len(t, tickets, InboxCapacity)
	assert.Equal(t, fmt.Sprintf("t-%d", InboxCapacity+2), tickets[0].ID)

	_, err := s.Get("t-0")
	assert.True(t, errors.Is(err, ErrTicketNotFound))

	assert.Equal(t, InboxCapacity, s.Clear())
	assert.Empty(t, s.List())
}

func TestTicketStoreUpdate(t *testing.T) {
	s := NewMemoryTicketStore()
	s.Add(&models.Ticket{ID: "t-1", Status: models.TicketOpen})

	_, err := s.Update("t-1", func(t *models.Ticket) error {
		t.AssignedTo = "tech-7"
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, err := s.Get("t-1")
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTo)

	updated, err := s.Update("t-1", func(t *models.Ticket) error {
		t.Status = models.TicketInProgress
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketInProgress, updated.Status)

	_, err = s.Update("missing", func(*models.Ticket) error { return nil })
	assert.True(t, errors.Is(err, ErrTicketNotFound))
}

func TestRerouteHistoryKeepsRecent(t *testing.T) {
	h := NewMemoryRerouteHistory()
	for i := 0; i < InboxCapacity+5; i++ {
		h.Add(&models.RerouteNotification{ID: fmt.Sprintf("n-%d", i)})
	}

	list, total := h.List()
	require.Len(t, list, InboxCapacity)
	assert.Equal(t, InboxCapacity+5, total)
	assert.Equal(t, "n-5", list[0].ID)

	assert.Equal(t, InboxCapacity+5, h.Clear())
	list, total = h.List()
	assert.Empty(t, list)
	assert.Equal(t, 0, total)
}
