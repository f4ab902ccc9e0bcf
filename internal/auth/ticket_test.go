package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	tk, err := NewTickets(time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, err := tk.IssueTicket("ABC234", id, "p2")
	require.NoError(t, err)

	got, err := tk.ParseTicket(token)
	require.NoError(t, err)
	assert.Equal(t, Ticket{Code: "ABC234", PlayerID: id, Role: "p2"}, got)
}

func TestTicketFromOtherKeyRejected(t *testing.T) {
	a, err := NewTickets(0)
	require.NoError(t, err)
	b, err := NewTickets(0)
	require.NoError(t, err)

	token, err := a.IssueTicket("ABC234", uuid.New(), "p1")
	require.NoError(t, err)
	_, err = b.ParseTicket(token)
	assert.Error(t, err)

	_, err = a.ParseTicket("not-a-token")
	assert.Error(t, err)
}

func TestTicketExpired(t *testing.T) {
	tk, err := NewTickets(-time.Minute)
	require.NoError(t, err)
	// A negative ttl is treated as "no exp claim".
	token, err := tk.IssueTicket("ABC234", uuid.New(), "p1")
	require.NoError(t, err)
	_, err = tk.ParseTicket(token)
	assert.NoError(t, err)

	tk.ttl = time.Nanosecond
	token, err = tk.IssueTicket("ABC234", uuid.New(), "p1")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = tk.ParseTicket(token)
	assert.Error(t, err)
}

func TestParseTTL(t *testing.T) {
	d, err := ParseTTL("", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	d, err = ParseTTL("never", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseTTL("45m", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = ParseTTL("soon", time.Hour)
	assert.Error(t, err)
}
