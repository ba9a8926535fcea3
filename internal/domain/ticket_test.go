package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want TicketStatus
		ok   bool
	}{
		{"OPEN", TicketStatusOpen, true},
		{"open", TicketStatusOpen, true},
		{"ACTIVE", TicketStatusOpen, true},
		{"active", TicketStatusOpen, true},
		{" in_progress ", TicketStatusInProgress, true},
		{"RESOLVED", TicketStatusResolved, true},
		{"Archived", TicketStatusArchived, true},
		{"CLOSED", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeStatus(tc.raw)
		assert.Equal(t, tc.ok, ok, "input %q", tc.raw)
		assert.Equal(t, tc.want, got, "input %q", tc.raw)
	}
}

func TestTicketStatusTerminal(t *testing.T) {
	assert.False(t, TicketStatusOpen.Terminal())
	assert.False(t, TicketStatusInProgress.Terminal())
	assert.True(t, TicketStatusResolved.Terminal())
	assert.True(t, TicketStatusArchived.Terminal())
}

func TestParticipant(t *testing.T) {
	managerID := "manager-1"
	ticket := Ticket{UserID: "client-1", ManagerID: &managerID}

	assert.True(t, ticket.Participant("client-1"))
	assert.True(t, ticket.Participant("manager-1"))
	assert.False(t, ticket.Participant("stranger"))

	unassigned := Ticket{UserID: "client-1"}
	assert.False(t, unassigned.Participant("manager-1"))
}

func TestParseRole(t *testing.T) {
	for _, role := range append([]Role{RoleClient}, AdministrativeRoles...) {
		parsed, err := ParseRole(string(role))
		assert.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)
}

func TestIsAdministrative(t *testing.T) {
	assert.False(t, RoleClient.IsAdministrative())
	for _, role := range AdministrativeRoles {
		assert.True(t, role.IsAdministrative(), string(role))
	}
}

func TestUserEnabled(t *testing.T) {
	user := User{IsActive: true}
	assert.True(t, user.Enabled())

	assert.False(t, (&User{IsActive: false}).Enabled())
	assert.False(t, (&User{IsActive: true, IsBlocked: true}).Enabled())
	assert.False(t, (&User{IsActive: true, IsSuspicious: true}).Enabled())
}
