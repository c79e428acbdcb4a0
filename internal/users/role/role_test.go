// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package role_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/users/role"
)

var allEvents = []role.Event{
	role.EventPromotionRequested,
	role.EventPromotionWithdrawn,
	role.EventPromotionApproved,
	role.EventTrainerCancelled,
	role.EventReported,
	role.EventReportCleared,
}

/*
TestTransition_Legal verifies every edge of the role table.
*/
func TestTransition_Legal(t *testing.T) {
	tests := []struct {
		name  string
		from  role.Role
		event role.Event
		to    role.Role
	}{
		{"request_keeps_user", role.User, role.EventPromotionRequested, role.User},
		{"withdraw_keeps_user", role.User, role.EventPromotionWithdrawn, role.User},
		{"approve_makes_trainer", role.User, role.EventPromotionApproved, role.Trainer},
		{"cancel_demotes_trainer", role.Trainer, role.EventTrainerCancelled, role.User},
		{"report_user", role.User, role.EventReported, role.Reported},
		{"report_trainer", role.Trainer, role.EventReported, role.ReportedTrainer},
		{"clear_user", role.Reported, role.EventReportCleared, role.User},
		{"clear_trainer", role.ReportedTrainer, role.EventReportCleared, role.Trainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := role.Transition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
			assert.True(t, role.Allowed(tt.from, tt.event))
		})
	}
}

/*
TestTransition_NotTrainer checks the dedicated failure for cancelling a non-trainer.
*/
func TestTransition_NotTrainer(t *testing.T) {
	for _, from := range []role.Role{role.User, role.Reported, role.ReportedTrainer, role.Admin} {
		t.Run(string(from), func(t *testing.T) {
			_, err := role.Transition(from, role.EventTrainerCancelled)
			assert.ErrorIs(t, err, apperr.ErrNotTrainer)
		})
	}
}

/*
TestTransition_Illegal covers pairs missing from the table.
*/
func TestTransition_Illegal(t *testing.T) {
	tests := []struct {
		from  role.Role
		event role.Event
	}{
		{role.Trainer, role.EventPromotionApproved},
		{role.Trainer, role.EventPromotionRequested},
		{role.Reported, role.EventReported},
		{role.ReportedTrainer, role.EventPromotionApproved},
		{role.User, role.EventReportCleared},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			_, err := role.Transition(tt.from, tt.event)
			assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
			assert.False(t, role.Allowed(tt.from, tt.event))
		})
	}
}

/*
TestTransition_AdminIsTerminal verifies that administrators never change role.
*/
func TestTransition_AdminIsTerminal(t *testing.T) {
	for _, event := range allEvents {
		_, err := role.Transition(role.Admin, event)
		assert.Error(t, err, event)
	}
}

/*
TestRole_Privileges documents which roles act as trainers.
*/
func TestRole_Privileges(t *testing.T) {
	assert.True(t, role.Trainer.HasTrainerPrivileges())
	assert.False(t, role.ReportedTrainer.HasTrainerPrivileges())
	assert.False(t, role.User.HasTrainerPrivileges())
	assert.False(t, role.Admin.HasTrainerPrivileges())

	assert.True(t, role.Reported.IsModerated())
	assert.True(t, role.ReportedTrainer.IsModerated())
	assert.False(t, role.Trainer.IsModerated())

	assert.True(t, role.ReducesPrivileges(role.EventTrainerCancelled))
	assert.True(t, role.ReducesPrivileges(role.EventReported))
	assert.False(t, role.ReducesPrivileges(role.EventPromotionApproved))
}

/*
TestParse accepts only stored role names.
*/
func TestParse(t *testing.T) {
	for _, r := range role.All {
		got, err := role.Parse(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := role.Parse("member")
	assert.Error(t, err)
}
