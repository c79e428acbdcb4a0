// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package role implements the role state machine of a Fitclub account.

Every principal holds exactly one [Role]. Ordinary accounts move between roles
only through [Transition], which consults a single table of legal
(from, event) pairs. Administrator accounts are created through a separate
path and have no entries in the table, so they never transition.

# States

	USER    --promotion_approved--> TRAINER --trainer_cancelled--> USER
	USER    --reported--> REPORTED          --report_cleared--> USER
	TRAINER --reported--> REPORTED_TRAINER  --report_cleared--> TRAINER

Adding a state or transition is an addition to the table, not a new conditional.
*/
package role

import (
	"fmt"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
)

// # Roles

// Role is the authorization state of a principal.
type Role string

const (
	// User is the default role for registered members.
	User Role = "USER"

	// Trainer is granted by approving a promotion request.
	Trainer Role = "TRAINER"

	// Admin belongs to administrator accounts only.
	Admin Role = "ADMIN"

	// Reported mirrors User while the account is under moderation.
	Reported Role = "REPORTED"

	// ReportedTrainer mirrors Trainer while the account is under moderation.
	ReportedTrainer Role = "REPORTED_TRAINER"
)

// All lists every role in declaration order.
var All = []Role{User, Trainer, Admin, Reported, ReportedTrainer}

// Parse converts a stored or transported string into a [Role].
func Parse(value string) (Role, error) {
	candidate := Role(value)
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("role: unknown role %q", value)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case User, Trainer, Admin, Reported, ReportedTrainer:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// HasTrainerPrivileges reports whether r may act as a trainer.
//
// A reported trainer keeps the memory of being a trainer (see [EventReportCleared])
// but loses trainer privileges until moderation is cleared.
func (r Role) HasTrainerPrivileges() bool {
	return r == Trainer
}

// IsModerated reports whether r is one of the reported mirror states.
func (r Role) IsModerated() bool {
	return r == Reported || r == ReportedTrainer
}

// # Events

// Event is something that happens to an account and may change its role.
type Event string

const (
	EventPromotionRequested Event = "promotion_requested"
	EventPromotionWithdrawn Event = "promotion_withdrawn"
	EventPromotionApproved  Event = "promotion_approved"
	EventTrainerCancelled   Event = "trainer_cancelled"
	EventReported           Event = "reported"
	EventReportCleared      Event = "report_cleared"
)

// # Transition Table

type edge struct {
	from  Role
	event Event
}

// transitions is the complete set of legal role changes.
var transitions = map[edge]Role{
	{User, EventPromotionRequested}:       User,
	{User, EventPromotionWithdrawn}:       User,
	{User, EventPromotionApproved}:        Trainer,
	{Trainer, EventTrainerCancelled}:      User,
	{User, EventReported}:                 Reported,
	{Trainer, EventReported}:              ReportedTrainer,
	{Reported, EventReportCleared}:        User,
	{ReportedTrainer, EventReportCleared}: Trainer,
}

// reducesPrivileges marks events after which outstanding sessions must be dropped.
var reducesPrivileges = map[Event]bool{
	EventTrainerCancelled: true,
	EventReported:         true,
}

// Transition returns the role reached from `from` when `event` happens.
//
// It fails with [apperr.ErrNotTrainer] when a trainer-only event hits another
// role, and with [apperr.ErrIllegalTransition] for any other missing edge.
func Transition(from Role, event Event) (Role, error) {
	if to, ok := transitions[edge{from, event}]; ok {
		return to, nil
	}

	if event == EventTrainerCancelled {
		return "", apperr.NotTrainer()
	}

	return "", apperr.IllegalTransition(fmt.Sprintf("Role %s does not allow %s", from, event))
}

// Allowed reports whether event may happen to an account in role from.
func Allowed(from Role, event Event) bool {
	_, ok := transitions[edge{from, event}]
	return ok
}

// ReducesPrivileges reports whether event takes privileges away from the account.
func ReducesPrivileges(event Event) bool {
	return reducesPrivileges[event]
}
