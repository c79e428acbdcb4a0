// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Authentication Constraints

const (
	// socialPasswordBytes is the entropy of the unusable password given to social sign-ups.
	socialPasswordBytes = 32

	// maxHandleAttempts bounds the search for a free username during social sign-up.
	maxHandleAttempts = 5

	// handleSuffixBytes is the random suffix appended when a derived username is taken.
	handleSuffixBytes = 3

	// stateBytes is the entropy of the social login CSRF state.
	stateBytes = 16
)

// # Status Messages

// Plain-text results surfaced to clients by the HTTP adapter.
const (
	MessageSignedUp        = "Sign-up completed"
	MessageLoggedIn        = "Login completed"
	MessageLoggedOut       = "Logout completed"
	MessageRefreshed       = "Tokens renewed"
	MessageAccountDeleted  = "Account deleted"
	MessagePasswordReset   = "A temporary password has been issued"
	MessageAdminRegistered = "Administrator registered"
)
