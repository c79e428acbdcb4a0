// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements member and administrator identity for Fitclub.

It defines the account entities, the credential and refresh session contracts,
and the session service that turns verified credentials into token pairs.

# Architecture

  - Entities: [User] and [Admin], both satisfying [Principal].
  - Repositories: [UserRepository], [AdminRepository] and [SessionStore], with
    Postgres and Redis implementations in this package.
  - Service: login, renewal, logout and account recovery.
  - Handler: the thin HTTP adapter that moves tokens in and out of headers and cookies.
*/
package auth

import (
	"time"

	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/users/role"
)

// # Principals

// Kind is the account type of a principal.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

// Principal is any authenticated entity, member or administrator.
type Principal interface {
	PrincipalID() string
	PrincipalKind() Kind
	Name() string
	CurrentRole() role.Role
}

// PrincipalRef identifies a principal without loading it.
type PrincipalRef struct {
	Kind Kind
	ID   string
}

// RefOf returns the reference of p.
func RefOf(p Principal) PrincipalRef {
	return PrincipalRef{Kind: p.PrincipalKind(), ID: p.PrincipalID()}
}

// IdentityOf returns the token identity of p.
func IdentityOf(p Principal) sec.Identity {
	return sec.Identity{
		Subject:  p.PrincipalID(),
		Username: p.Name(),
		Role:     string(p.CurrentRole()),
		Kind:     string(p.PrincipalKind()),
	}
}

// # Domain Entities

// User represents a registered member of the Fitclub platform.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	Role         role.Role `json:"role"`
	Nickname     string    `json:"nickname"`

	// Introduction is the trainer profile text, copied from the approved promotion request.
	Introduction string `json:"introduction,omitempty"`

	// ExternalID links the account to a social login subject ("<provider>|<subject>").
	ExternalID string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) PrincipalID() string    { return u.ID }
func (u *User) PrincipalKind() Kind    { return KindUser }
func (u *User) Name() string           { return u.Username }
func (u *User) CurrentRole() role.Role { return u.Role }

// Admin represents an administrator account. Its role is always ADMIN.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Admin) PrincipalID() string    { return a.ID }
func (a *Admin) PrincipalKind() Kind    { return KindAdmin }
func (a *Admin) Name() string           { return a.Username }
func (a *Admin) CurrentRole() role.Role { return role.Admin }

// # Sessions

// RefreshSession is the durable half of a login: one per principal.
type RefreshSession struct {
	Principal PrincipalRef

	// TokenDigest is [sec.HashToken] of the refresh token without its "Bearer " prefix.
	TokenDigest string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// # Field Identifiers

// Field names for validation errors in the authentication domain.
const (
	FieldUsername   = "username"
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldNickname   = "nickname"
	FieldPassphrase = "passphrase"
	FieldToken      = "refresh_token"
)
