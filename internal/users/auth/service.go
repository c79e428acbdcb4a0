// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/platform/validate"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/canon"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the token operations the session service relies on.
//
// [sec.TokenService] satisfies it.
type TokenProvider interface {
	IssuePair(identity sec.Identity) (sec.TokenPair, error)
	VerifyType(tokenString string, want sec.TokenType) (*sec.AuthClaims, error)
	ExtractSubject(tokenString string) (string, error)
	RefreshTTL() time.Duration
}

// Login methods reported to metrics.
const (
	methodPassword = "password"
	methodSocial   = "social"
)

// LoginResult is a freshly established session.
type LoginResult struct {
	Principal Principal
	Tokens    sec.TokenPair
}

// Service implements sign-up, login, renewal, logout and account recovery.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, credential
// checks or session rotation must be reviewed by the security team.
type Service struct {
	users    UserRepository
	admins   AdminRepository
	sessions SessionStore
	tokens   TokenProvider
	enroller *AdminEnroller
	metrics  *metrics.Metrics
	now      func() time.Time
}

// ServiceOption customises a [Service].
type ServiceOption func(*Service)

// WithMetrics records login and renewal outcomes.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(service *Service) { service.metrics = m }
}

// WithServiceClock replaces the wall clock used for session timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(service *Service) { service.now = now }
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	users UserRepository,
	admins AdminRepository,
	sessions SessionStore,
	tokens TokenProvider,
	enroller *AdminEnroller,
	opts ...ServiceOption,
) *Service {
	service := &Service{
		users:    users,
		admins:   admins,
		sessions: sessions,
		tokens:   tokens,
		enroller: enroller,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// # Registration Flow

// SignUpInput holds the data required to enroll a new member.
type SignUpInput struct {
	Username string
	Email    string
	Password string
	Nickname string
}

/*
SignUp validates, hashes and persists a brand new member account.

Parameters:
  - context: context.Context
  - input: SignUpInput

Returns:
  - *User: Created entity with role USER
  - error: Validation, Conflict (identity exists) or storage errors
*/
func (service *Service) SignUp(context context.Context, input SignUpInput) (*User, error) {
	username := canon.Username(input.Username)
	email := canon.Email(input.Email)

	validator := &validate.Validator{}
	accountRules(validator, username, email, input.Password)
	validator.MaxLen(FieldNickname, input.Nickname, validate.NicknameMaxLen)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := ensureAvailable(context, service.users.FindByUsername, username, "Username is already taken"); err != nil {
		return nil, err
	}
	if err := ensureAvailable(context, service.users.FindByEmail, email, "Email is already registered"); err != nil {
		return nil, err
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = username
	}

	currentTime := service.now()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role.User,
		Nickname:     nickname,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	// The unique constraints still decide a race between two sign-ups.
	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("user_signed_up", slog.String("user_id", user.ID))
	return user, nil
}

// AdminSignUpInput holds the data required to enroll an administrator.
type AdminSignUpInput struct {
	Username   string
	Email      string
	Password   string
	Passphrase string
}

/*
AdminSignUp registers an administrator after checking the enrollment passphrase.

Returns:
  - *Admin: Created entity
  - error: apperr.Forbidden on a wrong passphrase, Validation or Conflict otherwise
*/
func (service *Service) AdminSignUp(context context.Context, input AdminSignUpInput) (*Admin, error) {
	if err := service.enroller.Verify(input.Passphrase); err != nil {
		ctxutil.GetLogger(context).Warn("admin_enrollment_rejected")
		return nil, err
	}

	username := canon.Username(input.Username)
	email := canon.Email(input.Email)

	validator := &validate.Validator{}
	accountRules(validator, username, email, input.Password)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := ensureAvailable(context, service.admins.FindByUsername, username, "Username is already taken"); err != nil {
		return nil, err
	}
	if err := ensureAvailable(context, service.admins.FindByEmail, email, "Email is already registered"); err != nil {
		return nil, err
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	currentTime := service.now()
	admin := &Admin{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	if err := service.admins.Create(context, admin); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).Info("admin_registered", slog.String("admin_id", admin.ID))
	return admin, nil
}

// # Authentication Flow

/*
Login verifies member credentials and establishes a session.

An unknown username and a wrong password fail identically with
[apperr.ErrInvalidCredentials], and both pay for one bcrypt comparison.

Parameters:
  - context: context.Context
  - username: string
  - password: string

Returns:
  - *LoginResult: The principal and its token pair
  - error: InvalidCredentials or internal failures
*/
func (service *Service) Login(context context.Context, username, password string) (*LoginResult, error) {
	user, err := service.users.FindByUsername(context, canon.Username(username))
	result, err := service.passwordLogin(context, principalOrNil(user, err), err, password)
	service.metrics.ObserveLogin(string(KindUser), methodPassword, err)
	return result, err
}

// AdminLogin is [Service.Login] for administrator accounts.
func (service *Service) AdminLogin(context context.Context, username, password string) (*LoginResult, error) {
	admin, err := service.admins.FindByUsername(context, canon.Username(username))
	result, err := service.passwordLogin(context, principalOrNil(admin, err), err, password)
	service.metrics.ObserveLogin(string(KindAdmin), methodPassword, err)
	return result, err
}

// credentialHolder is a principal that carries a password hash.
type credentialHolder interface {
	Principal
	passwordHash() string
}

func (u *User) passwordHash() string  { return u.PasswordHash }
func (a *Admin) passwordHash() string { return a.PasswordHash }

func principalOrNil[T credentialHolder](p T, err error) credentialHolder {
	if err != nil {
		return nil
	}
	return p
}

func (service *Service) passwordLogin(context context.Context, principal credentialHolder, lookupErr error, password string) (*LoginResult, error) {
	if lookupErr != nil && !errors.Is(lookupErr, apperr.ErrNotFound) {
		return nil, lookupErr
	}

	if principal == nil {
		// Burn the same work as a real comparison so response time does not reveal the username.
		sec.CheckPasswordHash(password, dummyHash())
		return nil, apperr.InvalidCredentials()
	}

	if !sec.CheckPasswordHash(password, principal.passwordHash()) {
		return nil, apperr.InvalidCredentials()
	}

	return service.establish(context, principal)
}

// SocialIdentity is the verified output of a social login provider.
type SocialIdentity struct {
	Provider string
	Subject  string
	Email    string

	// EmailVerified is true only when the provider asserted email_verified.
	EmailVerified bool
}

// ExternalID is the stored link between an account and the provider subject.
func (identity SocialIdentity) ExternalID() string {
	return identity.Provider + "|" + identity.Subject
}

/*
SocialLogin establishes a session for an identity verified by a social provider.

Resolution order:
 1. An account already linked to the provider subject.
 2. An account with the same email, which gets linked.
 3. A new USER account with a derived username and an unusable random password.

Once resolved, the session is issued exactly like a password login.
*/
func (service *Service) SocialLogin(context context.Context, identity SocialIdentity) (*LoginResult, error) {
	result, err := service.socialLogin(context, identity)
	service.metrics.ObserveLogin(string(KindUser), methodSocial, err)
	return result, err
}

func (service *Service) socialLogin(context context.Context, identity SocialIdentity) (*LoginResult, error) {
	if identity.Provider == "" || identity.Subject == "" {
		return nil, apperr.Unauthorized("Social identity is incomplete")
	}

	email := canon.Email(identity.Email)
	if err := (&validate.Validator{}).Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return nil, err
	}

	externalID := identity.ExternalID()

	user, err := service.users.FindByExternalID(context, externalID)
	if err == nil {
		return service.establish(context, user)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	user, err = service.users.FindByEmail(context, email)
	switch {
	case err == nil:
		if !identity.EmailVerified {
			return nil, apperr.Unauthorized("Social account email must be verified to link an existing account")
		}
		if err := service.users.LinkExternalID(context, user.ID, externalID); err != nil {
			return nil, err
		}
		user.ExternalID = externalID
		ctxutil.GetLogger(context).Info("social_account_linked",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
		return service.establish(context, user)

	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	user, err = service.provisionSocialUser(context, email, externalID)
	if err != nil {
		return nil, err
	}

	return service.establish(context, user)
}

// provisionSocialUser creates an account for an unseen social identity.
func (service *Service) provisionSocialUser(context context.Context, email, externalID string) (*User, error) {
	password, err := sec.GenerateSecureToken(socialPasswordBytes)
	if err != nil {
		return nil, fmt.Errorf("auth_service_social_password_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	base := canon.HandleFromEmail(email)

	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		username, err := candidateHandle(base, attempt)
		if err != nil {
			return nil, err
		}

		currentTime := service.now()
		user := &User{
			ID:           uuid.New(),
			Username:     username,
			Email:        email,
			PasswordHash: hashedPassword,
			Role:         role.User,
			Nickname:     username,
			ExternalID:   externalID,
			CreatedAt:    currentTime,
			UpdatedAt:    currentTime,
		}

		err = service.users.Create(context, user)
		if err == nil {
			ctxutil.GetLogger(context).Info("social_user_provisioned", slog.String("user_id", user.ID))
			return user, nil
		}

		// Only a taken username is worth another attempt.
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
	}

	return nil, apperr.Conflict("Could not derive a free username")
}

// candidateHandle returns the username tried on the given attempt.
//
// The first attempt uses the bare handle when it is long enough; later ones
// append a random hex suffix.
func candidateHandle(base string, attempt int) (string, error) {
	suffixLen := 1 + 2*handleSuffixBytes
	if len(base) > validate.UsernameMaxLen-suffixLen {
		base = strings.TrimRight(base[:validate.UsernameMaxLen-suffixLen], "._-")
	}

	if attempt == 0 && len(base) >= validate.UsernameMinLen {
		return base, nil
	}

	suffix, err := sec.RandomHex(handleSuffixBytes)
	if err != nil {
		return "", err
	}

	if base == "" {
		return "member_" + suffix, nil
	}
	return base + "_" + suffix, nil
}

// # Session Lifecycle

// establish issues a token pair and makes its refresh token the principal's only live session.
func (service *Service) establish(context context.Context, principal Principal) (*LoginResult, error) {
	pair, err := service.tokens.IssuePair(IdentityOf(principal))
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	if err := service.sessions.Save(context, service.newSession(principal, pair)); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("login_succeeded",
		slog.String("principal_id", principal.PrincipalID()),
		slog.String("kind", string(principal.PrincipalKind())),
	)

	return &LoginResult{Principal: principal, Tokens: pair}, nil
}

func (service *Service) newSession(principal Principal, pair sec.TokenPair) RefreshSession {
	currentTime := service.now()
	return RefreshSession{
		Principal:   RefOf(principal),
		TokenDigest: sec.HashToken(sec.StripBearer(pair.RefreshToken)),
		ExpiresAt:   currentTime.Add(service.tokens.RefreshTTL()),
		CreatedAt:   currentTime,
	}
}

/*
Refresh renews a session from its refresh token.

Description: The refresh token must verify, be the principal's live session and,
when an access token is supplied, belong to the same subject. The principal is
reloaded so a role changed since login shows up in the new tokens. The old
session is superseded; reusing its refresh token fails with ErrInvalidSession.

Parameters:
  - context: context.Context
  - accessToken: string (may be expired or empty)
  - refreshToken: string

Returns:
  - *LoginResult: The principal and its new token pair
  - error: Token errors, apperr.ErrInvalidSession
*/
func (service *Service) Refresh(context context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	result, err := service.refresh(context, accessToken, refreshToken)
	service.metrics.ObserveRefresh(err)
	return result, err
}

func (service *Service) refresh(context context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	claims, err := service.tokens.VerifyType(refreshToken, sec.TokenRefresh)
	if err != nil {
		return nil, err
	}

	digest := sec.HashToken(sec.StripBearer(refreshToken))

	session, err := service.sessions.FindByValue(context, digest)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.InvalidSession()
	}
	if err != nil {
		return nil, err
	}

	ref := PrincipalRef{Kind: Kind(claims.Kind), ID: claims.Subject}
	if session.Principal != ref || !service.now().Before(session.ExpiresAt) {
		return nil, apperr.InvalidSession()
	}

	if strings.TrimSpace(accessToken) != "" {
		subject, err := service.tokens.ExtractSubject(accessToken)
		if err != nil {
			return nil, err
		}
		if subject != claims.Subject {
			return nil, apperr.InvalidSession()
		}
	}

	principal, err := service.loadPrincipal(context, ref)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.InvalidSession()
	}
	if err != nil {
		return nil, err
	}

	pair, err := service.tokens.IssuePair(IdentityOf(principal))
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	if err := service.sessions.Rotate(context, digest, service.newSession(principal, pair)); err != nil {
		return nil, err
	}

	return &LoginResult{Principal: principal, Tokens: pair}, nil
}

/*
Logout invalidates the principal's refresh session.

Outstanding access tokens stay valid until they expire. Logging out twice is
not an error.
*/
func (service *Service) Logout(context context.Context, principal PrincipalRef) error {
	if err := service.sessions.Invalidate(context, principal); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("logout_succeeded", slog.String("principal_id", principal.ID))
	return nil
}

// InvalidateSession drops the refresh session of a member, for instance after a demotion.
func (service *Service) InvalidateSession(context context.Context, userID string) error {
	return service.sessions.Invalidate(context, PrincipalRef{Kind: KindUser, ID: userID})
}

// # Account Management

// DeleteAccount removes a member account after re-checking its password.
func (service *Service) DeleteAccount(context context.Context, userID, password string) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		return apperr.InvalidCredentials()
	}

	if err := service.users.Delete(context, user.ID); err != nil {
		return err
	}

	if err := service.sessions.Invalidate(context, RefOf(user)); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("account_deleted", slog.String("user_id", user.ID))
	return nil
}

/*
FindUsername returns the username registered with email.

Parameters:
  - context: context.Context
  - kind: KindUser or KindAdmin
  - email: string

Returns:
  - string: The canonical username
  - error: apperr.NotFound when no account uses the email
*/
func (service *Service) FindUsername(context context.Context, kind Kind, email string) (string, error) {
	email = canon.Email(email)
	if err := (&validate.Validator{}).Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return "", err
	}

	switch kind {
	case KindAdmin:
		admin, err := service.admins.FindByEmail(context, email)
		if err != nil {
			return "", err
		}
		return admin.Username, nil
	default:
		user, err := service.users.FindByEmail(context, email)
		if err != nil {
			return "", err
		}
		return user.Username, nil
	}
}

/*
ResetPassword replaces the password of the account matching username and email.

The new password is random and returned to the caller. The account's refresh
session is dropped so other devices have to log in again.

Returns:
  - string: The temporary password
  - error: apperr.NotFound when username and email do not belong together
*/
func (service *Service) ResetPassword(context context.Context, kind Kind, username, email string) (string, error) {
	username = canon.Username(username)
	email = canon.Email(email)

	validator := &validate.Validator{}
	validator.Required(FieldUsername, username).Required(FieldEmail, email)
	if err := validator.Err(); err != nil {
		return "", err
	}

	var (
		principal Principal
		update    passwordUpdater
		owner     string
	)

	switch kind {
	case KindAdmin:
		admin, err := service.admins.FindByUsername(context, username)
		if err != nil {
			return "", err
		}
		principal, update, owner = admin, service.admins.UpdatePassword, admin.Email
	default:
		user, err := service.users.FindByUsername(context, username)
		if err != nil {
			return "", err
		}
		principal, update, owner = user, service.users.UpdatePassword, user.Email
	}

	// A mismatch is reported as absence so the pair cannot be probed.
	if owner != email {
		return "", apperr.NotFound("Account")
	}

	temporary, err := sec.TempPassword()
	if err != nil {
		return "", fmt.Errorf("auth_service_temp_password_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(temporary)
	if err != nil {
		return "", fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := update(context, principal.PrincipalID(), hashedPassword); err != nil {
		return "", err
	}

	if err := service.sessions.Invalidate(context, RefOf(principal)); err != nil {
		return "", fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("password_reset", slog.String("principal_id", principal.PrincipalID()))
	return temporary, nil
}

// # Helpers

// passwordUpdater stores a new hash for the principal id.
type passwordUpdater func(context context.Context, id, passwordHash string) error

// loadPrincipal fetches the current state of the referenced principal.
func (service *Service) loadPrincipal(context context.Context, ref PrincipalRef) (Principal, error) {
	switch ref.Kind {
	case KindUser:
		return service.users.FindByID(context, ref.ID)
	case KindAdmin:
		return service.admins.FindByID(context, ref.ID)
	default:
		return nil, apperr.NotFound("Account")
	}
}

// accountRules applies the shared username, email and password constraints.
func accountRules(validator *validate.Validator, username, email, password string) {
	validator.
		Required(FieldUsername, username).
		MinLen(FieldUsername, username, validate.UsernameMinLen).
		MaxLen(FieldUsername, username, validate.UsernameMaxLen).
		Username(FieldUsername, username).
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Password(FieldPassword, password)
}

// ensureAvailable fails with Conflict when find locates an account for value.
func ensureAvailable[T any](context context.Context, find func(context.Context, string) (T, error), value, message string) error {
	_, err := find(context, value)
	switch {
	case err == nil:
		return apperr.Conflict(message)
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}

// dummyHash is compared against when the username does not exist.
var dummyHash = sync.OnceValue(func() string {
	hash, err := sec.HashPassword("fitclub-unknown-account")
	if err != nil {
		panic(fmt.Sprintf("auth: failed to prepare dummy hash: %v", err))
	}
	return hash
})
