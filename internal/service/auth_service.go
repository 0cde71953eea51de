package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	ErrSignupNotVerified  = fmt.Errorf("%w: %w", domain.ErrForbidden, auth.ErrEmailNotVerified)
)

type SignupInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// StaffInput creates back-office accounts.
type StaffInput struct {
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Phone    string        `json:"phone"`
	Password string        `json:"password"`
	Roles    []domain.Role `json:"roles"`
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type AuthService struct {
	users     repository.UserRepository
	otps      OTPStore
	mailer    auth.Mailer
	tokens    *auth.TokenManager
	denylist  TokenDenylist
	bus       *events.Bus
	otpLength int
	log       *slog.Logger
}

type AuthDeps struct {
	Users     repository.UserRepository
	OTPs      OTPStore
	Mailer    auth.Mailer
	Tokens    *auth.TokenManager
	Denylist  TokenDenylist
	Bus       *events.Bus
	OTPLength int
	Log       *slog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.OTPLength < 4 {
		d.OTPLength = 6
	}
	return &AuthService{
		users:     d.Users,
		otps:      d.OTPs,
		mailer:    d.Mailer,
		tokens:    d.Tokens,
		denylist:  d.Denylist,
		bus:       d.Bus,
		otpLength: d.OTPLength,
		log:       d.Log,
	}
}

// SendOTP mails a fresh code to an address that is not registered yet.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return domain.Invalid("email is malformed")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return err
	}

	code, err := auth.GenerateOTP(s.otpLength)
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, email, code); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "otp sent", "email", email)
	return nil
}

// VerifyOTP checks the code. Too many wrong codes keep returning
// auth.ErrOTPTooManyAttempts until the counter expires.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return domain.Invalid("email and otp are required")
	}
	err := s.otps.Verify(ctx, email, strings.TrimSpace(code))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrOTPInvalid):
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	default:
		return err
	}
}

func (s *AuthService) CompleteSignup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	verified, err := s.otps.IsVerified(ctx, email)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrSignupNotVerified
	}
	if strings.TrimSpace(in.Phone) == "" {
		return nil, domain.Invalid("phone is required")
	}

	u, err := s.newUser(ctx, email, in.Name, in.Phone, in.Password, []domain.Role{domain.RoleUser})
	if err != nil {
		return nil, err
	}
	u.EmailVerified = true
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if err := s.otps.ClearVerified(ctx, email); err != nil {
		s.log.WarnContext(ctx, "failed to clear verified marker", "email", email, "error", err)
	}

	res, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.publish(events.TopicUserSignedUp, u.ID)
	s.log.InfoContext(ctx, "user signed up", "user_id", u.ID)
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.publish(events.TopicSessionLogin, u.ID)
	return res, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if err := s.denylist.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return err
	}
	s.publish(events.TopicSessionLogout, session.UserID)
	return nil
}

// Authenticate turns a bearer token into a session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, session.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}
	return session, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// CreateStaff registers an account with back-office roles.
func (s *AuthService) CreateStaff(ctx context.Context, in StaffInput) (*domain.User, error) {
	if len(in.Roles) == 0 {
		return nil, domain.Invalid("at least one role is required")
	}
	for _, r := range in.Roles {
		switch r {
		case domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleWorker:
		default:
			return nil, domain.Invalid("unknown role %q", r)
		}
	}
	email := domain.NormalizeEmail(in.Email)
	u, err := s.newUser(ctx, email, in.Name, in.Phone, in.Password, in.Roles)
	if err != nil {
		return nil, err
	}
	u.EmailVerified = true
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "staff account created", "user_id", u.ID, "roles", in.Roles)
	return u, nil
}

// EnsureSuperAdmin creates the bootstrap account on an empty install. An
// existing account with that email is left alone.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	_, err = s.CreateStaff(ctx, StaffInput{
		Email:    email,
		Name:     "Administrator",
		Password: password,
		Roles:    []domain.Role{domain.RoleSuperAdmin},
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		return nil
	}
	return err
}

func (s *AuthService) newUser(ctx context.Context, email, name, phone, password string, roles []domain.Role) (*domain.User, error) {
	if !domain.ValidEmail(email) {
		return nil, domain.Invalid("email is malformed")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	if phone != "" && !domain.ValidPhone(phone) {
		return nil, domain.Invalid("phone must be 10 to 15 digits")
	}
	if len(password) < domain.MinPasswordLength {
		return nil, domain.Invalid("password must be at least %d characters", domain.MinPasswordLength)
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Phone:        phone,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return repository.ErrEmailTaken
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *AuthService) publish(topic, userID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Topic: topic, UserID: userID})
}
