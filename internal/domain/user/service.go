package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meditrack/meditrack/internal/platform/auth"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidCredentials covers both unknown emails and wrong
	// passwords, so login failures do not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
)

type Service struct {
	repo   Repository
	tokens *auth.TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	Age             *int    `json:"age,omitempty"`
	MedicalHistory  *string `json:"medical_history,omitempty"`
	GuardianName    *string `json:"guardian_name,omitempty"`
	GuardianContact *string `json:"guardian_contact,omitempty"`
}

// Register creates an account and returns the new user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		return nil, fmt.Errorf("%w: invalid age", ErrValidation)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:            in.Name,
		Email:           in.Email,
		PasswordHash:    hash,
		Age:             in.Age,
		MedicalHistory:  in.MedicalHistory,
		GuardianName:    in.GuardianName,
		GuardianContact: in.GuardianContact,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Msg("user registered")
	return u, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Name)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// GetProfile returns the caller's account.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ProfileInput carries a partial profile update; nil fields are unchanged.
type ProfileInput struct {
	Name            *string `json:"name,omitempty"`
	Age             *int    `json:"age,omitempty"`
	MedicalHistory  *string `json:"medical_history,omitempty"`
	GuardianName    *string `json:"guardian_name,omitempty"`
	GuardianContact *string `json:"guardian_contact,omitempty"`
}

// UpdateProfile applies a partial edit to the caller's account.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		u.Name = *in.Name
	}
	if in.Age != nil {
		if *in.Age < 0 || *in.Age > 150 {
			return nil, fmt.Errorf("%w: invalid age", ErrValidation)
		}
		u.Age = in.Age
	}
	if in.MedicalHistory != nil {
		u.MedicalHistory = in.MedicalHistory
	}
	if in.GuardianName != nil {
		u.GuardianName = in.GuardianName
	}
	if in.GuardianContact != nil {
		u.GuardianContact = in.GuardianContact
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
