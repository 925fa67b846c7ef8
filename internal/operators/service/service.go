// Package service implements operator authentication and settings management.
// An operator exchanges a long-lived API key for a short-lived bearer token;
// every other endpoint runs under that token.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"autodial_backend/internal/operators/password"
	"autodial_backend/internal/operators/repository"
	"autodial_backend/platform/apperr"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType        = "access"
	msgInvalidCredentials  = "invalid operator credentials"
	apiKeyBytes            = 32
	maxSettingsConcurrency = 50
)

// Service provides operator authentication and settings operations.
type Service struct {
	repo *repository.Repository
	cfg  config.OperatorAuthConfig
	log  *logger.Logger
	now  func() time.Time
}

// New creates a new operator service.
func New(repo *repository.Repository, cfg config.OperatorAuthConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// Token is a minted access token with its lifetime in seconds.
type Token struct {
	AccessToken string
	ExpiresIn   int64
}

// ExchangeAPIKey verifies an operator's API key and mints a bearer token.
// Lookup misses and key mismatches collapse into one unauthorized error so
// the endpoint does not leak which operator names exist.
func (s *Service) ExchangeAPIKey(ctx context.Context, name, apiKey string) (Token, error) {
	op, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Token{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return Token{}, err
	}

	if err := password.Compare(op.APIKeyHash, apiKey); err != nil {
		s.log.Warn("operator token exchange rejected", "operator", op.Name)
		return Token{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	ttl := s.cfg.GetAccessTokenTTL()
	signed, err := signAccessToken(op.ID, ttl, s.cfg.GetJWTAccessSecret(), s.now())
	if err != nil {
		return Token{}, apperr.Wrap(apperr.KindInternal, "failed to sign access token", err)
	}

	s.log.Info("operator token issued", "operator_id", op.ID, "operator", op.Name)
	return Token{AccessToken: signed, ExpiresIn: int64(ttl / time.Second)}, nil
}

// Get returns the operator's account record with its dial settings.
func (s *Service) Get(ctx context.Context, operatorID uuid.UUID) (repository.Operator, repository.Settings, error) {
	op, err := s.repo.GetByID(ctx, operatorID)
	if err != nil {
		return repository.Operator{}, repository.Settings{}, err
	}
	settings, err := s.settingsOrEmpty(ctx, operatorID)
	if err != nil {
		return repository.Operator{}, repository.Settings{}, err
	}
	return op, settings, nil
}

// UpdateSettingsInput carries a partial settings update; nil fields keep
// their current values.
type UpdateSettingsInput struct {
	CallerID                *string
	Trunk                   *string
	RouteName               *string
	CallConcurrency         *int
	NotificationChatID      *int64
	IndividualNotifications *bool
}

// UpdateSettings merges the provided fields onto the operator's current dial
// settings. Route names are not validated here; campaign creation checks them
// against the route table, which keeps one enforcement point.
func (s *Service) UpdateSettings(ctx context.Context, operatorID uuid.UUID, input UpdateSettingsInput) (repository.Operator, repository.Settings, error) {
	op, err := s.repo.GetByID(ctx, operatorID)
	if err != nil {
		return repository.Operator{}, repository.Settings{}, err
	}
	settings, err := s.settingsOrEmpty(ctx, operatorID)
	if err != nil {
		return repository.Operator{}, repository.Settings{}, err
	}

	chatID := op.ChatID
	if input.CallerID != nil {
		settings.CallerID = *input.CallerID
	}
	if input.Trunk != nil {
		settings.Trunk = *input.Trunk
	}
	if input.RouteName != nil {
		settings.RouteName = *input.RouteName
	}
	if input.CallConcurrency != nil {
		if *input.CallConcurrency < 1 || *input.CallConcurrency > maxSettingsConcurrency {
			return repository.Operator{}, repository.Settings{}, apperr.Validation("callConcurrency must be between 1 and 50")
		}
		settings.CallConcurrency = *input.CallConcurrency
	}
	if input.NotificationChatID != nil {
		chatID = *input.NotificationChatID
	}
	if input.IndividualNotifications != nil {
		settings.IndividualNotifications = *input.IndividualNotifications
	}

	if err := s.repo.UpdateSettings(ctx, operatorID, chatID, settings); err != nil {
		return repository.Operator{}, repository.Settings{}, err
	}
	s.log.Info("operator settings updated", "operator_id", operatorID)
	return s.Get(ctx, operatorID)
}

// RotateAPIKey mints a fresh API key for the operator and stores only its
// hash. The plaintext key is returned exactly once.
func (s *Service) RotateAPIKey(ctx context.Context, operatorID uuid.UUID) (string, error) {
	apiKey, err := newAPIKey()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to generate api key", err)
	}
	hash, err := password.Hash(apiKey)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to hash api key", err)
	}
	if err := s.repo.UpdateAPIKeyHash(ctx, operatorID, hash); err != nil {
		return "", err
	}
	s.log.Info("operator api key rotated", "operator_id", operatorID)
	return apiKey, nil
}

// EnsureBootstrap creates the seed operator named in the environment if it
// does not exist yet. An existing operator is left untouched, including its
// key hash, so rotated keys survive restarts.
func (s *Service) EnsureBootstrap(ctx context.Context, name, apiKey string) error {
	if name == "" || apiKey == "" {
		return nil
	}

	_, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	hash, err := password.Hash(apiKey)
	if err != nil {
		return err
	}
	op, err := s.repo.Create(ctx, name, hash)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			// Another instance won the race; the operator exists now.
			return nil
		}
		return err
	}
	s.log.Info("bootstrap operator created", "operator_id", op.ID, "operator", op.Name)
	return nil
}

// settingsOrEmpty tolerates a missing settings row: Create always writes one,
// but a manually provisioned operator without it still gets the global
// defaults instead of an error.
func (s *Service) settingsOrEmpty(ctx context.Context, operatorID uuid.UUID) (repository.Settings, error) {
	settings, err := s.repo.GetSettings(ctx, operatorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return repository.Settings{}, nil
		}
		return repository.Settings{}, err
	}
	return settings, nil
}

// signAccessToken mints the HS256 bearer token the auth middleware validates:
// sub carries the operator id, type must be "access".
func signAccessToken(operatorID uuid.UUID, ttl time.Duration, secret string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  operatorID.String(),
		"type": accessTokenType,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(secret))
}

func newAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
