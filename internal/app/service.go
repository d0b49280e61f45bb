package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultLogo is stored on first run until an admin uploads their own.
const DefaultLogo = "/assets/logo.png"

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// AdminSeed describes the account created on first run. Empty Username skips
// seeding.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// Service is the application layer. It is the only component that
// references more than one domain port.
type Service struct {
	users  domain.UserRepository
	kv     domain.KeyValueStore
	hasher passwordHasher
	clock  clockwork.Clock
}

func NewService(users domain.UserRepository, kv domain.KeyValueStore, hasher passwordHasher, clock clockwork.Clock) *Service {
	return &Service{
		users:  users,
		kv:     kv,
		hasher: hasher,
		clock:  clock,
	}
}

// Init prepares a fresh database: default settings, the site name key and
// the first admin account. Safe to run on every start.
func (s *Service) Init(ctx context.Context, seed AdminSeed) error {
	if err := s.ensureDefaults(ctx); err != nil {
		return err
	}
	return s.seedAdmin(ctx, seed)
}

func (s *Service) ensureDefaults(ctx context.Context) error {
	exists, err := s.kv.Exists(ctx, domain.KeySettings)
	if err != nil {
		return fmt.Errorf("failed to check settings: %w", err)
	}
	if !exists {
		defaults := domain.Settings{Name: domain.DefaultSiteName, Logo: DefaultLogo}
		if err := s.kv.Set(ctx, domain.KeySettings, defaults); err != nil {
			return fmt.Errorf("failed to store default settings: %w", err)
		}
		slog.Info("Stored default settings")
	}

	exists, err = s.kv.Exists(ctx, domain.KeySiteName)
	if err != nil {
		return fmt.Errorf("failed to check site name: %w", err)
	}
	if !exists {
		if err := s.kv.Set(ctx, domain.KeySiteName, domain.DefaultSiteName); err != nil {
			return fmt.Errorf("failed to store site name: %w", err)
		}
	}
	return nil
}

func (s *Service) seedAdmin(ctx context.Context, seed AdminSeed) error {
	if seed.Username == "" {
		return nil
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.CreateUser(ctx, seed.Username, seed.Email, seed.Password, true); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	slog.Info("Created initial admin account", "username", seed.Username)
	return nil
}

// CreateUser hashes password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, admin bool) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Admin:        admin,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the account matching username and password, or
// domain.ErrInvalidLogin without revealing which of the two was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidLogin
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		slog.Warn("Stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, domain.ErrInvalidLogin
	}
	if !ok {
		return nil, domain.ErrInvalidLogin
	}
	return user, nil
}

// GetUserByID retrieves a user by internal ID.
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SetUserLanguage stores a user's language preference.
func (s *Service) SetUserLanguage(ctx context.Context, userID uuid.UUID, lang string) error {
	return s.users.SetLanguage(ctx, userID, lang)
}

// Settings reads the latest committed settings record.
func (s *Service) Settings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	if err := s.kv.Get(ctx, domain.KeySettings, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings replaces the settings record and keeps the standalone site
// name key in step with it.
func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	settings.Name = strings.TrimSpace(settings.Name)
	settings.Footer = strings.TrimSpace(settings.Footer)
	settings.Logo = strings.TrimSpace(settings.Logo)

	if settings.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidSettings)
	}
	if settings.Logo == "" {
		settings.Logo = DefaultLogo
	}

	if err := s.kv.Set(ctx, domain.KeySettings, settings); err != nil {
		return err
	}
	return s.kv.Set(ctx, domain.KeySiteName, settings.Name)
}

// SiteName returns the configured site name, or domain.DefaultSiteName when
// it is unset or unreadable.
func (s *Service) SiteName(ctx context.Context) string {
	var name string
	if err := s.kv.Get(ctx, domain.KeySiteName, &name); err != nil {
		if !errors.Is(err, domain.ErrSettingNotFound) {
			slog.Warn("Failed to read site name", "error", err)
		}
		return domain.DefaultSiteName
	}
	if name == "" {
		return domain.DefaultSiteName
	}
	return name
}
