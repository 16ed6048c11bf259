// Package auth registers users, checks credentials and manages sign-in sessions.
//
// A session is a row in the store; the browser holds an HS256 token whose
// "jti" claim names that row, so revoking the row signs the browser out even
// before the token expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tracker/internal/models"
	"tracker/internal/validation"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("please enter a correct username and password")
	// ErrSessionInvalid is returned when a session token cannot be used.
	ErrSessionInvalid = errors.New("session is invalid or expired")
)

// Store is the persistence the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateSession(ctx context.Context, sess models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Options configures a Service.
type Options struct {
	Secret     []byte
	SessionTTL time.Duration
	BcryptCost int
	Logger     *slog.Logger
}

// Service implements registration, login and session handling.
type Service struct {
	store     Store
	secret    []byte
	ttl       time.Duration
	cost      int
	dummyHash []byte
	logger    *slog.Logger
	now       func() time.Time
}

// LoginInput is the submitted login form.
type LoginInput struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// RegisterInput is the submitted registration form.
type RegisterInput struct {
	Username        string `form:"username" binding:"required,max=150,username"`
	Password        string `form:"password" binding:"required"`
	PasswordConfirm string `form:"password_confirm" binding:"required,eqfield=Password"`
}

// NewService validates opts and builds a Service.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.SessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Service{
		store:     store,
		secret:    opts.Secret,
		ttl:       opts.SessionTTL,
		cost:      opts.BcryptCost,
		dummyHash: dummy,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// SessionTTL reports how long new sessions last.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Register creates a user after validating the form. Field problems are
// returned as *models.ValidationError.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)

	verr := models.NewValidationError()
	if err := validation.Struct(in); err != nil && !errors.As(err, &verr) {
		return models.User{}, err
	}
	if _, bad := verr.Fields["password"]; !bad && in.Password == in.PasswordConfirm {
		if problems := passwordProblems(in.Username, in.Password); len(problems) > 0 {
			verr.Add("password", strings.Join(problems, " "))
		}
	}
	if err := verr.OrNil(); err != nil {
		return models.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, in.Username, string(hash))
	if errors.Is(err, models.ErrUsernameTaken) {
		verr.Add("username", "A user with that username already exists.")
		return models.User{}, verr
	}
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and, on success, starts a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, models.Session, error) {
	user, err := s.Authenticate(ctx, in)
	if err != nil {
		return "", models.Session{}, err
	}

	if purged, err := s.store.DeleteExpiredSessions(ctx, s.now()); err != nil {
		s.logger.Warn("purge expired sessions failed", slog.String("error", err.Error()))
	} else if purged > 0 {
		s.logger.Debug("purged expired sessions", slog.Int64("count", purged))
	}

	return s.StartSession(ctx, user)
}

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// StartSession stores a new session for user and returns its signed token.
func (s *Service) StartSession(ctx context.Context, user models.User) (string, models.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	sess := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", models.Session{}, err
	}

	claims := sessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", models.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Debug("session started", slog.Int64("user_id", user.ID))
	return token, sess, nil
}

func (s *Service) parse(token string, opts ...jwt.ParserOption) (sessionClaims, error) {
	var claims sessionClaims
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return sessionClaims{}, ErrSessionInvalid
	}
	return claims, nil
}

// ResolveSession turns a session token into the caller's identity.
func (s *Service) ResolveSession(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrSessionInvalid
	}
	claims, err := s.parse(token)
	if err != nil {
		return models.Identity{}, err
	}

	sess, err := s.store.GetSession(ctx, claims.ID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Identity{}, ErrSessionInvalid
	}
	if err != nil {
		return models.Identity{}, err
	}
	if sess.Expired(s.now()) || strconv.FormatInt(sess.UserID, 10) != claims.Subject {
		return models.Identity{}, ErrSessionInvalid
	}

	user, err := s.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Identity{}, ErrSessionInvalid
	}
	if err != nil {
		return models.Identity{}, err
	}

	return models.Identity{UserID: user.ID, Username: user.Username, SessionID: sess.ID}, nil
}

// EndSession revokes the session named by token. Unusable tokens are ignored.
func (s *Service) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	return s.store.DeleteSession(ctx, claims.ID)
}
