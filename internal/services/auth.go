package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/kafka-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/models"
	"github.com/logimax/logimax-api/internal/repositories"
)

// Error variables
var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByUsernameOrEmail(ctx context.Context, username *string, email *string) (*models.UserDB, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, username, email, passwordHash, role string) (*models.UserDB, error)
}

// TokenIssuer issues bearer tokens for a user id.
type TokenIssuer interface {
	Generate(ctx context.Context, userID string) (string, error)
}

// TokenRevoker places token ids on the revocation list.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// AuditWriter defines a Kafka writer abstraction for auth audit events.
type AuditWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// AuthService handles registration, login, and logout.
type AuthService struct {
	reader  UserReader
	writer  UserWriter
	jwt     TokenIssuer
	revoker TokenRevoker // nil when no revocation store is configured
	audit   AuditWriter  // nil when no broker is configured
}

// NewAuthService creates a new AuthService instance. revoker and audit may
// be nil; logout then succeeds as a no-op and events are not published.
func NewAuthService(reader UserReader, writer UserWriter, jwt TokenIssuer, revoker TokenRevoker, audit AuditWriter) *AuthService {
	return &AuthService{
		reader:  reader,
		writer:  writer,
		jwt:     jwt,
		revoker: revoker,
		audit:   audit,
	}
}

// Register creates a new user and issues a token for it. The existence
// pre-check gives a fast Conflict answer; the store's unique indexes are
// the actual uniqueness guarantee, and their violation maps to the same
// error.
func (svc *AuthService) Register(ctx context.Context, username, email, password, role string) (string, *models.UserDB, error) {
	existing, err := svc.reader.GetByUsernameOrEmail(ctx, &username, &email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return "", nil, err
	}
	if existing != nil {
		return "", nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return "", nil, err
	}

	user, err := svc.writer.Save(ctx, username, email, string(hashedPassword), models.NormalizeRole(role))
	if errors.Is(err, repositories.ErrDuplicate) {
		return "", nil, ErrUserAlreadyExists
	}
	if err != nil {
		logger.Log.Errorw("failed to save user", "err", err)
		return "", nil, err
	}

	token, err := svc.jwt.Generate(ctx, user.ID.Hex())
	if err != nil {
		logger.Log.Errorw("failed to generate token", "err", err)
		return "", nil, err
	}

	svc.publishAudit(ctx, "user.registered", user)
	return token, user, nil
}

// Login authenticates a user by email and password and issues a token.
// A missing user and a wrong password return the same error, so callers
// cannot enumerate accounts.
func (svc *AuthService) Login(ctx context.Context, email, password string) (string, *models.UserDB, error) {
	user, err := svc.reader.GetByUsernameOrEmail(ctx, nil, &email)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := svc.jwt.Generate(ctx, user.ID.Hex())
	if err != nil {
		logger.Log.Errorw("failed to generate token", "err", err)
		return "", nil, err
	}

	svc.publishAudit(ctx, "user.logged_in", user)
	return token, user, nil
}

// Logout revokes the presented token for the remainder of its lifetime.
// Without a revocation store the token simply ages out.
func (svc *AuthService) Logout(ctx context.Context, claims *jwtlib.RegisteredClaims) error {
	if svc.revoker == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return svc.revoker.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

type auditEvent struct {
	Event    string    `json:"event"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	At       time.Time `json:"at"`
}

// publishAudit is best effort; a broker outage never fails the request.
func (svc *AuthService) publishAudit(ctx context.Context, event string, user *models.UserDB) {
	if svc.audit == nil {
		return
	}

	value, err := json.Marshal(auditEvent{
		Event:    event,
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
		At:       time.Now().UTC(),
	})
	if err != nil {
		logger.Log.Errorw("failed to marshal audit event", "event", event, "err", err)
		return
	}

	if err := svc.audit.WriteMessages(ctx, kafka.Message{
		Key:   []byte(user.ID.Hex()),
		Value: value,
	}); err != nil {
		logger.Log.Errorw("failed to publish audit event", "event", event, "err", err)
	}
}
