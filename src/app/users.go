package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore persists accounts. Create and Update must enforce email
// uniqueness atomically and report ErrConflict.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	ByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id primitive.ObjectID, name, email string, now time.Time) (*User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserService struct {
	store        UserStore
	tokens       *TokenIssuer
	passwordCost int
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewUserService(store UserStore, tokens *TokenIssuer, passwordCost int, logger logrus.FieldLogger) *UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserService{
		store:        store,
		tokens:       tokens,
		passwordCost: passwordCost,
		log:          logger.WithField("component", "users"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, invalid("", "name, email, and password are required")
	}
	if len(password) > MaxPasswordBytes {
		return nil, invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	hash, err := HashPassword(password, s.passwordCost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: this email is already registered", ErrConflict)
		}
		return nil, storeErr("create user", err)
	}
	s.log.WithField("user_id", user.ID.Hex()).Info("user registered")
	return s.session(user)
}

// Login never reveals whether the email exists.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, invalid("", "email and password are required")
	}
	user, err := s.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("find user", err)
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves an Authorization header value to the account it
// was issued for. It has no side effects.
func (s *UserService) Authenticate(ctx context.Context, header string) (*User, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	user, err := s.store.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, storeErr("find user", err)
	}
	return user, nil
}

// Profile is the public view of an authenticated account.
func (s *UserService) Profile(user *User) *User {
	if user == nil {
		return nil
	}
	profile := *user
	profile.PasswordHash = ""
	return &profile
}

func (s *UserService) UpdateProfile(ctx context.Context, user *User, name, email string) (*User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, invalid("", "name and email are required")
	}
	updated, err := s.store.Update(ctx, user.ID, name, email, s.now())
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: this email is already in use by another account", ErrConflict)
		}
		return nil, storeErr("update user", err)
	}
	return updated, nil
}

func (s *UserService) DeleteAccount(ctx context.Context, user *User) error {
	if err := s.store.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user not found, unable to delete account", ErrNotFound)
		}
		return storeErr("delete user", err)
	}
	s.log.WithField("user_id", user.ID.Hex()).Info("account deleted")
	return nil
}

func (s *UserService) session(user *User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
