package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/password"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email is already taken")
	ErrUserNotRegistered   = errors.New("user not registered")
	ErrAuthorizationFailed = errors.New("authorization failed")
	ErrInactiveUser        = errors.New("user is inactive")
	ErrWeakPassword        = errors.New("password does not meet strength requirements")
)

// UserService owns account lifecycle and credential verification. All state
// lives in the user repository; the service itself is safe for concurrent
// use.
type UserService struct {
	userRepo    *repository.UserRepository
	dispatcher  mailer.Dispatcher
	actionCodec ActionTokenIssuer
	cfg         *config.Config
}

// ActionTokenIssuer mints the single-use tokens embedded in activation and
// reset links.
type ActionTokenIssuer interface {
	Issue(subject string) (string, error)
}

func NewUserService(
	userRepo *repository.UserRepository,
	dispatcher mailer.Dispatcher,
	actionCodec ActionTokenIssuer,
	cfg *config.Config,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		dispatcher:  dispatcher,
		actionCodec: actionCodec,
		cfg:         cfg,
	}
}

// Authenticate verifies a credential pair. A missing account and a wrong
// password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, plaintext string) (*entity.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !password.Verify(plaintext, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser persists a new active, non-admin account.
func (s *UserService) CreateUser(ctx context.Context, email, plaintext string) (*entity.User, error) {
	return s.createUser(ctx, email, plaintext, false, true)
}

// CreateSuperUser persists a new active admin account.
func (s *UserService) CreateSuperUser(ctx context.Context, email, plaintext string) (*entity.User, error) {
	return s.createUser(ctx, email, plaintext, true, true)
}

// RegisterUser creates an inactive account and dispatches an activation
// email carrying a fresh action token. Delivery is fire-and-forget: the
// account is returned immediately and a failed send is only logged.
func (s *UserService) RegisterUser(ctx context.Context, email, plaintext string) (*entity.User, error) {
	user, err := s.createUser(ctx, email, plaintext, false, false)
	if err != nil {
		return nil, err
	}

	s.dispatchActionEmail(mailer.KindNewAccount, user.Email)

	return user, nil
}

func (s *UserService) createUser(ctx context.Context, email, plaintext string, isAdmin, isActive bool) (*entity.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	if err := s.validatePassword(plaintext); err != nil {
		return nil, err
	}

	hashed, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		Email:          email,
		HashedPassword: hashed,
		IsAdmin:        isAdmin,
		IsActive:       isActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser looks up an account by primary key.
func (s *UserService) GetUser(ctx context.Context, id uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotRegistered
	}
	return user, nil
}

// GetUserByEmail looks up an account by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotRegistered
	}
	return user, nil
}

func (s *UserService) GetUsers(ctx context.Context) ([]*entity.User, error) {
	return s.userRepo.List(ctx)
}

// ActivateUser marks the account belonging to email as active. The email
// comes from an action token validated at the boundary.
func (s *UserService) ActivateUser(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	user.IsActive = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserRestricted changes the target account's email after the
// self-or-admin check.
func (s *UserService) UpdateUserRestricted(ctx context.Context, userID uint64, newEmail string, current *entity.User) (*entity.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !canModify(current, user) {
		return nil, ErrAuthorizationFailed
	}

	user.Email = newEmail
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser marks the target account inactive after the self-or-admin
// check. There is no hard delete anywhere in the service.
func (s *UserService) DeactivateUser(ctx context.Context, userID uint64, current *entity.User) (*entity.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !canModify(current, user) {
		return nil, ErrAuthorizationFailed
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser is deactivation under the public contract's name.
func (s *UserService) DeleteUser(ctx context.Context, userID uint64, current *entity.User) (*entity.User, error) {
	return s.DeactivateUser(ctx, userID, current)
}

// StartPasswordReset dispatches a reset email if the account exists and is
// active. Unknown and inactive accounts no-op without any caller-visible
// difference, so the endpoint cannot be used to enumerate addresses.
func (s *UserService) StartPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return nil
	}

	s.dispatchActionEmail(mailer.KindResetPassword, user.Email)
	return nil
}

// FinishPasswordReset re-hashes and stores the new password. The email comes
// from an action token validated at the boundary; an unknown account no-ops.
func (s *UserService) FinishPasswordReset(ctx context.Context, email, newPassword string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	user.HashedPassword = hashed
	return s.userRepo.Update(ctx, user)
}

// canModify applies the self-or-admin rule for mutations.
func canModify(current, target *entity.User) bool {
	return current.IsAdmin || current.Email == target.Email
}

func (s *UserService) validatePassword(plaintext string) error {
	if password.IsStrong(plaintext) {
		return nil
	}
	if s.cfg.IsLocal() {
		logrus.WithField("environment", s.cfg.Environment).Warn("password strength check bypassed")
		return nil
	}
	return ErrWeakPassword
}

func (s *UserService) dispatchActionEmail(kind mailer.Kind, email string) {
	actionToken, err := s.actionCodec.Issue(email)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"kind":  kind,
			"email": email,
		}).Error("failed to issue action token")
		return
	}
	s.dispatcher.Dispatch(kind, email, actionToken)
}
