package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/metrics"
	"StudentPortal/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Default admin record inserted when the store holds no admin.
const (
	DefaultAdminID       = "a001"
	DefaultAdminUsername = "admin"
	DefaultAdminEmail    = "admin@system.com"
)

type tokenIssuer interface {
	Issue(sub token.Subject) (string, error)
}

type UserService struct {
	repo     Repository
	tokens   tokenIssuer
	log      *zap.Logger
	now      func() time.Time
	hashCost int
}

type ServiceOption func(*UserService)

// WithServiceClock injects the time source (useful for tests).
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *UserService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) ServiceOption {
	return func(s *UserService) { s.hashCost = cost }
}

func NewUserService(repo Repository, tokens tokenIssuer, log *zap.Logger, opts ...ServiceOption) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &UserService{
		repo:     repo,
		tokens:   tokens,
		log:      log.Named("auth"),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate checks a username-or-email and password pair. A matching
// legacy plaintext password is replaced by its hash.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.repo.FindByLogin(ctx, login)
	if err == nil && user == nil {
		err = autherr.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			// Keep the timing close to a real comparison.
			_, _ = CheckPassword(password, dummyHash)
			metrics.Logins.WithLabelValues("rejected").Inc()
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, legacy := CheckPassword(password, user.Password)
	if !ok {
		metrics.Logins.WithLabelValues("rejected").Inc()
		return nil, autherr.ErrInvalidCredentials
	}
	if legacy {
		s.migrateLegacyPassword(ctx, user, password)
	}
	metrics.Logins.WithLabelValues("accepted").Inc()
	return user, nil
}

func (s *UserService) migrateLegacyPassword(ctx context.Context, user *User, password string) {
	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		s.log.Error("hash legacy password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.repo.SetPassword(ctx, user.Email, hash, s.now()); err != nil {
		s.log.Warn("migrate legacy password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.Password = hash
	s.log.Info("migrated legacy plaintext password", zap.String("user_id", user.ID))
}

// Login authenticates and mints a session token.
func (s *UserService) Login(ctx context.Context, login, password string) (string, *User, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return "", nil, err
	}
	signed, err := s.tokens.Issue(token.Subject{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	})
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

// EnsureDefaultAdmin inserts the default admin if no admin exists. When
// password is empty a random one is generated and returned so the caller
// can report it once.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, password string) (created bool, generated string, err error) {
	_, err = s.repo.FindAnyAdmin(ctx)
	if err == nil {
		return false, "", nil
	}
	if !errors.Is(err, autherr.ErrNotFound) {
		return false, "", err
	}

	if password == "" {
		if password, err = randomPassword(); err != nil {
			return false, "", fmt.Errorf("generate admin password: %w", err)
		}
		generated = password
	}
	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return false, "", fmt.Errorf("hash admin password: %w", err)
	}
	now := s.now()
	admin := &User{
		ID:        DefaultAdminID,
		FullName:  "System Administrator",
		Username:  DefaultAdminUsername,
		Email:     DefaultAdminEmail,
		Password:  hash,
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return false, "", err
	}
	return true, generated, nil
}

func (s *UserService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*User, error) {
	email := NormalizeEmail(req.Email)
	if err := s.checkConflict(ctx, req.Username, email, ""); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &User{
		ID:        uuid.NewString(),
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     email,
		Password:  hash,
		Role:      RoleStudent,
		Course:    req.Course,
		Absences:  0,
		Tests:     []TestRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("student created", zap.String("user_id", user.ID))
	return user, nil
}

func (s *UserService) UpdateStudent(ctx context.Context, id string, req UpdateStudentRequest) (*User, error) {
	if _, err := s.GetStudent(ctx, id); err != nil {
		return nil, err
	}
	email := NormalizeEmail(req.Email)
	if err := s.checkConflict(ctx, req.Username, email, id); err != nil {
		return nil, err
	}
	patch := UserPatch{
		FullName: &req.FullName,
		Username: &req.Username,
		Email:    &email,
		Course:   &req.Course,
		Absences: &req.Absences,
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password, s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		patch.Password = &hash
	}
	if err := s.repo.Update(ctx, id, patch, s.now()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) DeleteStudent(ctx context.Context, id string) error {
	if _, err := s.GetStudent(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("student deleted", zap.String("user_id", id))
	return nil
}

// GetStudent returns autherr.ErrNotFound for admins as well as for missing ids.
func (s *UserService) GetStudent(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != RoleStudent {
		return nil, autherr.ErrNotFound
	}
	return user, nil
}

func (s *UserService) ListStudents(ctx context.Context, course string) ([]*User, error) {
	return s.repo.ListByRole(ctx, RoleStudent, course)
}

func (s *UserService) FindByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

// SetPassword hashes and stores a new password for the account at email.
func (s *UserService) SetPassword(ctx context.Context, email, password string) error {
	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.SetPassword(ctx, email, hash, s.now())
}

// Stats counts users by role. ActiveOTPs is left for the caller to fill.
func (s *UserService) Stats(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.TotalUsers, err = s.repo.Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.TotalStudents, err = s.repo.CountByRole(ctx, RoleStudent); err != nil {
		return Stats{}, err
	}
	if st.TotalAdmins, err = s.repo.CountByRole(ctx, RoleAdmin); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *UserService) checkConflict(ctx context.Context, username, email, excludeID string) error {
	existing, err := s.repo.FindConflict(ctx, username, email, excludeID)
	switch {
	case errors.Is(err, autherr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.Username == username:
		return fmt.Errorf("username %q: %w", username, autherr.ErrDuplicateIdentity)
	default:
		return fmt.Errorf("email %q: %w", email, autherr.ErrDuplicateIdentity)
	}
}

// dummyHash is compared against when the login matches no user.
var dummyHash = func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return string(h)
}()
