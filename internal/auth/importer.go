package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"StudentPortal/internal/autherr"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LegacyRecord is one entry of the users.json file the portal used before
// MongoDB.
type LegacyRecord struct {
	ID       string       `json:"id"`
	FullName string       `json:"fullname"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     Role         `json:"role"`
	Course   string       `json:"course"`
	Absences int          `json:"absences"`
	Tests    []TestRecord `json:"tests"`
}

func (r LegacyRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.In(RoleAdmin, RoleStudent, legacyStudentRole)),
	)
}

// ImportOptions controls an import run.
type ImportOptions struct {
	// Replace empties the users collection before inserting.
	Replace bool
	// HashPasswords stores bcrypt hashes for plaintext passwords. Without it
	// plaintext is kept and rehashed on each user's first login.
	HashPasswords bool
}

// ImportSummary counts what an import did.
type ImportSummary struct {
	Read     int
	Removed  int64
	Inserted int
	Skipped  int
	Hashed   int
	ByRole   map[Role]int
	ByCourse map[string]int
}

type Importer struct {
	repo     Repository
	log      *zap.Logger
	now      func() time.Time
	hashCost int
}

func NewImporter(repo Repository, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{repo: repo, log: log.Named("import"), now: time.Now, hashCost: bcrypt.DefaultCost}
}

// Import reads a users.json array from r and inserts every record.
// Malformed records and records whose username or email is already taken
// are skipped and logged; a store failure stops the run.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportSummary, error) {
	var records []LegacyRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	sum := &ImportSummary{
		Read:     len(records),
		ByRole:   map[Role]int{},
		ByCourse: map[string]int{},
	}
	im.log.Info("users to import", zap.Int("count", len(records)))

	if opts.Replace {
		n, err := im.repo.DeleteAll(ctx)
		if err != nil {
			return sum, err
		}
		sum.Removed = n
		im.log.Info("cleared users collection", zap.Int64("removed", n))
	}

	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			sum.Skipped++
			im.log.Warn("skip invalid record", zap.Int("index", i), zap.String("username", rec.Username), zap.Error(err))
			continue
		}
		user, hashed, err := im.toUser(rec, opts.HashPasswords)
		if err != nil {
			return sum, err
		}
		if err := im.repo.Create(ctx, user); err != nil {
			if errors.Is(err, autherr.ErrDuplicateIdentity) {
				sum.Skipped++
				im.log.Warn("skip duplicate record", zap.Int("index", i), zap.String("username", rec.Username))
				continue
			}
			return sum, err
		}
		sum.Inserted++
		if hashed {
			sum.Hashed++
		}
		sum.ByRole[user.Role]++
		if user.Role == RoleStudent {
			sum.ByCourse[user.Course]++
		}
	}

	im.logSummary(sum)
	return sum, nil
}

func (im *Importer) toUser(rec LegacyRecord, hash bool) (*User, bool, error) {
	now := im.now()
	role := NormalizeRole(rec.Role)
	if role == "" {
		role = RoleStudent
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	user := &User{
		ID:        id,
		FullName:  rec.FullName,
		Username:  rec.Username,
		Email:     NormalizeEmail(rec.Email),
		Password:  rec.Password,
		Role:      role,
		Absences:  rec.Absences,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if role == RoleStudent {
		user.Course = rec.Course
		user.Tests = rec.Tests
		if user.Tests == nil {
			user.Tests = []TestRecord{}
		}
	}
	if !hash || isBcryptHash(rec.Password) {
		return user, false, nil
	}
	hashed, err := HashPassword(rec.Password, im.hashCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password for %s: %w", rec.Username, err)
	}
	user.Password = hashed
	return user, true, nil
}

func (im *Importer) logSummary(sum *ImportSummary) {
	im.log.Info("import finished",
		zap.Int("read", sum.Read),
		zap.Int("inserted", sum.Inserted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("hashed", sum.Hashed),
		zap.Int("admins", sum.ByRole[RoleAdmin]),
		zap.Int("students", sum.ByRole[RoleStudent]))

	courses := make([]string, 0, len(sum.ByCourse))
	for c := range sum.ByCourse {
		courses = append(courses, c)
	}
	sort.Strings(courses)
	for _, c := range courses {
		im.log.Info("students by course", zap.String("course", c), zap.Int("students", sum.ByCourse[c]))
	}
}
