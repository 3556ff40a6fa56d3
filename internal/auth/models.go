package auth

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"

	// Records copied verbatim from the old users.json file use "user" for
	// students. Importer writes RoleStudent instead.
	legacyStudentRole Role = "user"
)

// NormalizeRole maps stored role values onto the two portal roles.
func NormalizeRole(r Role) Role {
	if r == legacyStudentRole {
		return RoleStudent
	}
	return r
}

// CourseList is the set of courses a student can be enrolled in.
var CourseList = []string{
	"Web Development",
	"Graphic Design",
	"App Development",
	"Data Science",
}

// TestRecord is one graded test on a student's profile.
type TestRecord struct {
	Name  string  `bson:"name" json:"name"`
	Score float64 `bson:"score" json:"score"`
}

type User struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID        string             `bson:"id" json:"id"`
	FullName  string             `bson:"fullname" json:"fullname"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash; plaintext only on legacy records
	Role      Role               `bson:"role" json:"role"`
	Course    string             `bson:"course,omitempty" json:"course,omitempty"`
	Absences  int                `bson:"absences" json:"absences"`
	Tests     []TestRecord       `bson:"tests,omitempty" json:"tests,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// UserPatch lists the fields an admin edit may change. Nil means unchanged.
type UserPatch struct {
	FullName *string
	Username *string
	Email    *string
	Course   *string
	Absences *int
	Password *string // already hashed
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

type Credential struct {
	Username string `json:"username" form:"username"` // username or email
	Password string `json:"password" form:"password"`
}

func (c Credential) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

type CreateStudentRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Course   string `json:"course" form:"course"`
}

func (r CreateStudentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 40), validation.Match(usernamePattern)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.Course, validation.Required, validation.In(courseValues()...)),
	)
}

type UpdateStudentRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"` // empty keeps the current password
	Course   string `json:"course" form:"course"`
	Absences int    `json:"absences" form:"absences"`
}

func (r UpdateStudentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 40), validation.Match(usernamePattern)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Length(6, 128)),
		validation.Field(&r.Course, validation.Required, validation.In(courseValues()...)),
		validation.Field(&r.Absences, validation.Min(0)),
	)
}

func courseValues() []interface{} {
	out := make([]interface{}, len(CourseList))
	for i, c := range CourseList {
		out[i] = c
	}
	return out
}

// Stats summarizes the credential store for the admin dashboard.
type Stats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalStudents int64 `json:"total_students"`
	TotalAdmins   int64 `json:"total_admins"`
	ActiveOTPs    int64 `json:"active_otps"`
}
