package domain

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RoleWorker     Role = "worker"
)

type User struct {
	ID            string    `bson:"_id" json:"id"`
	Email         string    `bson:"email" json:"email"`
	Name          string    `bson:"name" json:"name"`
	Phone         string    `bson:"phone" json:"phone"`
	PasswordHash  string    `bson:"password_hash" json:"-"`
	Roles         []Role    `bson:"roles" json:"roles"`
	EmailVerified bool      `bson:"email_verified" json:"emailVerified"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// Session is the authenticated caller, built from a verified bearer token
// and carried explicitly in the request context.
type Session struct {
	UserID    string
	Email     string
	Roles     []Role
	TokenID   string
	ExpiresAt time.Time
}

func (s *Session) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if slices.Contains(s.Roles, r) {
			return true
		}
	}
	return false
}

func (s *Session) IsAdmin() bool {
	return s.HasRole(RoleAdmin, RoleSuperAdmin)
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidPhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return phonePattern.MatchString(cleaned)
}

const MinPasswordLength = 8
