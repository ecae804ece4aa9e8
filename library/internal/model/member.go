package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type MemberType string

const (
	MemberTypeStudent MemberType = "Student"
	MemberTypeTeacher MemberType = "Teacher"
)

var MemberTypes = []MemberType{MemberTypeStudent, MemberTypeTeacher}

// MaxNamePartLength bounds the first and last name columns.
const MaxNamePartLength = 150

type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	DateJoined   time.Time  `json:"dateJoined" db:"date_joined"`
	LastLogin    *time.Time `json:"lastLogin,omitempty" db:"last_login"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SplitName cuts a full name at the first whitespace: "Ada King Lovelace"
// becomes ("Ada", "King Lovelace").
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	i := strings.IndexFunc(full, unicode.IsSpace)
	if i < 0 {
		return full, ""
	}
	return full[:i], strings.TrimSpace(full[i:])
}

// Member is read joined with its identity record; the identity columns are
// empty when the member has no login.
type Member struct {
	ID          int64      `json:"id" db:"id"`
	UserID      *int64     `json:"userId,omitempty" db:"user_id"`
	MemberType  MemberType `json:"memberType" db:"member_type"`
	Username    string     `json:"username" db:"username"`
	FirstName   string     `json:"firstName" db:"first_name"`
	LastName    string     `json:"lastName" db:"last_name"`
	Email       string     `json:"email" db:"email"`
	ActiveLoans int        `json:"activeLoans" db:"active_loans"`
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) DisplayName() string {
	if m.UserID == nil {
		return "Unknown"
	}
	if name := m.FullName(); name != "" {
		return name
	}
	return m.Username
}

func (m Member) String() string {
	return fmt.Sprintf("%s (%s)", m.DisplayName(), m.MemberType)
}

type RegisterForm struct {
	Username   string     `form:"username" validate:"required,max=150,username"`
	Password   string     `form:"password" validate:"required"`
	Name       string     `form:"name" validate:"max=180"`
	Email      string     `form:"email" validate:"omitempty,email,max=254"`
	MemberType MemberType `form:"member_type" validate:"required,oneof=Student Teacher"`
}

type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}
