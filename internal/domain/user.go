package domain

import (
	"encoding/json"
	"strconv"
)

// User is the authenticated principal as returned by the remote API.
type User struct {
	ID              int64           `json:"id"`
	Email           string          `json:"email"`
	FullName        string          `json:"full_name"`
	Phone           string          `json:"phone,omitempty"`
	Role            string          `json:"role,omitempty"`
	IsActive        *bool           `json:"is_active,omitempty"`
	ProfileComplete bool            `json:"profile_complete"`
	Profile         json.RawMessage `json:"profile,omitempty"`
}

// Active reports whether the user may hold capabilities. A missing
// is_active flag counts as active; only an explicit false disables.
func (u *User) Active() bool {
	return u != nil && (u.IsActive == nil || *u.IsActive)
}

// IDString returns the id in the form used for log attributes and event keys.
func (u *User) IDString() string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

// Clone returns a deep copy so callers can never mutate session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.IsActive != nil {
		v := *u.IsActive
		c.IsActive = &v
	}
	if u.Profile != nil {
		c.Profile = append(json.RawMessage(nil), u.Profile...)
	}
	return &c
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	FullName        string `json:"full_name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// CompleteProfileInput carries the onboarding data that creates the user's
// church and attaches the user to it.
type CompleteProfileInput struct {
	ChurchName   string          `json:"church_name" validate:"required,min=2,max=200"`
	ChurchEmail  string          `json:"church_email,omitempty" validate:"omitempty,email"`
	ChurchPhone  string          `json:"church_phone,omitempty" validate:"omitempty,max=32"`
	Denomination string          `json:"denomination,omitempty" validate:"omitempty,max=120"`
	Address      *Address        `json:"address,omitempty"`
	Role         string          `json:"role,omitempty" validate:"omitempty,oneof=church_admin pastor leader secretary member"`
	Profile      json.RawMessage `json:"profile,omitempty"`
}

// UserPatch is a partial update of the user's personal data. Nil fields are
// left untouched by the remote API.
type UserPatch struct {
	FullName *string         `json:"full_name,omitempty" validate:"omitempty,min=2,max=120"`
	Email    *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string         `json:"phone,omitempty" validate:"omitempty,max=32"`
	Profile  json.RawMessage `json:"profile,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil && len(p.Profile) == 0
}
