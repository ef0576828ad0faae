package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Gender is the self reported gender of a user
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderUndisclosed Gender = "undisclosed"
)

// IsValid checks if the gender is one of the supported values
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUndisclosed:
		return true
	default:
		return false
	}
}

// Address is the postal address of a user
type Address struct {
	Street     string `json:"street,omitempty" bson:"street,omitempty"`
	City       string `json:"city,omitempty" bson:"city,omitempty"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	Country    string `json:"country,omitempty" bson:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty" bson:"postal_code,omitempty"`
}

// UnmarshalJSON accepts camelCase and snake_case keys
func (a *Address) UnmarshalJSON(data []byte) error {
	type plain Address
	return unmarshalAliased(data, (*plain)(a))
}

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	Email          string            `bun:"email,notnull,unique" json:"email"`
	Phone          *string           `bun:"phone_number,unique,nullzero" json:"phoneNumber,omitempty"`
	PhoneRegion    string            `bun:"phone_region" json:"phoneRegion,omitempty"`
	PasswordHash   string            `bun:"password_hash,notnull" json:"-"`
	FirstName      string            `bun:"first_name" json:"firstName,omitempty"`
	LastName       string            `bun:"last_name" json:"lastName,omitempty"`
	DateOfBirth    *time.Time        `bun:"date_of_birth,nullzero" json:"dateOfBirth,omitempty"`
	Gender         Gender            `bun:"gender,notnull" json:"gender"`
	Address        *Address          `bun:"address,type:json" json:"address,omitempty"`
	Bio            string            `bun:"bio" json:"bio,omitempty"`
	SocialLinks    map[string]string `bun:"social_links,type:json" json:"socialLinks,omitempty"`
	ProfilePicture string            `bun:"profile_picture" json:"profilePicture,omitempty"`
	IsActive       bool              `bun:"is_active,notnull" json:"isActive"`
	IsVerified     bool              `bun:"is_verified,notnull" json:"isVerified"`
	Role           Role              `bun:"role,notnull" json:"role"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
	LastLoginAt    *time.Time        `bun:"last_login_at,nullzero" json:"lastLoginAt,omitempty"`
}

// PhoneNumber returns the phone number or an empty string
func (u *User) PhoneNumber() string {
	if u == nil || u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserFilter selects a single user record. Empty fields are ignored, at
// least one of Email or Phone must be set.
type UserFilter struct {
	Email     string
	Phone     string
	ExcludeID string
}

// IsEmpty reports whether the filter has no selector
func (f UserFilter) IsEmpty() bool {
	return f.Email == "" && f.Phone == ""
}

// UserPatch is a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	FirstName   *string            `json:"firstName"`
	LastName    *string            `json:"lastName"`
	Phone       *string            `json:"phoneNumber"`
	DateOfBirth *time.Time         `json:"dateOfBirth"`
	Gender      *Gender            `json:"gender"`
	Address     *Address           `json:"address"`
	Bio         *string            `json:"bio"`
	SocialLinks *map[string]string `json:"socialLinks"`
}

// Apply merges the provided fields into user
func (p UserPatch) Apply(user *User) {
	if p.FirstName != nil {
		user.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		user.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		if *p.Phone == "" {
			user.Phone = nil
			user.PhoneRegion = ""
		} else {
			phone := *p.Phone
			user.Phone = &phone
			user.PhoneRegion = PhoneRegion(phone)
		}
	}
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		user.DateOfBirth = &dob
	}
	if p.Gender != nil {
		user.Gender = *p.Gender
	}
	if p.Address != nil {
		addr := *p.Address
		user.Address = &addr
	}
	if p.Bio != nil {
		user.Bio = *p.Bio
	}
	if p.SocialLinks != nil {
		user.SocialLinks = *p.SocialLinks
	}
}

// AdminUserPatch extends UserPatch with the fields only admins may change
type AdminUserPatch struct {
	UserPatch
	Role       *Role `json:"role"`
	IsActive   *bool `json:"isActive"`
	IsVerified *bool `json:"isVerified"`
}

// UnmarshalJSON accepts camelCase and snake_case keys
func (p *UserPatch) UnmarshalJSON(data []byte) error {
	type plain UserPatch
	return unmarshalAliased(data, (*plain)(p))
}

// UnmarshalJSON decodes the profile fields and the admin only fields. It is
// needed because the embedded UserPatch decoder would otherwise be promoted.
func (p *AdminUserPatch) UnmarshalJSON(data []byte) error {
	if err := p.UserPatch.UnmarshalJSON(data); err != nil {
		return err
	}

	admin := struct {
		Role       *Role `json:"role"`
		IsActive   *bool `json:"isActive"`
		IsVerified *bool `json:"isVerified"`
	}{}
	if err := unmarshalAliased(data, &admin); err != nil {
		return err
	}

	p.Role = admin.Role
	p.IsActive = admin.IsActive
	p.IsVerified = admin.IsVerified
	return nil
}

// Apply merges the provided fields into user
func (p AdminUserPatch) Apply(user *User) {
	p.UserPatch.Apply(user)
	if p.Role != nil {
		user.Role = *p.Role
	}
	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}
	if p.IsVerified != nil {
		user.IsVerified = *p.IsVerified
	}
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.Gender == "" {
		record.Gender = GenderUndisclosed
	}

	record.Email = NormalizeEmail(record.Email)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// snakeCaseKeys maps the snake_case spellings accepted on input to the
// camelCase keys used on the wire
var snakeCaseKeys = map[string]string{
	"phone_number":     "phoneNumber",
	"first_name":       "firstName",
	"last_name":        "lastName",
	"date_of_birth":    "dateOfBirth",
	"social_links":     "socialLinks",
	"postal_code":      "postalCode",
	"is_active":        "isActive",
	"is_verified":      "isVerified",
	"current_password": "currentPassword",
	"new_password":     "newPassword",
}

// unmarshalAliased decodes data into out after renaming snake_case keys.
// When both spellings are present the camelCase value wins.
func unmarshalAliased(data []byte, out any) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for alias, key := range snakeCaseKeys {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		if _, exists := raw[key]; !exists {
			raw[key] = value
		}
		delete(raw, alias)
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, out)
}
