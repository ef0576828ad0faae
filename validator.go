package auth

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit, in bytes
	MaxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IdentityInput holds the raw identity fields of a signup or update request
type IdentityInput struct {
	Email       string
	Phone       string
	Password    string
	DateOfBirth *time.Time
	Gender      Gender
}

// NormalizedIdentity holds identity fields that passed validation
type NormalizedIdentity struct {
	Email       string
	Phone       string
	PhoneRegion string
	Password    string
	DateOfBirth *time.Time
}

// IdentityValidator normalizes and validates identity fields
type IdentityValidator struct {
	now Clock
}

// NewIdentityValidator returns a validator, clock defaults to time.Now
func NewIdentityValidator(clock Clock) *IdentityValidator {
	if clock == nil {
		clock = time.Now
	}
	return &IdentityValidator{now: clock}
}

// NormalizeEmail trims and lower-cases an email
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

type identityFields struct {
	Email       string     `json:"email"`
	Phone       string     `json:"phone_number"`
	Password    string     `json:"password"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender"`
}

// ValidateIdentityFields normalizes the input and validates every field. On
// failure it returns a validation error with one message per invalid field.
func (v *IdentityValidator) ValidateIdentityFields(in IdentityInput) (*NormalizedIdentity, error) {
	fields := identityFields{
		Email:       NormalizeEmail(in.Email),
		Phone:       normalizedPhoneField(in.Phone),
		Password:    in.Password,
		DateOfBirth: in.DateOfBirth,
		Gender:      string(in.Gender),
	}

	err := validation.ValidateStruct(&fields,
		validation.Field(&fields.Email, emailRules()...),
		validation.Field(&fields.Phone, phoneRule()),
		validation.Field(&fields.Password, passwordRules()...),
		validation.Field(&fields.DateOfBirth, v.dateOfBirthRule()),
		validation.Field(&fields.Gender, genderRule()),
	)
	if err != nil {
		return nil, toValidationError(err)
	}

	return &NormalizedIdentity{
		Email:       fields.Email,
		Phone:       fields.Phone,
		PhoneRegion: PhoneRegion(fields.Phone),
		Password:    fields.Password,
		DateOfBirth: fields.DateOfBirth,
	}, nil
}

type profileFields struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone_number"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	Bio         string     `json:"bio"`
}

// ValidateProfilePatch validates the provided fields of a patch and
// normalizes its phone number in place.
func (v *IdentityValidator) ValidateProfilePatch(patch *UserPatch) error {
	if patch == nil {
		return nil
	}

	fields := profileFields{}
	if patch.FirstName != nil {
		fields.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		fields.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		fields.Phone = normalizedPhoneField(*patch.Phone)
	}
	if patch.DateOfBirth != nil {
		dob := *patch.DateOfBirth
		fields.DateOfBirth = &dob
	}
	if patch.Gender != nil {
		fields.Gender = string(*patch.Gender)
	}
	if patch.Bio != nil {
		fields.Bio = *patch.Bio
	}

	err := validation.ValidateStruct(&fields,
		validation.Field(&fields.FirstName, validation.Length(0, 100).Error("first name must be at most 100 characters")),
		validation.Field(&fields.LastName, validation.Length(0, 100).Error("last name must be at most 100 characters")),
		validation.Field(&fields.Phone, phoneRule()),
		validation.Field(&fields.DateOfBirth, v.dateOfBirthRule()),
		validation.Field(&fields.Gender, genderRule()),
		validation.Field(&fields.Bio, validation.Length(0, 500).Error("bio must be at most 500 characters")),
	)
	if err != nil {
		return toValidationError(err)
	}

	if patch.Phone != nil {
		phone := fields.Phone
		patch.Phone = &phone
	}

	return nil
}

// ValidatePassword checks the password strength rules
func (v *IdentityValidator) ValidatePassword(password string) error {
	fields := struct {
		Password string `json:"password"`
	}{Password: password}

	err := validation.ValidateStruct(&fields,
		validation.Field(&fields.Password, passwordRules()...),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("email is required"),
		validation.Match(emailPattern).Error("email must be a valid email address"),
	}
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("password is required"),
		validation.Length(MinPasswordLength, 0).Error("password must be at least 6 characters long"),
		validation.Length(0, MaxPasswordLength).Error("password must be at most 72 bytes long"),
	}
}

func genderRule() validation.Rule {
	return validation.In(
		string(GenderMale),
		string(GenderFemale),
		string(GenderOther),
		string(GenderUndisclosed),
	).Error("gender must be one of male, female, other, undisclosed")
}

func phoneRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		phone, _ := value.(string)
		if phone == "" {
			return nil
		}

		if !strings.HasPrefix(phone, "+") {
			return errors.New("phone number must start with + followed by the country code")
		}

		if !IsValidPhone(phone) {
			return errors.New("phone number must be a valid international number (+ followed by up to 15 digits)")
		}

		return nil
	})
}

func (v *IdentityValidator) dateOfBirthRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		var dob time.Time
		switch t := value.(type) {
		case *time.Time:
			if t == nil {
				return nil
			}
			dob = *t
		case time.Time:
			dob = t
		default:
			return nil
		}

		if dob.After(v.now()) {
			return errors.New("date of birth cannot be in the future")
		}
		return nil
	})
}

// normalizedPhoneField keeps garbage input non-empty so that it is rejected
// instead of being treated as an absent phone number.
func normalizedPhoneField(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if phone := NormalizePhone(trimmed); phone != "" {
		return phone
	}
	return trimmed
}

func toValidationError(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError([]string{err.Error()})
	}

	keys := make([]string, 0, len(fieldErrs))
	for key := range fieldErrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	messages := make([]string, 0, len(keys))
	for _, key := range keys {
		if fieldErrs[key] == nil {
			continue
		}
		messages = append(messages, fieldErrs[key].Error())
	}

	return NewValidationError(messages)
}
