package accounts

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Upper bounds follow the users table columns and bcrypt's input limit.
const (
	minUsernameLength = 3
	maxUsernameLength = 80
	maxEmailLength    = 120
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Credentials is the account input shared by self-registration and admin creation.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// normalized trims the username and email and lowercases the email. The password is kept verbatim.
func (c Credentials) normalized() Credentials {
	return Credentials{
		Username: strings.TrimSpace(c.Username),
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		Password: c.Password,
	}
}

// validate stops at the first failing rule: presence, username length, email shape and
// length, password length.
func (c Credentials) validate() error {
	if c.Username == "" || c.Email == "" || c.Password == "" {
		return invalid("Username, email, and password are required")
	}

	rules := []func() error{
		func() error {
			return validation.Validate(c.Username,
				validation.RuneLength(minUsernameLength, 0).Error("Username must be at least 3 characters long"),
				validation.RuneLength(0, maxUsernameLength).Error("Username must be at most 80 characters long"))
		},
		func() error {
			return validation.Validate(c.Email,
				validation.Match(emailPattern).Error("Invalid email format"),
				validation.RuneLength(0, maxEmailLength).Error("Email must be at most 120 characters long"))
		},
		func() error {
			return validation.Validate(c.Password,
				validation.RuneLength(minPasswordLength, 0).Error("Password must be at least 6 characters long"),
				validation.Length(0, maxPasswordBytes).Error("Password must be at most 72 bytes long"))
		},
	}
	for _, rule := range rules {
		if err := rule(); err != nil {
			return invalid(err.Error())
		}
	}
	return nil
}
