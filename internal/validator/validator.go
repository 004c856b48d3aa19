package validator

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidCard     = errors.New("invalid smartcard number")
	ErrInvalidMeter    = errors.New("invalid meter number")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	phoneRegex    = regexp.MustCompile(`^0\d{10}$`)
	cardRegex     = regexp.MustCompile(`^\d{8,12}$`)
	meterRegex    = regexp.MustCompile(`^\d{10,13}$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateDestination applies the shape check appropriate for the service:
// phone numbers for airtime, data and exam pins, smartcard numbers for cable
// and meter numbers for electricity.
func ValidateDestination(service, destination string) error {
	switch service {
	case "cable":
		if !cardRegex.MatchString(destination) {
			return ErrInvalidCard
		}
	case "electricity":
		if !meterRegex.MatchString(destination) {
			return ErrInvalidMeter
		}
	default:
		return ValidatePhone(destination)
	}
	return nil
}
