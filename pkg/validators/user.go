// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")

	ErrUsernameEmpty   = errors.New("no username provided")
	ErrUsernameInvalid = errors.New("username must be 3 to 80 characters of letters, digits, '.', '-' or '_'")

	ErrPasswordEmpty    = errors.New("no password provided")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password is too long")

	ErrFullNameTooLong = errors.New("full name is too long")
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,80}$`)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if len(e) > 120 {
		return ErrEmailInvalid
	}

	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return ErrEmailInvalid
	}

	return nil
}

func UsernameValidator(u string) error {
	if u == "" {
		return ErrUsernameEmpty
	}

	if !usernameRe.MatchString(u) {
		return ErrUsernameInvalid
	}

	return nil
}

func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) < 8 {
		return ErrPasswordTooShort
	}

	if len(p) > 255 {
		return ErrPasswordTooLong
	}

	return nil
}

func FullNameValidator(n string) error {
	if utf8.RuneCountInString(n) > 100 {
		return ErrFullNameTooLong
	}

	return nil
}
