package account

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// Messages reported by change-password validation.
const (
	MsgRequired        = "This field is required."
	MsgTooShort        = "Ensure this field has at least 8 characters."
	MsgSameAsOld       = "New password cannot be same as old password."
	MsgConfirmMismatch = "Confirm password should be same as the new password."
	MsgWrongPassword   = "Old password is not correct."
)

// NonFieldKey holds the messages that concern more than one field.
const NonFieldKey = "error"

// ValidationError carries messages keyed by the field they concern.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// ChangePasswordInput is the body of a change-password request.
type ChangePasswordInput struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ValidateChangePassword checks a change-password request. Field rules run
// first; the rules across fields only run once every field is valid, and the
// first failing one is reported.
func ValidateChangePassword(in ChangePasswordInput) error {
	verr := &ValidationError{}
	if in.OldPassword == "" {
		verr.add("old_password", MsgRequired)
	}
	for field, value := range map[string]string{
		"new_password":     in.NewPassword,
		"confirm_password": in.ConfirmPassword,
	} {
		switch {
		case value == "":
			verr.add(field, MsgRequired)
		case utf8.RuneCountInString(value) < MinPasswordLength:
			verr.add(field, MsgTooShort)
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	switch {
	case in.OldPassword == in.NewPassword:
		verr.add(NonFieldKey, MsgSameAsOld)
	case in.NewPassword != in.ConfirmPassword:
		verr.add(NonFieldKey, MsgConfirmMismatch)
	default:
		return nil
	}
	return verr
}
