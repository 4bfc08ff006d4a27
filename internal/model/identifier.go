package model

import (
	"regexp"
	"strings"
)

// IdentifierType says which column a login identifier is matched against.
// The forms do not overlap, so an identifier can never resolve to a
// different principal's row.
type IdentifierType int

const (
	IdentifierInvalid IdentifierType = iota
	IdentifierPublicID
	IdentifierEmail
	IdentifierPhone
)

var (
	publicIDPattern = regexp.MustCompile(`^[0-9]{6,}$`)
	// E.164: the leading + keeps phones apart from public ids.
	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

// ParseIdentifier classifies identifier and returns it normalized:
// "@" means e-mail (lower-cased), "+" means phone, digits mean public id.
func ParseIdentifier(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case strings.Contains(identifier, "@"):
		return IdentifierEmail, strings.ToLower(identifier)
	case phonePattern.MatchString(identifier):
		return IdentifierPhone, identifier
	case publicIDPattern.MatchString(identifier):
		return IdentifierPublicID, identifier
	default:
		return IdentifierInvalid, identifier
	}
}

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
