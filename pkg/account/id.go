package account

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned for malformed account identifiers.
var ErrInvalidID = errors.New("invalid account id")

// ID identifies an account as a bare address ("user@domain").
type ID string

// ParseID validates and normalizes an account identifier. The domain part is
// lower-cased; the local part is kept as given.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	domain := strings.ToLower(s[at+1:])
	if strings.ContainsAny(domain, " @") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(s[:at] + "@" + domain), nil
}

// Local returns the part before '@'.
func (id ID) Local() string {
	if at := strings.LastIndexByte(string(id), '@'); at >= 0 {
		return string(id)[:at]
	}
	return ""
}

// Domain returns the part after '@'.
func (id ID) Domain() string {
	if at := strings.LastIndexByte(string(id), '@'); at >= 0 {
		return string(id)[at+1:]
	}
	return string(id)
}

func (id ID) String() string { return string(id) }
