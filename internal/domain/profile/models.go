package profile

import (
	"errors"
	"strings"
)

// Domain errors
var ErrUserIDRequired = errors.New("user id is required")

// Profile is the personal data a user keeps alongside their expenses.
// A nil field has no value.
type Profile struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

// IsEmpty reports whether no field has a value.
func (p Profile) IsEmpty() bool {
	return p.FullName == nil && p.Phone == nil && p.Address == nil
}

// normalize trims every field and turns blank ones into nil.
func (p Profile) normalize() Profile {
	return Profile{
		FullName: trimmed(p.FullName),
		Phone:    trimmed(p.Phone),
		Address:  trimmed(p.Address),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// fromMetadata picks the profile fields out of sign-up metadata. Values
// that are not non-blank strings are ignored.
func fromMetadata(metadata map[string]any) Profile {
	field := func(key string) *string {
		v, ok := metadata[key].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	return Profile{
		FullName: field("full_name"),
		Phone:    field("phone"),
		Address:  field("address"),
	}
}
