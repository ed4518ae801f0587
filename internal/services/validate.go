package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/admitportal/apiserver/types"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{Thai}a-zA-Z\s]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^0[689]\d{8}$`)
	digits13     = regexp.MustCompile(`^\d{13}$`)
	separators   = strings.NewReplacer(" ", "", "-", "")
)

// ValidateProfile checks the applicant fields collected by the registration
// form. Empty fields are not checked; UserService leaves format checks to
// its callers.
func ValidateProfile(u types.User) error {
	for _, f := range []struct{ field, value string }{
		{"email", u.Email},
		{"phone", u.Phone},
		{"citizen_id", u.CitizenID},
		{"first_name", u.FirstName},
		{"last_name", u.LastName},
	} {
		if f.value == "" {
			continue
		}
		if err := validateField(f.field, f.value); err != nil {
			return err
		}
	}
	if u.GPAX < 0 || u.GPAX > 4 {
		return fmt.Errorf("%w: gpax must be between 0.00 and 4.00", ErrInvalidInput)
	}
	return nil
}

// ValidatePatch checks the fields of patch that differ from current.
// Values carried over unchanged are not re-checked, so records created
// before validation existed can still be edited.
func ValidatePatch(current types.User, patch types.UserPatch) error {
	for _, f := range []struct {
		field string
		value *string
		old   string
	}{
		{"email", patch.Email, current.Email},
		{"phone", patch.Phone, current.Phone},
		{"citizen_id", patch.CitizenID, current.CitizenID},
		{"first_name", patch.FirstName, current.FirstName},
		{"last_name", patch.LastName, current.LastName},
	} {
		if f.value == nil || *f.value == f.old || *f.value == "" {
			continue
		}
		if err := validateField(f.field, *f.value); err != nil {
			return err
		}
	}
	if patch.GPAX != nil && (*patch.GPAX < 0 || *patch.GPAX > 4) {
		return fmt.Errorf("%w: gpax must be between 0.00 and 4.00", ErrInvalidInput)
	}
	return nil
}

func validateField(field, value string) error {
	var ok bool
	switch field {
	case "email":
		ok = emailPattern.MatchString(value)
	case "phone":
		ok = phonePattern.MatchString(separators.Replace(value))
	case "citizen_id":
		ok = ValidCitizenID(value)
	case "first_name", "last_name":
		trimmed := strings.TrimSpace(value)
		ok = len([]rune(trimmed)) >= 2 && namePattern.MatchString(trimmed)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: malformed %s", ErrInvalidInput, field)
	}
	return nil
}

// ValidCitizenID checks the length and mod-11 check digit of a Thai
// national ID. Spaces and dashes are ignored.
func ValidCitizenID(id string) bool {
	id = separators.Replace(id)
	if !digits13.MatchString(id) {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(id[i]-'0') * (13 - i)
	}
	return int(id[12]-'0') == (11-sum%11)%10
}
