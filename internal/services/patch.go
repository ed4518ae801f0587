package services

import (
	"fmt"
	"strconv"

	"github.com/admitportal/apiserver/types"
)

// applyPatch returns u with the non-nil fields of p applied, plus a
// "field: old -> new" entry for each value that changed. The password never
// appears in the change list.
func applyPatch(u types.User, p types.UserPatch) (types.User, []string) {
	var changes []string
	set := func(name string, dst *string, v *string) {
		if v == nil {
			return
		}
		if *dst != *v && name != "password" {
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", name, *dst, *v))
		}
		*dst = *v
	}

	set("password", &u.Password, p.Password)
	set("role", &u.Role, p.Role)
	set("email", &u.Email, p.Email)
	set("phone", &u.Phone, p.Phone)
	set("citizen_id", &u.CitizenID, p.CitizenID)
	set("title", &u.Title, p.Title)
	set("first_name", &u.FirstName, p.FirstName)
	set("last_name", &u.LastName, p.LastName)
	set("school_name", &u.SchoolName, p.SchoolName)
	if p.GPAX != nil {
		if u.GPAX != *p.GPAX {
			changes = append(changes, fmt.Sprintf("gpax: %s -> %s", formatGPAX(u.GPAX), formatGPAX(*p.GPAX)))
		}
		u.GPAX = *p.GPAX
	}
	set("graduation_year", &u.GraduationYear, p.GraduationYear)
	set("program", &u.Program, p.Program)
	set("address", &u.Address, p.Address)
	set("parent_name", &u.ParentName, p.ParentName)
	set("parent_phone", &u.ParentPhone, p.ParentPhone)

	return u, changes
}

func formatGPAX(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
