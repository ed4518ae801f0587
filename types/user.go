package types

// Roles a user may hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an applicant or administrator account.
// It contains identity, role, profile, and audit metadata.
type User struct {
	// Username is the unique login name and the record key. It never changes
	// once the account exists.
	Username string `json:"username"`

	// Password stores the one-way digest of the user's password, never the
	// plaintext. It is stripped before a user is returned over the API.
	Password string `json:"password,omitempty"`

	// Role indicates the user's authorization level ("admin" or "user").
	Role string `json:"role"`

	// Email, Phone and CitizenID are each unique across all users, compared
	// exactly as typed.
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CitizenID string `json:"citizen_id"`

	// Title is the name prefix (e.g. "นาย", "นางสาว").
	Title     string `json:"title,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	// SchoolName is the applicant's secondary school.
	SchoolName string `json:"school_name,omitempty"`

	// GPAX is the cumulative grade point average, 0.00 to 4.00.
	GPAX float64 `json:"gpax,omitempty"`

	GraduationYear string `json:"graduation_year,omitempty"`

	// Program is the study program applied for.
	Program string `json:"program,omitempty"`

	Address     string `json:"address,omitempty"`
	ParentName  string `json:"parent_name,omitempty"`
	ParentPhone string `json:"parent_phone,omitempty"`

	// CreatedAt is the timestamp when the account was registered.
	CreatedAt Timestamp `json:"created_at"`

	// UpdatedAt is the timestamp of the most recent profile update.
	UpdatedAt Timestamp `json:"updated_at"`
}

// FullName joins title, first and last name the way applicant lists show it.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return u.Title + name
}

// Public returns a copy safe to expose outside the server.
func (u User) Public() User {
	u.Password = ""
	return u
}

// UserPatch is a partial update of a User. Nil fields are left unchanged.
// Username is absent on purpose: it is immutable.
type UserPatch struct {
	// Password must already be a digest produced by the credential vault.
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`

	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	CitizenID *string `json:"citizen_id,omitempty"`

	Title          *string  `json:"title,omitempty"`
	FirstName      *string  `json:"first_name,omitempty"`
	LastName       *string  `json:"last_name,omitempty"`
	SchoolName     *string  `json:"school_name,omitempty"`
	GPAX           *float64 `json:"gpax,omitempty"`
	GraduationYear *string  `json:"graduation_year,omitempty"`
	Program        *string  `json:"program,omitempty"`
	Address        *string  `json:"address,omitempty"`
	ParentName     *string  `json:"parent_name,omitempty"`
	ParentPhone    *string  `json:"parent_phone,omitempty"`
}
