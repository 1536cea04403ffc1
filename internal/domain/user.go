package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

// IsStaff reports whether u may see and manage every row.
func (u *User) IsStaff() bool { return u != nil && u.Role == RoleAdmin }
