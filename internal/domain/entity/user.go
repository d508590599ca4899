package entity

// User is the identity established at login (Domain layer, no JSON tags)
type User struct {
	ID    string // backend-assigned id, used for fetch attribution
	Name  string
	Email string // used for submit attribution and access-state changes
}

// IsZero reports whether the user has not been established yet
func (u User) IsZero() bool {
	return u.ID == "" && u.Email == ""
}
