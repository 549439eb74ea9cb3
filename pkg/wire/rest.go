package wire

// User is the identity returned by the account endpoints.
type User struct {
	ID    string `json:"id"`
	Alias string `json:"alias"`
	Token string `json:"token,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Alias    string `json:"alias"`
	Password string `json:"password"`
}

// Profile is the registration request body.
type Profile struct {
	Alias    string `json:"alias"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginResult is the login response body.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserList is the lobby roster response body.
type UserList struct {
	Users []User `json:"users"`
}
