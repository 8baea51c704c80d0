package core

// User is the public record of a participant as reported by the identity provider.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Avatar      string
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Session binds a connection to one user inside one instance.
// The binding is established once at handshake time and never changes.
type Session struct {
	user     User
	instance string
}

// NewSession constructs an immutable session binding.
func NewSession(user User, instance string) Session {
	return Session{user: user, instance: instance}
}

// User returns the bound user.
func (s Session) User() User {
	return s.user
}

// Instance returns the bound instance id.
func (s Session) Instance() string {
	return s.instance
}
