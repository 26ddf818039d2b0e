package session

// Tokens is the credential pair issued at login. Refresh may be absent, in
// which case the session cannot outlive its access token.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// UserProfile describes the logged-in user.
type UserProfile struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	Nome         string          `json:"nome,omitempty"`
	Email        string          `json:"email,omitempty"`
	Perfil       string          `json:"perfil,omitempty"`
	Departamento string          `json:"departamento,omitempty"`
	Permissions  map[string]bool `json:"permissions,omitempty"`
}

// DisplayName prefers the full name over the username.
func (p *UserProfile) DisplayName() string {
	if p.Nome != "" {
		return p.Nome
	}
	return p.Username
}

// Session is a snapshot of the manager's state.
type Session struct {
	Tokens  Tokens
	Profile *UserProfile
}

// Degraded reports a session that holds tokens but no profile, as left by a
// login whose profile fetch failed.
func (s *Session) Degraded() bool {
	return s.Profile == nil
}

// Permissions returns the profile's permission flags, or nil.
func (s *Session) Permissions() map[string]bool {
	if s == nil || s.Profile == nil {
		return nil
	}
	return s.Profile.Permissions
}

func cloneProfile(p *UserProfile) *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Permissions != nil {
		c.Permissions = make(map[string]bool, len(p.Permissions))
		for k, v := range p.Permissions {
			c.Permissions[k] = v
		}
	}
	return &c
}
