package session

// LoginPath is the location of the login boundary.
const LoginPath = "/login"

// Navigator is the login boundary. RedirectToLogin is only called when
// Location is not already LoginPath.
type Navigator interface {
	Location() string
	RedirectToLogin()
}

// NopNavigator ignores redirects.
type NopNavigator struct{}

func (NopNavigator) Location() string {
	return ""
}

func (NopNavigator) RedirectToLogin() {}
