// Package guard decides, per page evaluation, whether to render protected
// content or redirect. Nothing is remembered between evaluations.
package guard

import "strings"

type Decision int

const (
	Render Decision = iota
	RedirectLogin
	RedirectLanding
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectLanding:
		return "redirect_landing"
	default:
		return "unknown"
	}
}

// Checker is the slice of the account store the guards need.
type Checker interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

const (
	DefaultLoginPath   = "/login"
	DefaultLandingPath = "/"
)

type Result struct {
	Decision Decision
	// Location is empty when Decision is Render.
	Location string
}

type Guard struct {
	LoginPath   string
	LandingPath string
}

func New(loginPath, landingPath string) Guard {
	loginPath = strings.TrimSpace(loginPath)
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	landingPath = strings.TrimSpace(landingPath)
	if landingPath == "" {
		landingPath = DefaultLandingPath
	}
	return Guard{LoginPath: loginPath, LandingPath: landingPath}
}

// EvaluateAdmin checks authentication strictly before the admin role, so an
// authenticated non-admin always lands on the landing page, never on login.
func EvaluateAdmin(c Checker) Decision {
	if !c.IsAuthenticated() {
		return RedirectLogin
	}
	if !c.IsAdmin() {
		return RedirectLanding
	}
	return Render
}

// EvaluateAuth is the redirect-if-not-authenticated check ordinary pages run.
func EvaluateAuth(c Checker) Decision {
	if !c.IsAuthenticated() {
		return RedirectLogin
	}
	return Render
}

func (g Guard) Admin(c Checker) Result {
	return g.result(EvaluateAdmin(c))
}

func (g Guard) RequireAuth(c Checker) Result {
	return g.result(EvaluateAuth(c))
}

func (g Guard) result(d Decision) Result {
	switch d {
	case RedirectLogin:
		return Result{Decision: d, Location: g.LoginPath}
	case RedirectLanding:
		return Result{Decision: d, Location: g.LandingPath}
	default:
		return Result{Decision: d}
	}
}
