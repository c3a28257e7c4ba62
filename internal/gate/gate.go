// Package gate decides whether a screen renders, waits for session
// initialization, or redirects elsewhere.
package gate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/session"
)

// Redirect destinations.
const (
	LoginPath           = "/login"
	CompleteProfilePath = "/complete-profile"
	HomePath            = "/dashboard"
)

// RedirectParam carries the intended destination through the login screen.
const RedirectParam = "redirect"

// Outcome is what the gate tells the screen to do.
type Outcome int

const (
	Render Outcome = iota
	Loading
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision is the gate's verdict. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Decide evaluates tier against st. requested is the request URI the user
// was heading to; it is preserved in the login redirect. Decide never
// changes the session.
func Decide(tier domain.AccessTier, st session.State, requested string) Decision {
	if st.Initializing {
		return Decision{Outcome: Loading}
	}

	authenticated := st.IsAuthenticated()
	complete := st.ProfileComplete()

	switch tier {
	case domain.TierAuthComplete:
		switch {
		case !authenticated:
			return Decision{Outcome: Redirect, Target: LoginTarget(requested)}
		case !complete:
			return Decision{Outcome: Redirect, Target: CompleteProfilePath}
		}
	case domain.TierAuthIncomplete:
		switch {
		case !authenticated:
			return Decision{Outcome: Redirect, Target: LoginTarget(requested)}
		case complete:
			return Decision{Outcome: Redirect, Target: HomePath}
		}
	default:
		if complete {
			return Decision{Outcome: Redirect, Target: HomePath}
		}
	}
	return Decision{Outcome: Render}
}

// LoginTarget builds the login URL that returns to requested afterwards.
func LoginTarget(requested string) string {
	requested = SafeRedirect(requested, "")
	if requested == "" || requested == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{RedirectParam: {requested}}.Encode()
}

// SafeRedirect returns target if it is a same-origin relative path and
// fallback otherwise.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return target
}

// Landing is where a session in st belongs when no destination was asked for.
func Landing(st session.State) string {
	switch {
	case !st.IsAuthenticated():
		return LoginPath
	case !st.ProfileComplete():
		return CompleteProfilePath
	default:
		return HomePath
	}
}
