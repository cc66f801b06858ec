package gate

import (
	"snapbox_console/internal/routes"
	"snapbox_console/internal/session"
)

// Action is the outcome of a gate check
type Action int

const (
	Render Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "render"
}

// Decision tells the caller whether to render the view or where to redirect
type Decision struct {
	Action Action
	Target string
}

// Evaluate decides whether route may render for sess. It has no side effects
// and must be called again on every navigation.
func Evaluate(sess session.Session, route routes.Route) Decision {
	if route.RequiresAuth && !sess.Authenticated() {
		return Decision{Action: Redirect, Target: routes.LoginPath}
	}
	if route.RequiresAdmin && !(sess.Authenticated() && sess.IsAdmin) {
		return Decision{Action: Redirect, Target: routes.HomePath}
	}
	return Decision{Action: Render}
}
