package routes

// View identifies the page rendered for a route
type View string

const (
	ViewLogin           View = "login"
	ViewHome            View = "home"
	ViewEmail           View = "email"
	ViewUrlParametrizer View = "parametrizer"
	ViewPerformance     View = "performance"
	ViewAdmin           View = "admin"
)

const (
	LoginPath     = "/"
	HomePath      = "/Home"
	AdminHomePath = "/Admin"
)

// Route describes a navigable view and its authorization requirements
type Route struct {
	Path          string
	View          View
	Title         string
	RequiresAuth  bool
	RequiresAdmin bool
}

// Table is the immutable mapping from path to Route. Paths are matched
// exactly and case-sensitively so bookmarked URLs resolve the same way.
type Table struct {
	routes []Route
	byPath map[string]Route
}

// NewTable builds a table. Later duplicates of a path are ignored.
func NewTable(routes ...Route) *Table {
	t := &Table{byPath: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if r.RequiresAdmin {
			r.RequiresAuth = true
		}
		if _, exists := t.byPath[r.Path]; exists {
			continue
		}
		t.byPath[r.Path] = r
		t.routes = append(t.routes, r)
	}
	return t
}

// Default returns the console's route table
func Default() *Table {
	return NewTable(
		Route{Path: LoginPath, View: ViewLogin, Title: "Login"},
		Route{Path: HomePath, View: ViewHome, Title: "Home", RequiresAuth: true},
		Route{Path: "/Email", View: ViewEmail, Title: "Send", RequiresAuth: true},
		Route{Path: "/UrlParametrizer", View: ViewUrlParametrizer, Title: "Parametrizer", RequiresAuth: true},
		Route{Path: "/Performance", View: ViewPerformance, Title: "Performance", RequiresAuth: true},
		Route{Path: AdminHomePath, View: ViewAdmin, Title: "Admin", RequiresAuth: true, RequiresAdmin: true},
	)
}

// Lookup finds the route registered for path
func (t *Table) Lookup(path string) (Route, bool) {
	r, ok := t.byPath[path]
	return r, ok
}

// MustLookup panics when path is not registered. Used while wiring the server.
func (t *Table) MustLookup(path string) Route {
	r, ok := t.Lookup(path)
	if !ok {
		panic("routes: no route for " + path)
	}
	return r
}

// Routes returns the routes in declaration order
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// HomeFor returns the landing page after login
func HomeFor(isAdmin bool) string {
	if isAdmin {
		return AdminHomePath
	}
	return HomePath
}
