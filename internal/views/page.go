package views

// Flash is an inline, dismissable message
type Flash struct {
	Kind    string // "error", "success" or "warning"
	Message string
}

// Page is the data every page template receives
type Page struct {
	Title        string
	ActiveNav    string
	UserEmail    string
	UserInitials string
	IsAdmin      bool
	Flash        *Flash
	Data         interface{}
}

func ErrorFlash(msg string) *Flash {
	return &Flash{Kind: "error", Message: msg}
}

func SuccessFlash(msg string) *Flash {
	return &Flash{Kind: "success", Message: msg}
}

// ErrorPageData backs error.html
type ErrorPageData struct {
	Code         int
	ErrorTitle   string
	ErrorMessage string
	BackLink     string
	BackText     string
}
