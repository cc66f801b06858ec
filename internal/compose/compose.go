// Package compose prepares bulk HTML e-mails.
package compose

import (
	"net/mail"
	"regexp"
	"strings"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/services"
)

var recipientSeparators = regexp.MustCompile(`[,;\s]+`)

// ParseRecipients splits raw on commas, semicolons and whitespace, validates
// every address and drops duplicates while keeping the first occurrence.
func ParseRecipients(raw string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	var invalid []string

	for _, token := range recipientSeparators.Split(raw, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		addr, err := mail.ParseAddress(token)
		if err != nil || addr.Address != token {
			invalid = append(invalid, token)
			continue
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr.Address)
	}

	if len(invalid) > 0 {
		return nil, apperr.New(apperr.KindValidation, "compose.recipients", "Invalid e-mail: "+strings.Join(invalid, ", "))
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.KindValidation, "compose.recipients", "Add at least one recipient.")
	}
	return out, nil
}

var localImage = regexp.MustCompile(`src="images/([^"]+)"`)

// SwapImageSources rewrites src="images/<name>" to the URL of the uploaded
// file with that name. Images without a matching upload are left untouched.
// The second result counts replaced references.
func SwapImageSources(html string, files []services.FileRecord) (string, int) {
	byName := make(map[string]string, len(files))
	for _, f := range files {
		if _, ok := byName[f.Name]; !ok {
			byName[f.Name] = f.URL
		}
	}

	replaced := 0
	out := localImage.ReplaceAllStringFunc(html, func(match string) string {
		name := localImage.FindStringSubmatch(match)[1]
		if url, ok := byName[name]; ok {
			replaced++
			return `src="` + url + `"`
		}
		return match
	})
	return out, replaced
}

// ValidateBody rejects an empty message
func ValidateBody(html string) error {
	if strings.TrimSpace(html) == "" {
		return apperr.New(apperr.KindValidation, "compose.body", "The HTML content is required.")
	}
	return nil
}
