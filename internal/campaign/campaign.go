// Package campaign builds UTM-parametrized campaign URLs.
package campaign

import (
	"net/url"
	"strconv"
	"strings"

	"snapbox_console/internal/apperr"
)

// AgencyParam is always added first and carries the agency name
const AgencyParam = "agencia"

// ParamsList is the catalogue of selectable parameters, in output order
var ParamsList = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fase", "subCampanha", "regiao", "audiencia", "segmentacao", "teste",
	"tituloEmail", "linhaEditorial", "formato", "tipoArte", "direcionamento",
	"campoLivreEmail", "area", "evento", "produto",
}

// UTMOptions lists the fixed choices of parameters rendered as a select
var UTMOptions = map[string][]string{
	"utm_source": {"google", "facebook", "instagram", "linkedin", "email", "newsletter", "whatsapp"},
	"utm_medium": {"cpc", "organic", "email", "social", "referral", "banner"},
}

// Param is one query parameter
type Param struct {
	Key   string
	Value string
}

// IsKnown reports whether key is part of ParamsList
func IsKnown(key string) bool {
	for _, p := range ParamsList {
		if p == key {
			return true
		}
	}
	return false
}

// BuildURL appends the agency and every selected non-empty parameter to base.
// Parameters keep the catalogue order; an existing query and fragment are kept.
func BuildURL(base, agency string, values map[string]string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", apperr.New(apperr.KindValidation, "campaign.build", "The base URL is required.")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.New(apperr.KindValidation, "campaign.build", "The base URL must start with http:// or https://.")
	}

	params := make([]Param, 0, len(values)+1)
	if agency != "" {
		params = append(params, Param{Key: AgencyParam, Value: agency})
	}
	for _, key := range ParamsList {
		value := strings.TrimSpace(values[key])
		if value == "" {
			continue
		}
		params = append(params, Param{Key: key, Value: value})
	}

	parts := make([]string, 0, len(params)+1)
	if u.RawQuery != "" {
		parts = append(parts, u.RawQuery)
	}
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String(), nil
}

// ExtractParams returns the query parameters of rawURL in the order they appear
func ExtractParams(rawURL string) []Param {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return nil
	}
	var out []Param
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		out = append(out, Param{Key: k, Value: v})
	}
	return out
}

// DefaultName is the campaign name used when the user leaves it blank
func DefaultName(name string, existing int) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	return "Campanha " + strconv.Itoa(existing+1)
}

