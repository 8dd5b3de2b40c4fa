package export

import (
	"strings"

	"geoexport/internal/domain"
)

// Project cleans a raw column specification against a dataset's field list.
//
// The column specification is a comma- or semicolon-separated list of tokens.
// A token whose first character is a double quote is a literal constant and
// passes through verbatim, unvalidated. Every other token is a field
// reference and is kept only when it resolves against the field list; the
// rest are returned as missing, for the caller to log as one comma-joined
// message.
//
// An empty cleaned specification is not an error: the caller-visible effect
// is zero rows processed.
func Project(columnSpec string, fields []domain.Field) (cleaned string, missing []string) {
	normalized := strings.ReplaceAll(columnSpec, ";", ",")

	var kept []string
	for _, token := range strings.Split(normalized, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.HasPrefix(token, `"`) {
			kept = append(kept, token)
			continue
		}
		if FieldExists(fields, token) {
			kept = append(kept, token)
		} else {
			missing = append(missing, token)
		}
	}
	return strings.Join(kept, ","), missing
}
