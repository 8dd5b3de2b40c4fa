package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

const (
	csvDelimiter = ","
	csvLineEnd   = "\r\n"
)

// column is one parsed token of an output column specification: either a
// quoted literal emitted verbatim or a field reference resolved per row.
type column struct {
	raw     string
	literal bool
}

// parseColumns splits a (cleaned) column specification into tokens. Tokens
// whose first character is a double quote are literals.
func parseColumns(columnSpec string) []column {
	var cols []column
	for _, token := range strings.Split(columnSpec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		cols = append(cols, column{raw: token, literal: strings.HasPrefix(token, `"`)})
	}
	return cols
}

// WriteCSV serializes the cursor's rows to a delimited text file.
//
// columnSpec mixes field references (resolved by name, then alias) with
// quoted literal constants emitted verbatim. The header line is the raw
// column specification and is written only when neither appending nor
// explicitly excluded. A value whose text contains the delimiter is wrapped
// in one pair of double quotes; embedded quote characters are not escaped
// (documented limitation). A field resolving to the name "Distance" has its
// numeric value truncated toward zero before writing.
//
// Returns the number of data rows written; the header is not counted. Zero
// means nothing to export and is not an error.
func WriteCSV(cur geostore.Cursor, fields []domain.Field, outPath, columnSpec string, appendMode, excludeHeader bool) (int, error) {
	cols := parseColumns(columnSpec)
	if len(cols) == 0 {
		return 0, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(outPath, flags, 0o644) //nolint:gosec // caller-controlled output path
	if err != nil {
		return 0, fmt.Errorf("open output %s: %w", outPath, err)
	}
	defer f.Close() //nolint:errcheck

	if !appendMode && !excludeHeader {
		if _, err := f.WriteString(columnSpec + csvLineEnd); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}

	count := 0
	for cur.Next() {
		row := cur.Row()
		parts := make([]string, len(cols))
		for i, c := range cols {
			if c.literal {
				parts[i] = c.raw
				continue
			}
			parts[i] = formatFieldValue(c.raw, fields, row)
		}
		if _, err := f.WriteString(strings.Join(parts, csvDelimiter) + csvLineEnd); err != nil {
			return count, fmt.Errorf("write row: %w", err)
		}
		count++
	}
	if err := cur.Err(); err != nil {
		return count, fmt.Errorf("read rows: %w", err)
	}
	return count, nil
}

// formatFieldValue resolves a field reference against the row and renders
// its value per the serializer's rules.
func formatFieldValue(name string, fields []domain.Field, row map[string]interface{}) string {
	resolved := name
	if f := resolveField(fields, name); f != nil {
		resolved = f.Name
	}
	v, ok := row[resolved]
	if !ok || v == nil {
		return ""
	}

	text := formatValue(v)
	if resolved == distanceFieldName {
		text = truncateDistance(v, text)
	}
	if strings.Contains(text, csvDelimiter) {
		text = `"` + text + `"`
	}
	return text
}

// formatValue renders a raw engine value as text.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateDistance converts a Distance value to its truncated integer form:
// direct truncation toward zero, not rounding (12.7 → 12, -0.4 → 0).
func truncateDistance(v interface{}, fallback string) string {
	switch t := v.(type) {
	case float64:
		return strconv.Itoa(int(t))
	case float32:
		return strconv.Itoa(int(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return strconv.Itoa(int(f))
		}
	}
	return fallback
}
