package domain

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the canonical archive date format.
const DateLayout = "2006-01-02"

// Row is one record of a header-row table, keyed by the raw header text.
type Row map[string]string

var (
	// isoDateRe matches dates already in canonical form, e.g. "2025-09-10".
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// dayFirstRe matches two-digit day-first dates, e.g. "10-09-2025" or "10/09/2025".
	dayFirstRe = regexp.MustCompile(`^(\d{2})[-/](\d{2})[-/](\d{4})$`)

	// looseDayFirstRe matches unpadded day-first dates, e.g. "1/9/2025".
	looseDayFirstRe = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)

	// dottedDayFirstRe matches the Excel "DD.MM.YYYY" export, e.g. "10.09.2025".
	dottedDayFirstRe = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
)

// fallbackLayouts are tried, in order, after every day-first pattern has failed.
// None of them is day/month ambiguous.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// NormalizeDate converts a raw date cell to "YYYY-MM-DD". It returns "" when
// the value cannot be read as a real calendar date, which callers treat as
// "drop this row".
func NormalizeDate(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}

	if isoDateRe.MatchString(v) {
		return validDate(v[:4], v[5:7], v[8:10])
	}
	if m := dayFirstRe.FindStringSubmatch(v); m != nil {
		return validDate(m[3], m[2], m[1])
	}
	if m := looseDayFirstRe.FindStringSubmatch(v); m != nil {
		return validDate(m[3], pad2(m[2]), pad2(m[1]))
	}
	if m := dottedDayFirstRe.FindStringSubmatch(v); m != nil {
		return validDate(m[3], m[2], m[1])
	}

	for _, layout := range fallbackLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		return t.UTC().Format(DateLayout)
	}
	return ""
}

// validDate assembles a canonical date and rejects impossible days such as 31 February.
func validDate(yyyy, mm, dd string) string {
	s := yyyy + "-" + mm + "-" + dd
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ""
	}
	return s
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeNumber parses a numeric cell. Surrounding and internal whitespace is
// dropped and a decimal comma becomes a point, so " 1 234,5" reads as 1234.5.
// The second return is false for empty or unparseable input.
func NormalizeNumber(raw string) (float64, bool) {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" {
		return 0, false
	}
	s = strings.Replace(s, ",", ".", 1)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// dateHeaderAliases lists the date column spellings accepted in archive tables.
var dateHeaderAliases = []string{"date", "Date", "DATE"}

// locationHeaderAliases lists the column spellings accepted for a site, most
// specific first: "nusadua", "Nusadua", "NUSADUA", "Nusa Dua", "nusa dua",
// "NUSA DUA", "NusaDua".
func locationHeaderAliases(loc Location) []string {
	aliases := []string{loc.Key, titleCase(loc.Key), strings.ToUpper(loc.Key)}
	if loc.Name != "" {
		aliases = append(aliases,
			loc.Name,
			strings.ToLower(loc.Name),
			strings.ToUpper(loc.Name),
			strings.ReplaceAll(loc.Name, " ", ""),
		)
	}
	return aliases
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// canonicalHeader folds case and drops whitespace, underscores and hyphens so
// "Nusa Dua", "nusa_dua" and "NUSADUA" compare equal.
func canonicalHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lookupField returns the cell stored under the first alias present in row.
// Exact spellings are tried in alias order before a case- and spacing-insensitive
// match, which is resolved in sorted header order so the result is stable.
func lookupField(row Row, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := row[alias]; ok {
			return v, true
		}
	}

	wanted := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		wanted[canonicalHeader(alias)] = struct{}{}
	}
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	for _, h := range headers {
		if _, ok := wanted[canonicalHeader(h)]; ok {
			return row[h], true
		}
	}
	return "", false
}
