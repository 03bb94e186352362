package sheets

import (
	"strconv"
	"strings"
	"time"

	"github.com/example/taskplanner/internal/application"
)

// DefaultUserMapping maps spreadsheet assignee names to access code labels.
var DefaultUserMapping = map[string]string{
	"Aaron":  "AJB - Admin (9553AJB)",
	"Rai":    "RFB - Admin (9566RFB)",
	"Sam":    "SAM - Member (9127SAM)",
	"Samuel": "SAM - Member (9127SAM)",
	"ZB":     "ZBB - Member (1112ZBB)",
	"Zach":   "ZBB - Member (1112ZBB)",
	"TB":     "TBB - Member (7226TBB)",
	"Tyler":  "TBB - Member (7226TBB)",
	"Aur":    "AUR - Member (9807AUR)",
	"Aurora": "AUR - Member (9807AUR)",
}

// DefaultShortNames are the names written back to the sheet. Aliases are read-only.
var DefaultShortNames = []string{"Aaron", "Rai", "Sam", "ZB", "TB", "Aur"}

// UserMapper translates between sheet names and access code labels.
type UserMapper struct {
	toLabel map[string]string
	toName  map[string]string
}

// NewUserMapper builds a mapper. Only names listed in shortNames take part in
// the reverse mapping.
func NewUserMapper(mapping map[string]string, shortNames []string) UserMapper {
	m := UserMapper{
		toLabel: make(map[string]string, len(mapping)),
		toName:  make(map[string]string, len(shortNames)),
	}
	for name, label := range mapping {
		m.toLabel[name] = label
	}
	for _, name := range shortNames {
		if label, ok := mapping[name]; ok {
			m.toName[label] = name
		}
	}
	return m
}

// Label returns the access code label for a sheet name.
func (m UserMapper) Label(name string) (string, bool) {
	label, ok := m.toLabel[name]
	return label, ok
}

// Name returns the sheet short name for a label, or the label itself when unmapped.
func (m UserMapper) Name(label string) string {
	if name, ok := m.toName[label]; ok {
		return name
	}
	return label
}

var sheetDateLayouts = []string{"01/02/2006", "2006-01-02"}

// parseSheetDate accepts MM/DD/YYYY then YYYY-MM-DD. Anything else is kept as
// written; blanks become nil.
func parseSheetDate(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return application.FormatDatetime(t)
		}
	}
	return value
}

// DefaultEffortMinutes applies when a row has no usable time estimate.
const DefaultEffortMinutes = 60

func parseEffort(value string) int64 {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 1 {
		return int64(f)
	}
	return DefaultEffortMinutes
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
