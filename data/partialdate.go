package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PartialDate is a release date as catalogs actually report them: sometimes a
// full date, sometimes just a year or a year and month.
type PartialDate struct {
	Year  int
	Month int
	Day   int
}

// ParsePartialDate accepts "2006", "2006-01", or "2006-01-02".
func ParsePartialDate(s string) (*PartialDate, error) {
	if s == "" {
		return nil, fmt.Errorf("empty date")
	}

	parts := strings.SplitN(s, "-", 3)
	if len(parts) > 3 {
		return nil, fmt.Errorf("unparseable date '%s'", s)
	}

	var pd PartialDate
	fields := []*int{&pd.Year, &pd.Month, &pd.Day}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("unparseable date '%s': %w", s, err)
		}
		*fields[i] = n
	}
	if pd.Year == 0 {
		return nil, fmt.Errorf("date '%s' has no year", s)
	}
	if pd.Month < 0 || pd.Month > 12 || pd.Day < 0 || pd.Day > 31 {
		return nil, fmt.Errorf("date '%s' out of range", s)
	}

	return &pd, nil
}

// Time normalizes the date to UTC midnight, defaulting a missing month or day
// to 1.
func (pd PartialDate) Time() time.Time {
	month, day := pd.Month, pd.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(pd.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Unix returns the normalized date as unix seconds, or 0 for a yearless date.
func (pd PartialDate) Unix() int64 {
	if pd.Year == 0 {
		return 0
	}
	return pd.Time().Unix()
}

// Before compares two partial dates by their normalized time.
func (pd PartialDate) Before(other PartialDate) bool {
	return pd.Time().Before(other.Time())
}

func (pd PartialDate) String() string {
	switch {
	case pd.Year == 0:
		return ""
	case pd.Month == 0:
		return fmt.Sprintf("%04d", pd.Year)
	case pd.Day == 0:
		return fmt.Sprintf("%04d-%02d", pd.Year, pd.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", pd.Year, pd.Month, pd.Day)
	}
}
