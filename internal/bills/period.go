package bills

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"telbill/internal/constants"
)

// Period is the calendar month a Bill covers, always in UTC.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// LastClosedPeriod is the month before the one now falls in.
func LastClosedPeriod(now time.Time) Period {
	return PeriodOf(now).Previous()
}

func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Key is the storage form, e.g. 2019-04.
func (p Period) Key() string {
	return p.Start().Format(constants.PeriodLayout)
}

// String is the display form, e.g. Apr/2019.
func (p Period) String() string {
	return p.Start().Format(constants.DisplayPeriodLayout)
}

func (p Period) Before(o Period) bool {
	return p.Start().Before(o.Start())
}

// ParsePeriod resolves the period asked for in a bill request. With no month
// it is the last closed month. A month without a year is its most recent
// closed occurrence. Only closed periods can be billed.
func ParsePeriod(month, year string, now time.Time) (Period, error) {
	current := PeriodOf(now)
	if month == "" {
		return current.Previous(), nil
	}

	m, err := parseMonth(month)
	if err != nil {
		return Period{}, err
	}

	var p Period
	if year == "" {
		p = Period{Year: current.Year, Month: m}
		if !p.Before(current) {
			p.Year--
		}
		return p, nil
	}

	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return Period{}, fmt.Errorf("year %q must have four digits", year)
	}
	p = Period{Year: y, Month: m}
	if !p.Before(current) {
		return Period{}, fmt.Errorf("period %s is not closed yet", p)
	}
	return p, nil
}

func parseMonth(s string) (time.Month, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("month %q must be a three letter abbreviation", s)
	}
	t, err := time.Parse("Jan", strings.ToUpper(s[:1])+strings.ToLower(s[1:]))
	if err != nil {
		return 0, fmt.Errorf("month %q must be a three letter abbreviation", s)
	}
	return t.Month(), nil
}
