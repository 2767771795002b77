package shows

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// yearlessLookbackDays bounds how far in the past a date without a year may
// fall before it is assumed to mean next year.
const yearlessLookbackDays = 31

// ErrEmptyName is returned when a raw item has no usable name.
var ErrEmptyName = errors.New("empty show name")

// ParseError reports a raw item whose date could not be parsed.
type ParseError struct {
	Source Source
	Name   string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s date %q for %q", e.Source, e.Value, e.Name)
}

var timeOfDayRegex = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2})\s*([ap])\.?m\.?`)

var (
	houseSeatsLayouts = []string{
		"Mon, Jan 2, 2006",
		"Mon Jan 2, 2006",
		"Monday, January 2, 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"01/02/2006",
		"1/2/2006",
		"2006-01-02",
	}
	houseSeatsYearless = []string{
		"Mon, Jan 2",
		"Mon Jan 2",
		"Monday, January 2",
		"Jan 2",
		"January 2",
		"1/2",
	}
	firstTixLayouts = []string{
		"Mon, 2 Jan '06",
		"Mon, 2 January '06",
		"2 Jan '06",
		"Mon, 2 Jan 2006",
	}
)

// Normalize turns a raw scraped item into a Show. Dates without a year are
// resolved relative to today.
func Normalize(raw RawItem, source Source, today civil.Date) (Show, error) {
	name := CleanName(raw.Name)
	if name == "" {
		return Show{}, ErrEmptyName
	}

	date, clock, err := parseDate(raw.Date, source, today)
	if err != nil {
		return Show{}, &ParseError{Source: source, Name: name, Value: raw.Date}
	}

	return Show{
		Name:   name,
		Date:   date,
		Time:   clock,
		Source: source,
		Link:   strings.TrimSpace(raw.Link),
		Image:  strings.TrimSpace(raw.Image),
	}, nil
}

// NormalizeBatch normalizes every raw item of one source. Rejected items are
// logged and dropped; duplicate identity keys keep the first occurrence.
func NormalizeBatch(raws []RawItem, source Source, today civil.Date, logger *slog.Logger) []Show {
	out := make([]Show, 0, len(raws))
	seen := make(map[Key]struct{}, len(raws))
	for _, raw := range raws {
		show, err := Normalize(raw, source, today)
		if err != nil {
			logger.Warn("Dropping raw show", "source", source, "name", raw.Name, "date", raw.Date, "error", err)
			continue
		}
		key := show.Key()
		if _, dup := seen[key]; dup {
			logger.Debug("Collapsing duplicate show", "key", key.String())
			continue
		}
		seen[key] = struct{}{}
		out = append(out, show)
	}
	return out
}

func parseDate(value string, source Source, today civil.Date) (civil.Date, string, error) {
	var clock string
	if m := timeOfDayRegex.FindStringSubmatch(value); m != nil {
		clock = m[1] + " " + strings.ToUpper(m[2]) + "M"
		value = strings.Replace(value, m[0], " ", 1)
	}

	value = strings.ReplaceAll(value, ",", ", ")
	value = strings.TrimRight(CleanName(value), ",@- ")
	value = strings.ReplaceAll(value, " ,", ",")
	if value == "" {
		return civil.Date{}, "", errors.New("empty date")
	}

	var full, yearless []string
	switch source {
	case HouseSeats:
		full, yearless = houseSeatsLayouts, houseSeatsYearless
	case FirstTix:
		full = firstTixLayouts
	default:
		full = append(append([]string{}, houseSeatsLayouts...), firstTixLayouts...)
		yearless = houseSeatsYearless
	}

	for _, layout := range full {
		if t, err := time.Parse(layout, value); err == nil {
			return civil.DateOf(t), clock, nil
		}
	}
	for _, layout := range yearless {
		if t, err := time.Parse(layout, value); err == nil {
			return resolveYear(t.Month(), t.Day(), today), clock, nil
		}
	}
	return civil.Date{}, "", fmt.Errorf("no layout matches %q", value)
}

// resolveYear picks the occurrence of month/day that is not more than
// yearlessLookbackDays before today.
func resolveYear(month time.Month, day int, today civil.Date) civil.Date {
	d := civil.Date{Year: today.Year, Month: month, Day: day}
	if today.DaysSince(d) > yearlessLookbackDays {
		d.Year++
	}
	// Feb 29 moves forward to the next leap year.
	for !d.IsValid() {
		d.Year++
	}
	return d
}
