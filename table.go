package main

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"showcheck/email"
	"showcheck/group"
	"showcheck/pkg/shows"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// cardStatus is the marker shown next to a card after a run.
type cardStatus int

const (
	statusNone cardStatus = iota
	statusNotified
	statusNew
)

func (s cardStatus) String() string {
	switch s {
	case statusNew:
		return "NEW"
	case statusNotified:
		return "notified"
	default:
		return ""
	}
}

// renderCards lists cards with one row each. status may be nil.
func renderCards(cards []group.Card, status func(group.Card) cardStatus) string {
	headers := []string{"Show", "Source", "Dates", "Rare"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}
	if status != nil {
		headers = append([]string{"Status"}, headers...)
		aligns = append([]columnAlignment{alignLeft}, aligns...)
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rare := ""
		if c.Rare {
			rare = "RARE"
		}
		row := []string{c.Name, string(c.Source), slotDates(c), rare}
		if status != nil {
			row = append([]string{status(c).String()}, row...)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

func slotDates(c group.Card) string {
	dates := make([]string, 0, len(c.Slots))
	for _, s := range c.Slots {
		d := s.Date.In(time.UTC).Format(email.DateLayout)
		if s.Time != "" {
			d += " " + s.Time
		}
		dates = append(dates, d)
	}
	return strings.Join(dates, "\n")
}

// freshStatus marks cards holding at least one fresh show as new and every
// other card as already notified.
func freshStatus(fresh []shows.Show) func(group.Card) cardStatus {
	keys := make(map[string]struct{}, len(fresh))
	for _, s := range fresh {
		keys[string(s.Source)+"|"+shows.NormalizeName(s.Name)] = struct{}{}
	}
	return func(c group.Card) cardStatus {
		if _, ok := keys[string(c.Source)+"|"+shows.NormalizeName(c.Name)]; ok {
			return statusNew
		}
		return statusNotified
	}
}
