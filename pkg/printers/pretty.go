package printers

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/levelreq/pkg/level"
)

// PrettyPrint renders levels for a terminal.
type PrettyPrint struct {
	ShowID bool
	// Out defaults to color.Output.
	Out io.Writer
}

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out != nil {
		return pp.Out
	}
	return color.Output
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " level")
	default:
		_, _ = c.Fprintln(pp.out(), " levels")
	}
}

// Levels prints records as a numbered table.
func (pp *PrettyPrint) Levels(records ...level.Record) {
	if len(records) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.out(), " none\n\n")
		return
	}

	bold := color.New(color.Bold)
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	header := []interface{}{bold.Sprint("#")}
	if pp.ShowID {
		header = append(header, bold.Sprint("ID"))
	}
	header = append(header,
		bold.Sprint("Name"),
		bold.Sprint("Author"),
		bold.Sprint("Difficulty"),
		bold.Sprint("Length"),
		bold.Sprint("Rated"),
		bold.Sprint("Notes"))
	tbl.AddRow(header...)

	for i, r := range records {
		row := []interface{}{strconv.Itoa(i + 1)}
		if pp.ShowID {
			row = append(row, y.Sprint(r.ID))
		}
		row = append(row,
			nameOf(r),
			r.Author,
			Difficulty(r.Difficulty),
			r.Length.String(),
			rated(r),
			notes(r))
		tbl.AddRow(row...)
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
}

// Level prints every field of one record.
func (pp *PrettyPrint) Level(r level.Record) {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.Wrap = true
	tbl.MaxColWidth = 80
	tbl.AddRow(bold.Sprint("Name"), nameOf(r))
	tbl.AddRow(bold.Sprint("ID"), r.ID)
	tbl.AddRow(bold.Sprint("Author"), r.Author)
	tbl.AddRow(bold.Sprint("Difficulty"), Difficulty(r.Difficulty))
	tbl.AddRow(bold.Sprint("Length"), r.Length.String())
	tbl.AddRow(bold.Sprint("Rated"), rated(r))
	tbl.AddRow(bold.Sprint("Stars"), r.Stars)
	tbl.AddRow(bold.Sprint("Downloads"), r.Downloads)
	tbl.AddRow(bold.Sprint("Likes"), r.Likes)
	if d := strings.TrimSpace(r.Description); d != "" {
		tbl.AddRow(bold.Sprint("Description"), d)
	}
	if n := notes(r); n != "" {
		tbl.AddRow(bold.Sprint("Notes"), n)
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(pp.out(), tbl)
}

// Difficulty colors demon tiers red.
func Difficulty(d level.Difficulty) string {
	switch {
	case d == level.ExtremeDemon:
		return color.New(color.FgHiRed, color.Bold).Sprint(d.String())
	case d.IsDemon():
		return color.New(color.FgRed).Sprint(d.String())
	case d == level.NA:
		return color.New(color.Faint).Sprint(d.String())
	}
	return d.String()
}

func nameOf(r level.Record) string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return color.New(color.Faint, color.Italic).Sprint("Unknown Level")
}

func rated(r level.Record) string {
	if r.Rated {
		return fmt.Sprintf("yes (%d★)", r.Stars)
	}
	return "no"
}

func notes(r level.Record) string {
	var parts []string
	if r.Flagged {
		reason := strings.TrimSpace(r.FlagReason)
		if reason == "" {
			reason = level.DefaultFlagReason
		}
		parts = append(parts, color.New(color.FgYellow).Sprint("⚑ "+reason))
	}
	if r.Blacklisted {
		parts = append(parts, color.New(color.FgRed).Sprint("blacklisted"))
	}
	return strings.Join(parts, ", ")
}
