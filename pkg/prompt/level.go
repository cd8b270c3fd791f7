// Package prompt holds the interactive pickers used when a command is run
// without the arguments it needs.
package prompt

import (
	"errors"
	"io"
	"strings"

	"github.com/manifoldco/promptui"

	"tableflip.dev/levelreq/pkg/level"
)

// ErrNothingToPick is returned when the list offered is empty.
var ErrNothingToPick = errors.New("prompt: no levels to choose from")

// SelectLevel lets the user search and choose one of records.
func SelectLevel(label string, records []level.Record, in io.ReadCloser, out io.WriteCloser) (level.Record, error) {
	if len(records) == 0 {
		return level.Record{}, ErrNothingToPick
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "➜  {{ .Name | bold }} {{ .Author | cyan }} {{ .Difficulty | faint }}",
		Inactive: "   {{ .Name }} {{ .Author | cyan }} {{ .Difficulty | faint }}",
		Selected: "{{ .Name | bold }} ({{ .ID }})",
		Details: `
--------- Level ----------
{{ "ID:" | faint }}	{{ .ID }}
{{ "Length:" | faint }}	{{ .Length }}
{{ "Rated:" | faint }}	{{ .Rated }}
{{ if .Flagged }}{{ "Flagged:" | faint }}	{{ .FlagReason }}{{ end }}
`,
	}

	searcher := func(input string, index int) bool {
		r := records[index]
		haystack := strings.ToLower(r.Name + " " + r.Author + " " + r.ID)
		input = strings.TrimSpace(strings.ToLower(input))
		return strings.Contains(haystack, input)
	}

	sel := promptui.Select{
		HideHelp:  true,
		Label:     label,
		Items:     records,
		Templates: templates,
		Size:      10,
		Searcher:  searcher,
		Stdin:     in,
		Stdout:    out,
	}

	i, _, err := sel.Run()
	if err != nil {
		return level.Record{}, err
	}
	return records[i], nil
}

// NopCloser wraps w so promptui does not close the command's writer.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
