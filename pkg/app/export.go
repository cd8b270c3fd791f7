package app

import (
	"fmt"
	"io"
	"strings"

	"tableflip.dev/levelreq/pkg/level"
)

// ExportTitle heads every export.
const ExportTitle = "HwGDReqs Queue Export"

// Export renders records as the plain text report streamers paste into
// notes or chat. It has no side effects.
func Export(records []level.Record) string {
	var b strings.Builder
	b.WriteString(ExportTitle + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title())
		fmt.Fprintf(&b, "   Author: %s\n", r.Author)
		fmt.Fprintf(&b, "   Difficulty: %s\n", r.Difficulty)
		fmt.Fprintf(&b, "   Length: %s\n", r.Length)
		if r.Flagged {
			fmt.Fprintf(&b, "   Flagged: %s\n", r.FlagReason)
		}
		if r.Blacklisted {
			b.WriteString("   Blacklisted\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ExportTo writes Export(records) to w.
func ExportTo(w io.Writer, records []level.Record) error {
	_, err := io.WriteString(w, Export(records))
	return err
}
