package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// writeTable prints rows as a pipe table. The first row is the header. Widths
// are display widths so accented city names stay aligned.
func writeTable(w io.Writer, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]), 3)
		}
	}

	var sb strings.Builder
	line := func(cells []string) {
		sb.WriteString("|")
		for i, width := range widths {
			content := ""
			if i < len(cells) {
				content = cells[i]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, width))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	line(rows[0])
	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}
	line(sep)
	for _, row := range rows[1:] {
		line(row)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
