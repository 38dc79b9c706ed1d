// Package textpage wraps raw text into fixed-size pages sized for the
// device's content screen. Widths are measured in runes, budgets in UTF-8
// bytes, matching what the firmware counts on each side of the link.
package textpage

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrBudgetExceeded reports a page that cannot be shrunk under the byte
// budget because every line is already at minimum length.
var ErrBudgetExceeded = errors.New("textpage: page exceeds byte budget")

// MinPages pads every document so the device's fixed page table is fully
// populated.
const MinPages = 14

// renderOverhead is the leading newline the content encoder prepends to
// every page; the byte budget covers it.
const renderOverhead = 1

// Profile selects the line width for a script family. CJK glyphs render
// roughly twice as wide as Latin ones.
type Profile struct {
	CharsPerLine int
	LinesPerPage int
}

var (
	Latin = Profile{CharsPerLine: 25, LinesPerPage: 10}
	CJK   = Profile{CharsPerLine: 12, LinesPerPage: 10}
)

// Page is exactly LinesPerPage lines of wrapped text, blank-padded.
type Page struct {
	Lines []string
}

// Render produces the page body the content encoder sends: lines joined by
// newlines with the trailing " \n" the firmware expects.
func (p Page) Render() string {
	return strings.Join(p.Lines, "\n") + " \n"
}

// renderedSize is the UTF-8 byte count of the page as framed on the wire.
func (p Page) renderedSize() int {
	n := renderOverhead + len(" \n")
	for i, line := range p.Lines {
		if i > 0 {
			n++
		}
		n += len(line)
	}
	return n
}

// Fit shrinks the page in place until its rendered form (framing included)
// is at most maxBytes, trimming one rune at a time from the last line still
// longer than one character. Returns ErrBudgetExceeded when no line can be
// shortened further.
func (p *Page) Fit(maxBytes int) error {
	for p.renderedSize() > maxBytes {
		trimmed := false
		for i := len(p.Lines) - 1; i >= 0; i-- {
			if utf8.RuneCountInString(p.Lines[i]) > 1 {
				_, size := utf8.DecodeLastRuneInString(p.Lines[i])
				p.Lines[i] = p.Lines[i][:len(p.Lines[i])-size]
				trimmed = true
				break
			}
		}
		if !trimmed {
			return ErrBudgetExceeded
		}
	}
	return nil
}

// Wrap splits text on literal and escaped newlines and greedily packs words
// onto lines of at most charsPerLine runes. Blank input lines survive as
// empty output lines; a single word longer than the width is emitted whole,
// never broken.
func Wrap(text string, charsPerLine int) []string {
	text = strings.ReplaceAll(text, `\n`, "\n")

	var wrapped []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			wrapped = append(wrapped, "")
			continue
		}
		current := ""
		width := 0
		for _, word := range strings.Fields(line) {
			w := utf8.RuneCountInString(word)
			if width+w+1 > charsPerLine {
				if current != "" {
					wrapped = append(wrapped, current)
				}
				current = word
				width = w + 1
			} else {
				if current != "" {
					current += " "
				}
				current += word
				width += w + 1
			}
		}
		if current != "" {
			wrapped = append(wrapped, current)
		}
	}
	return wrapped
}

// Paginate groups wrapped lines into pages of profile.LinesPerPage lines,
// padding short pages with single spaces and the page list to MinPages with
// fully blank pages.
func Paginate(lines []string, profile Profile) []Page {
	perPage := profile.LinesPerPage
	for len(lines) < perPage {
		lines = append(lines, " ")
	}

	var pages []Page
	for i := 0; i < len(lines); i += perPage {
		page := Page{Lines: make([]string, perPage)}
		for j := 0; j < perPage; j++ {
			if i+j < len(lines) {
				page.Lines[j] = lines[i+j]
			} else {
				page.Lines[j] = " "
			}
		}
		pages = append(pages, page)
	}

	for len(pages) < MinPages {
		pages = append(pages, blankPage(perPage))
	}
	return pages
}

func blankPage(perPage int) Page {
	lines := make([]string, perPage)
	for i := range lines {
		lines[i] = " "
	}
	return Page{Lines: lines}
}

// Format is the full pipeline: wrap, paginate, and when maxBytes > 0 shrink
// every page under the byte budget.
func Format(text string, profile Profile, maxBytes int) ([]Page, error) {
	pages := Paginate(Wrap(text, profile.CharsPerLine), profile)
	if maxBytes > 0 {
		for i := range pages {
			if err := pages[i].Fit(maxBytes); err != nil {
				return nil, err
			}
		}
	}
	return pages, nil
}
