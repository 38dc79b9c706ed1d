package textpage

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWrapPacksWordsGreedily(t *testing.T) {
	lines := Wrap("the quick brown fox jumps over the lazy dog", 25)
	for _, line := range lines {
		if utf8.RuneCountInString(line) > 25 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
	if got := strings.Join(lines, " "); got != "the quick brown fox jumps over the lazy dog" {
		t.Fatalf("word order lost: %q", got)
	}
}

func TestWrapPreservesWordSequence(t *testing.T) {
	input := "Lorem ipsum dolor sit amet, consectetur adipiscing elit.\n\nSed do eiusmod tempor incididunt ut labore."
	lines := Wrap(input, 25)
	got := strings.Fields(strings.Join(lines, " "))
	want := strings.Fields(input)
	if len(got) != len(want) {
		t.Fatalf("word count %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWrapPreservesBlankLines(t *testing.T) {
	lines := Wrap("first\n\nsecond", 25)
	want := []string{"first", "", "second"}
	if len(lines) != len(want) {
		t.Fatalf("lines %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapHandlesEscapedNewlines(t *testing.T) {
	lines := Wrap(`one\ntwo`, 25)
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("escaped newline not split: %q", lines)
	}
}

func TestWrapNeverBreaksOverlongWord(t *testing.T) {
	long := strings.Repeat("x", 40)
	lines := Wrap("short "+long+" tail", 25)
	found := false
	for _, line := range lines {
		if line == long {
			found = true
		}
	}
	if !found {
		t.Fatalf("overlong word was broken: %q", lines)
	}
}

func TestWrapCountsRunesNotBytes(t *testing.T) {
	// Twelve CJK runes fit exactly one CJK-profile line despite being 36
	// UTF-8 bytes.
	word := strings.Repeat("語", 12)
	lines := Wrap(word, CJK.CharsPerLine)
	if len(lines) != 1 || lines[0] != word {
		t.Fatalf("CJK width miscounted: %q", lines)
	}
}

func TestPaginatePadsToMinimum(t *testing.T) {
	pages := Paginate(Wrap("hello world", 25), Latin)
	if len(pages) != MinPages {
		t.Fatalf("page count %d, want %d", len(pages), MinPages)
	}
	for i, p := range pages {
		if len(p.Lines) != Latin.LinesPerPage {
			t.Fatalf("page %d has %d lines", i, len(p.Lines))
		}
	}
	// Padding lines are single spaces, as the device page table expects.
	if pages[0].Lines[1] != " " || pages[13].Lines[9] != " " {
		t.Fatalf("padding lines %q / %q", pages[0].Lines[1], pages[13].Lines[9])
	}
}

func TestPaginateLongDocumentExceedsMinimum(t *testing.T) {
	lines := make([]string, 150)
	for i := range lines {
		lines[i] = "line"
	}
	pages := Paginate(lines, Latin)
	if len(pages) != 15 {
		t.Fatalf("page count %d, want 15", len(pages))
	}
}

func TestRenderShape(t *testing.T) {
	p := Page{Lines: []string{"a", "b", "c"}}
	if got := p.Render(); got != "a\nb\nc \n" {
		t.Fatalf("render %q", got)
	}
}

func TestFitTrimsLastLongLine(t *testing.T) {
	p := Page{Lines: []string{"first line", "second line that is quite long"}}
	before := p.renderedSize()
	if err := p.Fit(before - 5); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if p.renderedSize() > before-5 {
		t.Fatalf("page still %d bytes", p.renderedSize())
	}
	if p.Lines[0] != "first line" {
		t.Fatalf("earlier line trimmed: %q", p.Lines[0])
	}
	if len(p.Lines[1]) >= len("second line that is quite long") {
		t.Fatalf("last line not trimmed: %q", p.Lines[1])
	}
}

func TestFitReportsImpossibleBudget(t *testing.T) {
	p := Page{Lines: []string{" ", " ", " "}}
	if err := p.Fit(2); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestFormatEnforcesBudgetAcrossPages(t *testing.T) {
	text := strings.Repeat("wordy sentence fragment here ", 100)
	pages, err := Format(text, Latin, 200)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	for i, p := range pages {
		if size := p.renderedSize(); size > 200 {
			t.Fatalf("page %d renders %d bytes", i, size)
		}
	}
}

func TestFormatPadsToMinimumDocument(t *testing.T) {
	pages, err := Format("hello", Latin, 0)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(pages) != MinPages {
		t.Fatalf("page count %d, want %d", len(pages), MinPages)
	}
	for i, p := range pages {
		if len(p.Lines) != Latin.LinesPerPage {
			t.Fatalf("page %d has %d lines", i, len(p.Lines))
		}
	}
}
