package extractor

import (
	"errors"
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Gaps between glyphs, as a fraction of the font size. A gap wider than
// wordGap becomes a space; one wider than cellGap starts a new line, so that
// each table cell of the statement ends up on its own line.
const (
	wordGap = 0.25
	cellGap = 2.0
)

// method is one way of turning a PDF into page texts.
type method struct {
	name string
	read func(path string) ([]string, error)
}

// methods are tried in order; the first readable result wins.
var methods = []method{
	{"content layout", readContentLayout},
	{"plain text", readPlainText},
	{"pdftotext", readWithPdftotext},
}

// ExtractText reads a PDF file and returns the text of each page, one table
// cell per line. Positioned glyphs from ledongthuc/pdf are tried first, then
// the library's plain text, then the external pdftotext command.
func ExtractText(filePath string) ([]string, error) {
	var errs []error
	for _, m := range methods {
		pages, err := m.read(filePath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
			continue
		}
		if isReadableText(pages) {
			return pages, nil
		}
		errs = append(errs, fmt.Errorf("%s: unreadable output (%d characters)", m.name, totalTextLen(pages)))
	}
	return nil, fmt.Errorf("no readable text in %q, the file may be scanned: %w", filePath, errors.Join(errs...))
}

func readWithPdftotext(filePath string) ([]string, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return nil, err
	}
	// Default reading order, not -layout: cells must stay on separate lines.
	out, err := exec.Command(bin, "-enc", "UTF-8", filePath, "-").Output()
	if err != nil {
		return nil, err
	}
	return splitPages(string(out)), nil
}

func readContentLayout(filePath string) ([]string, error) {
	return withReader(filePath, extractByContent)
}

func readPlainText(filePath string) ([]string, error) {
	return withReader(filePath, extractByPagePlainText)
}

// withReader opens the PDF and runs fn over it. The library panics on some
// malformed files; that is reported as an error.
func withReader(filePath string, fn func(*pdf.Reader, int) []string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	if n == 0 {
		return nil, errors.New("no pages")
	}
	return fn(r, n), nil
}

// glyph is one positioned piece of text on a page.
type glyph struct {
	x, y, w, size float64
	s             string
}

// extractByContent groups glyphs into rows by Y coordinate, then splits
// each row into cells on wide horizontal gaps.
func extractByContent(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		glyphs := make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
		}
		pages = append(pages, layoutPage(glyphs))
	}
	return pages
}

// layoutPage renders glyphs top to bottom, left to right. Every line,
// including the last, ends with a line break.
func layoutPage(glyphs []glyph) string {
	rows := make(map[int][]glyph)
	for _, g := range glyphs {
		// Round Y to nearest integer to group into rows
		y := int(math.Round(g.y))
		rows[y] = append(rows[y], g)
	}

	// PDF Y goes bottom-to-top
	ys := make([]int, 0, len(rows))
	for y := range rows {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	var b strings.Builder
	for _, y := range ys {
		for _, cell := range rowCells(rows[y]) {
			b.WriteString(cell)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// rowCells splits one row of glyphs into trimmed, non-empty cells.
func rowCells(row []glyph) []string {
	sort.SliceStable(row, func(a, b int) bool {
		return row[a].x < row[b].x
	})

	var cells []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}

	for j, g := range row {
		if j > 0 {
			prev := row[j-1]
			size := math.Max(prev.size, 1)
			gap := g.x - (prev.x + prev.w)
			switch {
			case gap > cellGap*size:
				flush()
			case gap > wordGap*size && !strings.HasSuffix(cur.String(), " "):
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.s)
	}
	flush()
	return cells
}

// extractByPagePlainText uses the library's own text decoding per page.
func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fontNames := page.Fonts()
		fonts := make(map[string]*pdf.Font)
		for _, name := range fontNames {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, ensureTrailingNewline(text))
		}
	}
	return pages
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
