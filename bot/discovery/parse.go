package discovery

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Listing pages present one result per table row: category, name, links
// (torrent file anchor then magnet anchor), size, date. The magnet is the
// second anchor of the links cell. A row that does not match is skipped.
const (
	cellName  = 1
	cellLinks = 2
	cellSize  = 3
	minCells  = 4
)

var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// parseListing extracts up to limit ranked rows from an HTML result page.
func parseListing(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var out []Result
	doc.Find("table tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		row, ok := parseRow(tr)
		if !ok {
			return true
		}
		row.Rank = len(out) + 1
		out = append(out, row)
		return true
	})
	return out, nil
}

func parseRow(tr *goquery.Selection) (Result, bool) {
	cells := tr.Find("td")
	if cells.Length() < minCells {
		return Result{}, false
	}

	// The name cell may carry a comments anchor first; the title link is last.
	title := strings.TrimSpace(cells.Eq(cellName).Find("a").Last().Text())
	if title == "" {
		return Result{}, false
	}

	links := cells.Eq(cellLinks).Find("a")
	if links.Length() < 2 {
		return Result{}, false
	}
	magnet, ok := links.Eq(1).Attr("href")
	if !ok || !strings.HasPrefix(magnet, "magnet:") {
		return Result{}, false
	}

	size := strings.TrimSpace(cells.Eq(cellSize).Text())
	if size == "" {
		return Result{}, false
	}

	return Result{
		Title:    NormalizeTitle(title),
		RawTitle: title,
		Size:     size,
		Magnet:   magnet,
	}, true
}

// NormalizeTitle strips bracketed and parenthesised annotations (release
// group tags, resolution and hash markers) and collapses whitespace.
func NormalizeTitle(title string) string {
	cleaned := annotationRe.ReplaceAllString(title, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		// Titles made entirely of annotations keep their original form.
		return strings.TrimSpace(title)
	}
	return cleaned
}

// TruncateTitle shortens a display title to max runes, appending an ellipsis.
// The full value stays available on Result.RawTitle for downstream lookup.
func TruncateTitle(title string, max int) string {
	if max <= 1 {
		return title
	}
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max-1]) + "…"
}
