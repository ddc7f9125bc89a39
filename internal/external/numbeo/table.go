package numbeo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrTableNotFound means the ranking table marker is absent from the document
	ErrTableNotFound = errors.New("ranking table not found")
	// ErrNoHeader means the table was found but has no header row
	ErrNoHeader = errors.New("ranking table has no header row")
)

// DefaultSelector is the structural marker of the ranking table
const DefaultSelector = "table#t2"

// Layout declares the row shape of a source-format revision.
// It is never guessed from the document.
type Layout int

const (
	// LayoutRankColumn rows start with a source rank cell, then the country
	LayoutRankColumn Layout = iota
	// LayoutCountryFirst rows start with the country
	LayoutCountryFirst
)

func (l Layout) String() string {
	switch l {
	case LayoutRankColumn:
		return "rank-column"
	case LayoutCountryFirst:
		return "country-first"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// ExtractOptions selects the table and its row shape
type ExtractOptions struct {
	Selector string // CSS selector, DefaultSelector when empty
	Layout   Layout
}

// RankingRow is one data row of the ranking table, cells trimmed and untyped
type RankingRow struct {
	Cells    []string
	RankCell string // leading rank cell in LayoutRankColumn, empty otherwise
}

// Table is the decomposed ranking table
type Table struct {
	Header []string
	Rows   []RankingRow
}

// ExtractTable locates the ranking table in doc and splits it into a header
// and data rows
// ⭐ SSOT: HTML parsing of ranking documents happens here only
func ExtractTable(doc []byte, opts ExtractOptions) (*Table, error) {
	selector := opts.Selector
	if selector == "" {
		selector = DefaultSelector
	}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	table := parsed.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w (selector %q)", ErrTableNotFound, selector)
	}

	var header []string
	var rows []RankingRow

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		// nested tables belong to someone else
		if tr.ParentsFiltered("table").First().Get(0) != table.Get(0) {
			return
		}

		if header == nil {
			if ths := tr.ChildrenFiltered("th"); ths.Length() > 0 {
				header = cellTexts(ths)
				return
			}
		}

		tds := tr.ChildrenFiltered("td")
		if tds.Length() == 0 {
			return
		}
		rows = append(rows, RankingRow{Cells: cellTexts(tds)})
	})

	if len(header) == 0 {
		return nil, fmt.Errorf("%w (selector %q)", ErrNoHeader, selector)
	}

	if opts.Layout == LayoutRankColumn {
		header = header[1:]
		for i := range rows {
			if len(rows[i].Cells) == 0 {
				continue
			}
			rows[i].RankCell = rows[i].Cells[0]
			rows[i].Cells = rows[i].Cells[1:]
		}
	}

	return &Table{Header: header, Rows: rows}, nil
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
