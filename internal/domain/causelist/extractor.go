// internal/domain/causelist/extractor.go
package causelist

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultHeaderSelector locates the page region that carries the list date
// when the court site renders its usual header. The concrete markup is a
// property of the target site and can be overridden per deployment.
const DefaultHeaderSelector = "#cl-header, .page-header h2"

// blockSelector is the last-resort scan over block/heading/table-cell
// elements whose text looks like a numeric date.
const blockSelector = "h1, h2, h3, h4, p, div, span, td, th"

var (
	numericDatePattern = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{4}\b`)
	wordedDatePattern  = regexp.MustCompile(`(?i)\b\d{1,2}\s+[a-z]{3,9}\s+\d{4}\b`)
)

// Extractor pulls a plausible cause-list date out of a fetched page.
//
// Candidates are tried in priority order: the designated header region first,
// then any date-shaped substring of the whole page text, then the text of
// individual block elements. The first candidate whose value lies within the
// plausibility window wins; everything that fails to parse is skipped
// silently. A page with no plausible date is a normal outcome (the list is
// simply not published yet), reported via the ok result, never as an error.
type Extractor struct {
	HeaderSelector string
	Window         Window

	// Now is the clock used for the plausibility check. Overridable in tests.
	Now func() time.Time
}

func NewExtractor(window Window) *Extractor {
	return &Extractor{
		HeaderSelector: DefaultHeaderSelector,
		Window:         window,
		Now:            time.Now,
	}
}

// Extract returns the first plausible date found in doc.
func (e *Extractor) Extract(doc *goquery.Document) (time.Time, bool) {
	now := e.Now()

	if d, ok := e.fromHeader(doc, now); ok {
		return d, true
	}
	if d, ok := e.fromText(doc.Text(), now); ok {
		return d, true
	}
	return e.fromBlocks(doc, now)
}

// ExtractFromHTML is a convenience wrapper over Extract for callers holding
// raw markup rather than a parsed document.
func (e *Extractor) ExtractFromHTML(html string) (time.Time, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return time.Time{}, false
	}
	return e.Extract(doc)
}

// fromHeader parses the designated header region, the authoritative source
// when present.
func (e *Extractor) fromHeader(doc *goquery.Document, now time.Time) (time.Time, bool) {
	sel := doc.Find(e.HeaderSelector).First()
	if sel.Length() == 0 {
		return time.Time{}, false
	}
	return e.fromText(sel.Text(), now)
}

// fromText scans text for date-shaped substrings in document order and
// returns the first one that parses and passes the plausibility window.
func (e *Extractor) fromText(text string, now time.Time) (time.Time, bool) {
	for _, token := range dateTokens(text) {
		d, _, ok := ParseToken(normalizeToken(token))
		if !ok {
			continue
		}
		if !e.Window.Contains(now, d) {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}

// fromBlocks scans individual block elements whose text matches the numeric
// date pattern.
func (e *Extractor) fromBlocks(doc *goquery.Document, now time.Time) (time.Time, bool) {
	var found time.Time
	var ok bool
	doc.Find(blockSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		token := numericDatePattern.FindString(s.Text())
		if token == "" {
			return true
		}
		d, _, parsed := ParseToken(token)
		if !parsed || !e.Window.Contains(now, d) {
			return true
		}
		found, ok = d, true
		return false
	})
	return found, ok
}

// dateTokens returns every date-shaped substring of text, numeric and worded
// candidates merged into a single document-order sequence.
func dateTokens(text string) []string {
	type hit struct {
		start int
		token string
	}
	var hits []hit
	for _, loc := range numericDatePattern.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{loc[0], text[loc[0]:loc[1]]})
	}
	for _, loc := range wordedDatePattern.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{loc[0], text[loc[0]:loc[1]]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	tokens := make([]string, 0, len(hits))
	for _, h := range hits {
		tokens = append(tokens, h.token)
	}
	return tokens
}

// normalizeToken collapses whitespace and title-cases an alphabetic month so
// that "5  january 2026" parses against "2 January 2006".
func normalizeToken(token string) string {
	fields := strings.Fields(token)
	for i, f := range fields {
		if f == "" || f[0] >= '0' && f[0] <= '9' {
			continue
		}
		fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
	}
	return strings.Join(fields, " ")
}
