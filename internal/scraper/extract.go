package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
	"github.com/MrSnakeDoc/hotdeals/internal/sources"
)

// Extractor turns a parsed list page into DealRecords using a site's ordered
// strategy lists. Static and dynamic adapters share it.
type Extractor struct {
	site sources.Site
}

// NewExtractor creates an extractor for one site definition.
func NewExtractor(site sources.Site) *Extractor {
	if site.MaxItems <= 0 {
		site.MaxItems = sources.DefaultMaxItems
	}
	return &Extractor{site: site}
}

// Extract walks the rows of doc in document order. Rows that fail to produce
// a valid record are skipped; the result holds at most MaxItems records.
func (e *Extractor) Extract(doc *goquery.Document) []domain.DealRecord {
	rows := e.rows(doc)
	out := make([]domain.DealRecord, 0, min(rows.Length(), e.site.MaxItems))
	seen := make(map[string]struct{}, rows.Length())

	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if e.skipped(row) {
			return true
		}
		rec, ok := e.record(row)
		if !ok {
			return true
		}
		if _, dup := seen[rec.Link]; dup {
			return true
		}
		seen[rec.Link] = struct{}{}
		out = append(out, rec)
		return len(out) < e.site.MaxItems
	})

	return out
}

// rows returns the matches of the first row selector that finds anything.
func (e *Extractor) rows(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.site.Rows {
		if rows := doc.Find(sel); rows.Length() > 0 {
			return rows
		}
	}
	return doc.Selection.Slice(0, 0)
}

func (e *Extractor) skipped(row *goquery.Selection) bool {
	for _, sel := range e.site.Skip {
		if row.Is(sel) || row.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func (e *Extractor) record(row *goquery.Selection) (domain.DealRecord, bool) {
	f := e.site.Fields

	link := domain.AbsoluteURL(e.site.BaseURL, firstValue(row, f.Link))
	if link == "" {
		return domain.DealRecord{}, false
	}
	if e.site.LinkContains != "" && !strings.Contains(link, e.site.LinkContains) {
		return domain.DealRecord{}, false
	}

	rawTitle := firstValue(row, f.Title)
	title := domain.CleanTitle(rawTitle)
	if title == "" {
		title = domain.CleanText(rawTitle)
	}

	shippingText := firstValue(row, f.Shipping)
	rec := domain.DealRecord{
		Source:    e.site.Source,
		Title:     title,
		Link:      link,
		Price:     domain.NormalizePrice(firstValue(row, f.Price), rawTitle),
		Shipping:  domain.ClassifyShipping(rawTitle, shippingText),
		Author:    domain.CleanText(firstValue(row, f.Author)),
		Thumbnail: domain.AbsoluteURL(e.site.BaseURL, firstValue(row, f.Thumbnail)),
	}
	if rec.Author == "" {
		rec.Author = e.site.DefaultAuthor
	}

	if err := rec.Validate(); err != nil {
		return domain.DealRecord{}, false
	}
	return rec, true
}

// firstValue applies rules in order and returns the first non-empty value.
func firstValue(row *goquery.Selection, rules []sources.Rule) string {
	for _, r := range rules {
		if v := ruleValue(row, r); v != "" {
			return v
		}
	}
	return ""
}

func ruleValue(row *goquery.Selection, r sources.Rule) string {
	sel := row
	if r.Selector != "" {
		sel = row.Find(r.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if r.Attr == "" {
		return domain.CleanText(sel.Text())
	}
	v, _ := sel.Attr(r.Attr)
	return strings.TrimSpace(v)
}

// firstImage returns the first image source found by selectors, checking
// lazy-load attributes before src.
func firstImage(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var src string
		doc.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			for _, attr := range []string{"data-src", "data-original", "src"} {
				if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
					src = strings.TrimSpace(v)
					return false
				}
			}
			return true
		})
		if src != "" {
			return src
		}
	}
	return ""
}
