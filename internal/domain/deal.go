package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Source identifies a community site. The value is what gets stored in the
// hotdeals.source column and what ?source= filters on.
type Source string

const (
	SourcePpomppu    Source = "ppomppu"
	SourceRuliweb    Source = "ruliweb"
	SourceZod        Source = "zod"
	SourceQuasarzone Source = "quasarzone"
	SourceFmkorea    Source = "fmkorea"
)

type sourceInfo struct {
	name    string
	referer string
}

var knownSources = map[Source]sourceInfo{
	SourcePpomppu:    {name: "뽐뿌", referer: "https://www.ppomppu.co.kr/"},
	SourceRuliweb:    {name: "루리웹", referer: "https://bbs.ruliweb.com/"},
	SourceZod:        {name: "조드", referer: "https://zod.kr/"},
	SourceQuasarzone: {name: "퀘이사존", referer: "https://quasarzone.com/"},
	SourceFmkorea:    {name: "에펨코리아", referer: "https://www.fmkorea.com/"},
}

// DefaultReferer is sent by the image proxy for sources it does not know.
const DefaultReferer = "https://www.google.com/"

// AllSources returns the known sources in a stable order.
func AllSources() []Source {
	return []Source{SourcePpomppu, SourceRuliweb, SourceZod, SourceQuasarzone, SourceFmkorea}
}

// ParseSource accepts either the key ("ppomppu") or the display name ("뽐뿌").
func ParseSource(s string) (Source, bool) {
	s = strings.TrimSpace(s)
	if _, ok := knownSources[Source(strings.ToLower(s))]; ok {
		return Source(strings.ToLower(s)), true
	}
	for src, info := range knownSources {
		if info.name == s {
			return src, true
		}
	}
	return "", false
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	_, ok := knownSources[s]
	return ok
}

// DisplayName is the Korean site name shown to users and embedded in documents.
func (s Source) DisplayName() string {
	if info, ok := knownSources[s]; ok {
		return info.name
	}
	return string(s)
}

// Referer is the header value image hosts of this site expect.
func (s Source) Referer() string {
	if info, ok := knownSources[s]; ok {
		return info.referer
	}
	return DefaultReferer
}

// Placeholder values used when a field could not be extracted.
const (
	PriceUnknown    = "가격 정보 없음"
	ShippingFree    = "무료배송"
	ShippingUnknown = "배송비 정보 없음"
	AuthorUnknown   = "정보 없음"
)

var (
	ErrMissingLink  = errors.New("deal has no link")
	ErrRelativeLink = errors.New("deal link is not an absolute http(s) url")
	ErrMissingTitle = errors.New("deal has no title")
	ErrBadSource    = errors.New("deal has an unknown source")
)

// DealRecord is one post as extracted by a source adapter.
type DealRecord struct {
	Thumbnail string `json:"thumbnail"`
	Source    Source `json:"source"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Shipping  string `json:"shipping"`
	Link      string `json:"link"` // natural key
}

// Validate checks the invariants a record must hold before leaving an adapter.
func (r DealRecord) Validate() error {
	if r.Link == "" {
		return ErrMissingLink
	}
	if !IsAbsoluteURL(r.Link) {
		return fmt.Errorf("%w: %q", ErrRelativeLink, r.Link)
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrMissingTitle
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrBadSource, r.Source)
	}
	return nil
}

// StoredDeal is a persisted DealRecord.
//
// CreatedAt is "first seen": it is set on insert and never refreshed when a
// later crawl updates the mutable fields.
type StoredDeal struct {
	DealRecord
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"-"`
}

// TimestampLayout is how created_at is stored and rendered (wall clock in the
// configured zone, no offset).
const TimestampLayout = "2006-01-02 15:04:05"

// IsAbsoluteURL reports whether raw is an http(s) URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// AbsoluteURL resolves protocol-relative ("//cdn/x.jpg"), root-relative
// ("/board/1") and document-relative ("view.php?no=1") references against base.
// It returns "" when the result is not an absolute http(s) URL.
func AbsoluteURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "#") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || b.Host == "" {
			// No usable base: protocol-relative references can still be fixed.
			if strings.HasPrefix(raw, "//") {
				return AbsoluteURL("", "https:"+raw)
			}
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return ""
	}
	return ref.String()
}
