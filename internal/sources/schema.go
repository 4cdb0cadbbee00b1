package sources

import (
	"time"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

// Kind selects how a site is fetched.
type Kind string

const (
	// KindStatic sites serve the list in the initial markup: one HTTP GET.
	KindStatic Kind = "static"
	// KindDynamic sites need script execution: a headless browser session.
	KindDynamic Kind = "dynamic"
)

// Default limits applied when a site leaves them unset.
const (
	DefaultMaxItems       = 20
	DefaultStaticTimeout  = 10 * time.Second
	DefaultBrowserTimeout = 30 * time.Second
	DefaultWaitTimeout    = 15 * time.Second
	DefaultDetailTimeout  = 5 * time.Second
)

// File is the top-level structure of sites.yaml.
type File struct {
	UserAgent string `yaml:"user_agent"`
	Sites     []Site `yaml:"sites"`
}

// Site describes one community board and how to scrape it.
type Site struct {
	Source  domain.Source `yaml:"source"`
	Kind    Kind          `yaml:"kind"`
	Enabled *bool         `yaml:"enabled,omitempty"`

	ListURL string `yaml:"list_url"`
	// BaseURL resolves relative links and thumbnails found on the list page.
	BaseURL string `yaml:"base_url"`

	MaxItems int           `yaml:"max_items,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`

	// WaitFor is the ordered list of selectors a dynamic page is awaited on.
	WaitFor     []string      `yaml:"wait_for,omitempty"`
	WaitTimeout time.Duration `yaml:"wait_timeout,omitempty"`

	// Rows is an ordered list of row selectors; the first one matching wins.
	Rows []string `yaml:"rows"`
	// Skip drops rows matching any of these selectors (notices, pinned posts).
	Skip []string `yaml:"skip,omitempty"`
	// LinkContains drops rows whose resolved link lacks this substring.
	LinkContains string `yaml:"link_contains,omitempty"`

	Fields Fields `yaml:"fields"`

	// DetailThumbnail selectors are tried on the post page when the list row
	// carries no image.
	DetailThumbnail []string      `yaml:"detail_thumbnail,omitempty"`
	DetailTimeout   time.Duration `yaml:"detail_timeout,omitempty"`

	DefaultAuthor string `yaml:"default_author,omitempty"`
}

// Fields holds the ordered extraction rules for every DealRecord field.
type Fields struct {
	Title     []Rule `yaml:"title"`
	Link      []Rule `yaml:"link"`
	Author    []Rule `yaml:"author,omitempty"`
	Thumbnail []Rule `yaml:"thumbnail,omitempty"`
	Price     []Rule `yaml:"price,omitempty"`
	Shipping  []Rule `yaml:"shipping,omitempty"`
}

// Rule extracts one value from a row. An empty Selector targets the row
// itself; an empty Attr reads the element text.
type Rule struct {
	Selector string `yaml:"selector,omitempty"`
	Attr     string `yaml:"attr,omitempty"`
}

// IsEnabled reports whether the site takes part in crawl cycles.
func (s Site) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// withDefaults fills unset limits.
func (s Site) withDefaults(defaultAuthor string) Site {
	if s.MaxItems <= 0 {
		s.MaxItems = DefaultMaxItems
	}
	if s.Timeout <= 0 {
		if s.Kind == KindDynamic {
			s.Timeout = DefaultBrowserTimeout
		} else {
			s.Timeout = DefaultStaticTimeout
		}
	}
	if s.WaitTimeout <= 0 {
		s.WaitTimeout = DefaultWaitTimeout
	}
	if s.DetailTimeout <= 0 {
		s.DetailTimeout = DefaultDetailTimeout
	}
	if s.DefaultAuthor == "" {
		s.DefaultAuthor = defaultAuthor
	}
	if s.BaseURL == "" {
		s.BaseURL = s.ListURL
	}
	return s
}
