package sources

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/hotdeals/internal/domain"
)

//go:embed sites.yaml
var defaultSites []byte

// DefaultUserAgent is sent when sites.yaml does not set one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Loader handles loading and validation of site definitions.
type Loader struct {
	filePath string
}

// NewLoader creates a loader. An empty filePath selects the embedded defaults.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, parses and validates the site definitions.
func (l *Loader) Load() (File, error) {
	data := defaultSites
	if l.filePath != "" {
		raw, err := os.ReadFile(l.filePath)
		if err != nil {
			return File{}, fmt.Errorf("failed to read sites file: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes sites YAML, expands ${VAR} references and applies defaults.
func Parse(data []byte) (File, error) {
	data = expandEnv(data)

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse sites yaml: %w", err)
	}

	if file.UserAgent == "" {
		file.UserAgent = DefaultUserAgent
	}

	seen := make(map[domain.Source]bool, len(file.Sites))
	for i, site := range file.Sites {
		if err := validate(site); err != nil {
			return File{}, fmt.Errorf("site #%d (%s): %w", i+1, site.Source, err)
		}
		if seen[site.Source] {
			return File{}, fmt.Errorf("site %s defined twice", site.Source)
		}
		seen[site.Source] = true
		file.Sites[i] = site.withDefaults(domain.AuthorUnknown)
	}

	if len(file.Sites) == 0 {
		return File{}, fmt.Errorf("no sites defined")
	}

	return file, nil
}

// Enabled returns the sites that take part in crawl cycles.
func (f File) Enabled() []Site {
	out := make([]Site, 0, len(f.Sites))
	for _, s := range f.Sites {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

func validate(s Site) error {
	if !s.Source.Valid() {
		return fmt.Errorf("unknown source %q", s.Source)
	}
	if s.Kind != KindStatic && s.Kind != KindDynamic {
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if !domain.IsAbsoluteURL(s.ListURL) {
		return fmt.Errorf("list_url %q is not an absolute url", s.ListURL)
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("no row selectors")
	}
	if len(s.Fields.Title) == 0 || len(s.Fields.Link) == 0 {
		return fmt.Errorf("title and link rules are required")
	}
	return nil
}

// envRefRe matches ${VAR} references. Bare $ signs are left alone.
var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references so list URLs can point at mirrors.
// Unset variables are kept verbatim.
func expandEnv(data []byte) []byte {
	return envRefRe.ReplaceAllFunc(data, func(ref []byte) []byte {
		key := string(envRefRe.FindSubmatch(ref)[1])
		if v, ok := os.LookupEnv(key); ok {
			return []byte(v)
		}
		return ref
	})
}
