package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/pixelhosted/neosync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".config", "neosync.conf")
)

// SiteConfig describes one site section of the config file. Immutable once
// loaded; a run owns it for its duration.
type SiteConfig struct {
	Name              string
	APIKey            string
	RootDir           string
	SyncDisallowed    bool
	SyncHidden        bool
	SyncVCS           bool
	AllowedExtensions []string
	RemoveEmptyDirs   bool
}

// LogValue redacts the api key so configs can be logged safely.
func (c *SiteConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("site", c.Name),
		slog.String("api_key", utils.MaskSecret(c.APIKey)),
		slog.String("root_dir", c.RootDir),
		slog.Bool("sync_disallowed", c.SyncDisallowed),
		slog.Bool("sync_hidden", c.SyncHidden),
		slog.Bool("sync_vcs", c.SyncVCS),
		slog.Any("allowed_extensions", c.AllowedExtensions),
		slog.Bool("remove_empty_dirs", c.RemoveEmptyDirs),
	)
}

func (c *SiteConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("site %q: api_key is required", c.Name)
	}
	if c.RootDir == "" {
		return fmt.Errorf("site %q: root_dir is required", c.Name)
	}
	return nil
}

// Load parses an ini config file into site configs, in file order.
// Each section is one site; the section name only labels the site, the
// api_key identifies it to the server.
func Load(path string) ([]*SiteConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config read %q: %w", path, err)
	}

	var sites []*SiteConfig
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}

		site := &SiteConfig{
			Name:            section.Name(),
			APIKey:          section.Key("api_key").String(),
			SyncDisallowed:  section.Key("sync_disallowed").MustBool(false),
			SyncHidden:      section.Key("sync_hidden").MustBool(false),
			SyncVCS:         section.Key("sync_vcs").MustBool(false),
			RemoveEmptyDirs: section.Key("remove_empty_dirs").MustBool(true),
		}

		if raw := section.Key("allowed_extensions").String(); raw != "" {
			site.AllowedExtensions = normalizeExtensions(strings.Fields(raw))
		}

		rootDir := section.Key("root_dir").String()
		if rootDir != "" {
			resolved, err := utils.ResolvePath(rootDir)
			if err != nil {
				return nil, fmt.Errorf("site %q: root_dir: %w", site.Name, err)
			}
			site.RootDir = resolved
		}

		if err := site.Validate(); err != nil {
			return nil, err
		}

		sites = append(sites, site)
	}

	if len(sites) == 0 {
		return nil, fmt.Errorf("config %q has no site sections", path)
	}

	return sites, nil
}

// normalizeExtensions lowercases each extension and ensures a leading dot, so
// "HTML" and ".html" configure the same filter.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
