package media

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogEntry carries descriptive metadata for one file. The indexer merges
// it into the media table; files without an entry get a title derived from
// their name.
type CatalogEntry struct {
	File   string `yaml:"file"`
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
	Album  string `yaml:"album"`
}

type catalogFile struct {
	Tracks []CatalogEntry `yaml:"tracks"`
}

// Metadata maps slash-separated relative filenames to catalog entries.
type Metadata map[string]CatalogEntry

// LoadCatalog reads a YAML catalog of the form:
//
//	tracks:
//	  - file: 2024/05/interview.wav
//	    title: Morning Interview
//	    artist: Jane Doe
//
// An empty path returns an empty catalog.
func LoadCatalog(p string) (Metadata, error) {
	meta := Metadata{}
	if p == "" {
		return meta, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", p, err)
	}

	for i, entry := range cf.Tracks {
		key := path.Clean(strings.TrimPrefix(strings.ReplaceAll(entry.File, `\`, "/"), "/"))
		if entry.File == "" || key == "." {
			return nil, fmt.Errorf("catalog %s: track %d has no file", p, i+1)
		}
		entry.File = key
		meta[key] = entry
	}
	return meta, nil
}

// TitleFromFilename derives a display title from a filename.
//
// Example:
//
//	TitleFromFilename("2024/05/morning_rain-take2.wav") // "morning rain take2"
func TitleFromFilename(filename string) string {
	base := path.Base(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return strings.Join(strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
}
