// Package vault decides which vault notes the engine may read and lists them.
package vault

import (
	"path"
	"strings"
)

// DefaultExcludeFolders are skipped unless the configuration says otherwise.
var DefaultExcludeFolders = []string{".obsidian", ".trash"}

// Filters restrict which notes are readable. Empty allow-lists mean no
// restriction.
type Filters struct {
	Folders        []string `json:"folders" yaml:"folders"`
	Tags           []string `json:"tags" yaml:"tags"`
	ExcludeFolders []string `json:"exclude_folders" yaml:"exclude_folders"`
}

// Excluded reports whether any component of rel matches an exclude entry.
// Entries are path.Match patterns, so plain names match by equality.
func (f Filters) Excluded(rel string) bool {
	if len(f.ExcludeFolders) == 0 {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		for _, pat := range f.ExcludeFolders {
			if part == pat {
				return true
			}
			if ok, err := path.Match(pat, part); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// InFolders reports whether rel lies under one of the allowed folders.
func (f Filters) InFolders(rel string) bool {
	if len(f.Folders) == 0 {
		return true
	}
	for _, folder := range f.Folders {
		folder = strings.Trim(strings.ReplaceAll(folder, "\\", "/"), "/")
		if folder == "" {
			return true
		}
		if rel == folder || strings.HasPrefix(rel, folder+"/") {
			return true
		}
	}
	return false
}

// MatchesTags reports whether tags intersect the allowed tag list.
func (f Filters) MatchesTags(tags []string) bool {
	if len(f.Tags) == 0 {
		return true
	}
	for _, want := range f.Tags {
		want = strings.TrimPrefix(want, "#")
		for _, have := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ShouldRead evaluates the filters against a vault-relative path in order:
// exclusion, folder allow-list, then tag allow-list. loadTags is only called
// when a tag allow-list is configured; its error is returned unchanged.
func ShouldRead(rel string, f Filters, loadTags func() ([]string, error)) (bool, error) {
	if f.Excluded(rel) {
		return false, nil
	}
	if !f.InFolders(rel) {
		return false, nil
	}
	if len(f.Tags) == 0 {
		return true, nil
	}
	tags, err := loadTags()
	if err != nil {
		return false, err
	}
	return f.MatchesTags(tags), nil
}
