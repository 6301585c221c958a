// Package parser extracts frontmatter, wikilinks, and tags from Markdown content.
package parser

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/osmen/vaultsync/internal/models"
)

const delim = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	tagRe      = regexp.MustCompile(`(?m)(?:^|\s)#([\p{L}_][\p{L}\p{N}_/-]*)`)
)

// Result holds the output of parsing a Markdown file. Parsing never fails:
// anything the codec could not understand is reported in Warnings and the
// affected part degrades to empty.
type Result struct {
	Frontmatter models.Frontmatter
	Body        string
	Links       []string
	Tags        []string
	Warnings    []string
}

// Parse extracts frontmatter, body, wikilinks, and tags from raw Markdown bytes.
func Parse(data []byte) *Result {
	fm, body, warnings := SplitFrontmatter(string(data))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       ExtractLinks(body),
		Tags:        ExtractTags(body, fm),
		Warnings:    warnings,
	}
}

// SplitFrontmatter separates the frontmatter block from the Markdown body.
// The text must start with "---"; it is split on the first two "---"
// occurrences. Without a closing delimiter the whole text is body.
func SplitFrontmatter(text string) (models.Frontmatter, string, []string) {
	if !strings.HasPrefix(text, delim) {
		return nil, text, nil
	}
	parts := strings.SplitN(text, delim, 3)
	if len(parts) < 3 {
		return nil, text, []string{"frontmatter: missing closing delimiter"}
	}

	body := strings.TrimLeft(parts[2], "\r\n")

	fm, err := decodeYAML(parts[1])
	if err == nil {
		return fm, body, nil
	}
	warnings := []string{"frontmatter: " + err.Error() + "; using line grammar"}
	return parseLines(parts[1]), body, warnings
}

// ExtractLinks returns wikilink targets in order of first occurrence.
// [[Target|Alias]] yields Target. Duplicates are kept.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

// ExtractTags unions the frontmatter "tags" field with inline #tags from body.
// Case is preserved and the first occurrence wins the position.
func ExtractTags(body string, fm models.Frontmatter) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	if raw, ok := fm.Get("tags"); ok {
		switch v := raw.(type) {
		case []string:
			for _, t := range v {
				add(t)
			}
		case string:
			for _, t := range strings.Split(v, ",") {
				add(t)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// Title derives a note title from its vault-relative path (the file stem).
func Title(relPath string) string {
	base := path.Base(filepath.ToSlash(relPath))
	return strings.TrimSuffix(base, path.Ext(base))
}
