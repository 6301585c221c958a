package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osmen/vaultsync/internal/models"
)

// decodeYAML decodes a frontmatter block with yaml.v3, keeping key order.
// Scalars stay strings; sequences become []string.
func decodeYAML(block string) (models.Frontmatter, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("block is not a key/value mapping")
	}

	fm := make(models.Frontmatter, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := strings.TrimSpace(root.Content[i].Value)
		if key == "" {
			continue
		}
		fm = append(fm, models.Field{Key: key, Value: nodeValue(root.Content[i+1])})
	}
	return fm, nil
}

func nodeValue(n *yaml.Node) any {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias != nil {
			return nodeValue(n.Alias)
		}
		return ""
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return ""
		}
		return strings.TrimSpace(n.Value)
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			switch v := nodeValue(item).(type) {
			case string:
				out = append(out, v)
			case []string:
				out = append(out, v...)
			}
		}
		return out
	default:
		raw, err := yaml.Marshal(n)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}
}

// parseLines is the lenient fallback grammar: "key: value" lines,
// "[a, b, c]" inline lists, and "- item" continuation lines.
func parseLines(block string) models.Frontmatter {
	var fm models.Frontmatter
	lastKey := ""
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") && lastKey != "" {
			item := unquote(strings.TrimSpace(trimmed[2:]))
			prev, _ := fm.Get(lastKey)
			list, _ := prev.([]string)
			if s, ok := prev.(string); ok && s != "" {
				list = []string{s}
			}
			fm = fm.Set(lastKey, append(list, item))
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		val := strings.TrimSpace(trimmed[idx+1:])
		lastKey = key
		if strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]") {
			fm = fm.Set(key, splitInlineList(val[1:len(val)-1]))
			continue
		}
		fm = fm.Set(key, unquote(val))
	}
	return fm
}

func splitInlineList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		item = unquote(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Render serializes fm and body into a Markdown document:
//
//	---
//	key: value
//	---
//
//	body
//
// An empty fm renders the body alone.
func Render(fm models.Frontmatter, body string) string {
	if len(fm) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(delim + "\n")
	for _, fld := range fm {
		b.WriteString(fld.Key)
		b.WriteString(": ")
		b.WriteString(renderValue(fld.Value))
		b.WriteByte('\n')
	}
	b.WriteString(delim + "\n\n")
	b.WriteString(body)
	return b.String()
}

func renderValue(v any) string {
	switch x := v.(type) {
	case string:
		return renderScalar(x)
	case []string:
		items := make([]string, len(x))
		for i, s := range x {
			if strings.ContainsAny(s, ",[]") {
				items[i] = strconv.Quote(s)
			} else {
				items[i] = renderScalar(s)
			}
		}
		return "[" + strings.Join(items, ", ") + "]"
	case []any:
		items := make([]string, len(x))
		for i, s := range x {
			items[i] = fmt.Sprint(s)
		}
		return renderValue(items)
	case time.Time:
		return x.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return renderScalar(fmt.Sprint(x))
	}
}

func renderScalar(s string) string {
	if s == "" {
		return `""`
	}
	if strings.TrimSpace(s) != s ||
		strings.Contains(s, ": ") ||
		strings.Contains(s, " #") ||
		strings.HasPrefix(s, "- ") ||
		strings.ContainsAny(s, "\n\r") ||
		strings.ContainsAny(s[:1], "[]{}\"'#&*!|>%@`,") {
		return strconv.Quote(s)
	}
	return s
}
