// Package models defines the domain types shared by the sync engine.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Note is a Markdown file in the vault as seen by readers of the engine.
type Note struct {
	Path        string      `json:"path"`
	Title       string      `json:"title"`
	Content     string      `json:"content,omitempty"`
	Frontmatter Frontmatter `json:"frontmatter,omitempty"`
	Tags        []string    `json:"tags"`
	Links       []string    `json:"links"`
	ModTime     time.Time   `json:"modified_at"`
}

// Field is one key of a frontmatter block. Value is a string or a []string.
type Field struct {
	Key   string
	Value any
}

// Frontmatter is an ordered frontmatter mapping.
type Frontmatter []Field

// Get returns the value stored under key.
func (f Frontmatter) Get(key string) (any, bool) {
	for _, fld := range f {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of key in place, or appends it.
func (f Frontmatter) Set(key string, value any) Frontmatter {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

// Keys returns the keys in document order.
func (f Frontmatter) Keys() []string {
	out := make([]string, len(f))
	for i, fld := range f {
		out[i] = fld.Key
	}
	return out
}

// MarshalJSON encodes the frontmatter as a JSON object, keeping key order.
func (f Frontmatter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fld.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Arrays become
// []string and other scalars their string form.
func (f *Frontmatter) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("frontmatter: expected object")
	}
	var out Frontmatter
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = out.Set(key, jsonValue(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := jsonValue(item).(string); ok {
				items = append(items, s)
			}
		}
		return items
	case map[string]any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
