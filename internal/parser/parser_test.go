package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/osmen/vaultsync/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags: [daily-note, \"quoted\"]\n---\n# Hello\nBody text #review.\n")
	r := Parse(input)
	if got := r.Frontmatter.Keys(); !cmp.Equal(got, []string{"title", "tags"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := r.Frontmatter.Get("title"); v != "Hello" {
		t.Errorf("title = %v", v)
	}
	if diff := cmp.Diff([]string{"daily-note", "quoted", "review"}, r.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if r.Body != "# Hello\nBody text #review.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func TestParse_BlockSequence(t *testing.T) {
	r := Parse([]byte("---\ntags:\n  - go\n  - vault\n---\nbody"))
	v, _ := r.Frontmatter.Get("tags")
	if diff := cmp.Diff([]string{"go", "vault"}, v); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	r := Parse([]byte(input))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Body != input {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_UnclosedFrontmatterIsBody(t *testing.T) {
	input := "---\ntitle: open\nno closing line\n"
	r := Parse([]byte(input))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Body != input {
		t.Errorf("body = %q", r.Body)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %v, want 1", r.Warnings)
	}
}

func TestParse_InvalidYAMLFallsBackToLines(t *testing.T) {
	r := Parse([]byte("---\ntitle: Foo: bar\ntags: [a, 'b']\n---\nBody\n"))
	if v, _ := r.Frontmatter.Get("title"); v != "Foo: bar" {
		t.Errorf("title = %v", v)
	}
	if diff := cmp.Diff([]string{"a", "b"}, r.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q", r.Body)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %v, want 1", r.Warnings)
	}
}

func TestParse_EmptyBlock(t *testing.T) {
	r := Parse([]byte("---\n---\nBody"))
	if len(r.Frontmatter) != 0 {
		t.Errorf("frontmatter = %v", r.Frontmatter)
	}
	if r.Body != "Body" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestExtractLinks_OrderAndDuplicates(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again, [[ ]] and [[|x]]."
	want := []string{"Note A", "Note B", "Note A"}
	if diff := cmp.Diff(want, ExtractLinks(body)); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name string
		body string
		fm   models.Frontmatter
		want []string
	}{
		{
			name: "frontmatter list and inline",
			body: "Some text #beta and #alpha again.",
			fm:   models.Frontmatter{{Key: "tags", Value: []string{"alpha"}}},
			want: []string{"alpha", "beta"},
		},
		{
			name: "comma separated frontmatter",
			body: "",
			fm:   models.Frontmatter{{Key: "tags", Value: "one, #two"}},
			want: []string{"one", "two"},
		},
		{
			name: "headings are not tags",
			body: "## Heading\n# Title\n#start-of-line\ntext#glued #Case",
			want: []string{"start-of-line", "Case"},
		},
		{
			name: "nested tags keep slashes",
			body: "#project/alpha",
			want: []string{"project/alpha"},
		},
		{
			name: "none",
			body: "plain text",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractTags(tt.body, tt.fm)); diff != "" {
				t.Errorf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	fm := models.Frontmatter{
		{Key: "title", Value: "Plan: phase 1"},
		{Key: "tags", Value: []string{"x", "y"}},
		{Key: "created_by", Value: "agent1"},
		{Key: "created_at", Value: "2025-01-01T10:00:00Z"},
	}
	out := Render(fm, "Body line\n")
	r := Parse([]byte(out))
	if diff := cmp.Diff(fm, r.Frontmatter); diff != "" {
		t.Errorf("frontmatter mismatch (-want +got):\n%s", diff)
	}
	if r.Body != "Body line\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestRender_Layout(t *testing.T) {
	got := Render(models.Frontmatter{{Key: "created_by", Value: "a"}}, "text")
	want := "---\ncreated_by: a\n---\n\ntext"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
	if Render(nil, "text") != "text" {
		t.Error("empty frontmatter should render body only")
	}
}

func TestTitle(t *testing.T) {
	if got := Title("Daily Notes/2025-01-01.md"); got != "2025-01-01" {
		t.Errorf("title = %q", got)
	}
}
