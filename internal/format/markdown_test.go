package format

import (
	"testing"
	"time"
)

func parse(t *testing.T, content, relPath string) ParseResult {
	t.Helper()
	r := NewMarkdownReader()
	res, err := r.Parse([]byte(content), ParseContext{
		RelativePath: relPath,
		Extension:    ".md",
		ModTime:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestBasicIndexS1(t *testing.T) {
	content := "---\ntitle: Test Note\ntags: [test, example]\n---\nBody with [[Other Note]].\n"
	res := parse(t, content, "notes/test-note.md")

	if res.Draft.Title != "Test Note" {
		t.Errorf("title = %q", res.Draft.Title)
	}
	if len(res.Draft.Tags) != 2 || res.Draft.Tags[0] != "test" || res.Draft.Tags[1] != "example" {
		t.Errorf("tags = %v", res.Draft.Tags)
	}
	if !containsSub(string(res.Draft.Content), "Body with") {
		t.Errorf("content missing expected text: %q", res.Draft.Content)
	}
	if len(res.Draft.RawLinks) != 1 || res.Draft.RawLinks[0] != "Other Note" {
		t.Errorf("raw links = %v", res.Draft.RawLinks)
	}
	if !res.NeedsIDWrite {
		t.Errorf("expected NeedsIDWrite when no id present")
	}
}

func TestDerivedTitleS2(t *testing.T) {
	res := parse(t, "No frontmatter here.", "my-derived-title.md")
	if res.Draft.Title != "My Derived Title" {
		t.Errorf("title = %q", res.Draft.Title)
	}
}

func TestLinkNormalizationTargetsS3(t *testing.T) {
	res := parse(t, "Links: [[archive.2024]] and [[meeting.notes.draft]]", "x.md")
	want := map[string]bool{"archive.2024": true, "meeting.notes.draft": true}
	if len(res.Draft.RawLinks) != 2 {
		t.Fatalf("raw links = %v", res.Draft.RawLinks)
	}
	for _, l := range res.Draft.RawLinks {
		if !want[l] {
			t.Errorf("unexpected raw link %q", l)
		}
	}
}

func TestValidIDSkipsWriteback(t *testing.T) {
	content := "---\nid: abcDEF123456\ntitle: Has Id\n---\nbody"
	res := parse(t, content, "x.md")
	if res.NeedsIDWrite {
		t.Errorf("valid id should not need writeback")
	}
	if res.Draft.ID != "abcDEF123456" {
		t.Errorf("id = %q", res.Draft.ID)
	}
}

func TestMalformedFrontmatterYieldsDefaults(t *testing.T) {
	content := "---\n: : not yaml [[[\n---\nbody text"
	res := parse(t, content, "weird.md")
	if res.Draft.Title != "Weird" {
		t.Errorf("title = %q", res.Draft.Title)
	}
}

func TestReservedKeysExcludedFromProperties(t *testing.T) {
	content := "---\nid: abcDEF123456\ntitle: T\ntags: [a]\nauthor: Ada\n---\nbody"
	res := parse(t, content, "x.md")
	if _, ok := res.Draft.Properties["id"]; ok {
		t.Errorf("id leaked into properties")
	}
	if _, ok := res.Draft.Properties["title"]; ok {
		t.Errorf("title leaked into properties")
	}
	if _, ok := res.Draft.Properties["tags"]; ok {
		t.Errorf("tags leaked into properties")
	}
	if res.Draft.Properties["author"] != "Ada" {
		t.Errorf("author property = %v", res.Draft.Properties["author"])
	}
}

func TestNonStringTagsFiltered(t *testing.T) {
	content := "---\ntags: [valid, 42, true]\n---\nbody"
	res := parse(t, content, "x.md")
	if len(res.Draft.Tags) != 1 || res.Draft.Tags[0] != "valid" {
		t.Errorf("tags = %v", res.Draft.Tags)
	}
}

func containsSub(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
