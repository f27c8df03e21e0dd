package format

import (
	"reflect"
	"testing"
)

func TestExtractWikiLinksSkipsFencedCode(t *testing.T) {
	body := "before [[Real Link]]\n```\n[[Not A Link]]\n```\nafter [[Another]]"
	got := extractWikiLinks(body)
	want := []string{"Real Link", "Another"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractWikiLinksSkipsInlineCode(t *testing.T) {
	body := "text `[[Not A Link]]` and [[Real]]"
	got := extractWikiLinks(body)
	want := []string{"Real"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractWikiLinksIgnoresEscaped(t *testing.T) {
	body := `escaped \[[Not A Link]] and [[Real]]`
	got := extractWikiLinks(body)
	want := []string{"Real"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractWikiLinksWithAlias(t *testing.T) {
	got := extractWikiLinks("see [[Target Page|display text]]")
	want := []string{"Target Page|display text"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
