package services

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestChapterHeading(t *testing.T) {
	if got := chapterHeading(3, "왕의 귀환"); got != "3화. 왕의 귀환" {
		t.Fatalf("unexpected heading: %q", got)
	}
}

func TestBuildEpub_MimetypeFirstAndStored(t *testing.T) {
	data, err := BuildEpub(EpubInput{
		ProductTitle: "테스트 소설",
		AuthorName:   "작가",
		EpisodeNo:    1,
		EpisodeTitle: "시작",
		ContentHTML:  "<p>본문</p>",
	})
	if err != nil {
		t.Fatalf("BuildEpub: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(reader.File) == 0 {
		t.Fatalf("empty archive")
	}
	first := reader.File[0]
	if first.Name != "mimetype" {
		t.Fatalf("first entry = %q, want mimetype", first.Name)
	}
	if first.Method != zip.Store {
		t.Fatalf("mimetype method = %d, want Store", first.Method)
	}
	rc, err := first.Open()
	if err != nil {
		t.Fatalf("open mimetype: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "application/epub+zip" {
		t.Fatalf("mimetype body = %q", body)
	}

	want := map[string]bool{
		"META-INF/container.xml": false,
		"OEBPS/content.opf":      false,
		"OEBPS/nav.xhtml":        false,
		"OEBPS/chapter1.xhtml":   false,
	}
	for _, f := range reader.File {
		if _, ok := want[f.Name]; ok {
			want[f.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing archive member %s", name)
		}
	}
}

func TestBuildEpub_ChapterCarriesHeadingAndContent(t *testing.T) {
	data, err := BuildEpub(EpubInput{
		ProductTitle: "제품",
		AuthorName:   "작가",
		EpisodeNo:    7,
		EpisodeTitle: "폭풍",
		ContentHTML:  "<p>비가 내렸다</p>",
		CoverURL:     "https://cdn.example.com/cover.jpg",
	})
	if err != nil {
		t.Fatalf("BuildEpub: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var chapter string
	for _, f := range reader.File {
		if f.Name == "OEBPS/chapter1.xhtml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open chapter: %v", err)
			}
			body, _ := io.ReadAll(rc)
			rc.Close()
			chapter = string(body)
		}
	}
	if !strings.Contains(chapter, "7화. 폭풍") {
		t.Fatalf("chapter missing heading: %s", chapter)
	}
	if !strings.Contains(chapter, "비가 내렸다") {
		t.Fatalf("chapter missing content: %s", chapter)
	}
	if !strings.Contains(chapter, "cover.jpg") {
		t.Fatalf("chapter missing cover: %s", chapter)
	}
}

func TestStripHTMLText(t *testing.T) {
	if got := StripHTMLText("<p>안녕<b>하세요</b></p>"); got != "안녕하세요" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := StripHTMLText("plain"); got != "plain" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := StripHTMLText("<p>broken <b>soup"); got != "broken soup" {
		t.Fatalf("unexpected text: %q", got)
	}
}
