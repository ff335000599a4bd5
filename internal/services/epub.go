package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// EpubInput is one episode revision to render.
type EpubInput struct {
	ProductTitle string
	AuthorName   string
	EpisodeNo    int
	EpisodeTitle string
	ContentHTML  string
	CoverURL     string
	Language     string
}

// chapterHeading is the reader-visible chapter title, e.g. "3화. 제목".
func chapterHeading(episodeNo int, title string) string {
	return fmt.Sprintf("%d화. %s", episodeNo, title)
}

// BuildEpub renders a minimal EPUB 3 container for one episode. The mimetype
// entry must be the first member of the zip and stored uncompressed, per the
// OCF spec.
func BuildEpub(input EpubInput) ([]byte, error) {
	if input.Language == "" {
		input.Language = "ko"
	}
	heading := chapterHeading(input.EpisodeNo, input.EpisodeTitle)
	bookID := "urn:uuid:" + uuid.New().String()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mimetype, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := mimetype.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	entries := []struct {
		name string
		body string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", opfXML(bookID, input, heading)},
		{"OEBPS/nav.xhtml", navXHTML(heading)},
		{"OEBPS/chapter1.xhtml", chapterXHTML(input, heading)},
	}
	for _, entry := range entries {
		f, err := w.Create(entry.name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte(entry.body)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

func opfXML(bookID string, input EpubInput, heading string) string {
	title := html.EscapeString(fmt.Sprintf("%s %s", input.ProductTitle, heading))
	author := html.EscapeString(input.AuthorName)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="book-id">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:language>%s</dc:language>
    <meta property="dcterms:modified">2000-01-01T00:00:00Z</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>
`, bookID, title, author, input.Language)
}

func navXHTML(heading string) string {
	escaped := html.EscapeString(heading)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
  <head><title>목차</title></head>
  <body>
    <nav epub:type="toc">
      <ol><li><a href="chapter1.xhtml">%s</a></li></ol>
    </nav>
  </body>
</html>
`, escaped)
}

func chapterXHTML(input EpubInput, heading string) string {
	var cover string
	if input.CoverURL != "" {
		cover = fmt.Sprintf(`<img src="%s" alt="cover"/>`, html.EscapeString(input.CoverURL))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
  <head><title>%s</title></head>
  <body>
    %s
    <h1>%s</h1>
    %s
  </body>
</html>
`, html.EscapeString(heading), cover, html.EscapeString(heading), input.ContentHTML)
}

// StripHTMLText extracts the text content of an HTML fragment for length
// validation. Tag soup is tolerated; the tokenizer never fails on it.
func StripHTMLText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(tokenizer.Text())
		}
	}
}
