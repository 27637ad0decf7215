// Package extract turns uploaded file bytes into page-addressed plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"oairag/internal/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Page is the text of one page; Number is 0-based. Non-paged formats yield a single page 0.
type Page struct {
	Number int
	Text   string
}

var formats = map[string]string{
	".pdf":   "pdf",
	".txt":   "text",
	".md":    "text",
	".html":  "html",
	".htm":   "html",
	".shtml": "html",
}

// kindOf resolves the reader by file extension. The MIME type is consulted only for
// names without an extension.
func kindOf(fileName, mime string) (string, bool) {
	if ext := filepath.Ext(fileName); ext != "" {
		kind, ok := formats[strings.ToLower(ext)]
		return kind, ok
	}
	switch {
	case strings.HasPrefix(mime, "application/pdf"):
		return "pdf", true
	case strings.HasPrefix(mime, "text/html"):
		return "html", true
	case strings.HasPrefix(mime, "text/"):
		return "text", true
	}
	return "", false
}

// Supported reports whether Text can read a file with this name and MIME type.
func Supported(fileName, mime string) bool {
	_, ok := kindOf(fileName, mime)
	return ok
}

func Text(data []byte, fileName, mime string) ([]Page, error) {
	kind, ok := kindOf(fileName, mime)
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrUnsupportedFormat, fileName)
	}

	var (
		pages []Page
		err   error
	)
	switch kind {
	case "pdf":
		pages, err = pdfPages(data)
	case "html":
		pages, err = htmlPages(data)
	default:
		pages = []Page{{Number: 0, Text: string(data)}}
	}
	if err != nil {
		return nil, err
	}

	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		p.Text = util.NormalizePageText(p.Text)
		if p.Text != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return out, nil
}

func pdfPages(data []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i - 1, Text: text})
	}
	return pages, nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func htmlPages(data []byte) ([]Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe, nav, footer").Remove()
	text := htmlText(doc.Find("body"))
	if strings.TrimSpace(text) == "" {
		text = htmlText(doc.Selection)
	}
	return []Page{{Number: 0, Text: blankLines.ReplaceAllString(text, "\n\n")}}, nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "ul": true,
	"ol": true, "blockquote": true, "pre": true, "table": true,
	"tr": true, "section": true, "article": true, "br": true,
}

func htmlText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Nodes[0]
		switch node.Type {
		case html.TextNode:
			if t := strings.TrimSpace(node.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		case html.ElementNode:
			block := blockTags[node.Data]
			if block {
				b.WriteString("\n\n")
			}
			b.WriteString(htmlText(child))
			if block {
				b.WriteString("\n\n")
			}
		}
	})
	return b.String()
}

// Paged reports whether page numbers from Text refer to real document pages.
func Paged(fileName, mime string) bool {
	kind, _ := kindOf(fileName, mime)
	return kind == "pdf"
}
