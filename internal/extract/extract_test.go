package extract

import (
	"errors"
	"testing"

	"oairag/internal/util"

	"github.com/stretchr/testify/require"
)

func TestTextPlain(t *testing.T) {
	pages, err := Text([]byte("hello\x00 world\n"), "notes.md", "")
	require.NoError(t, err)
	require.Equal(t, []Page{{Number: 0, Text: "hello world"}}, pages)
}

func TestTextHTMLDropsScripts(t *testing.T) {
	src := `<html><head><title>t</title><script>var x = 1;</script></head>
<body><h1>Title</h1><p>First paragraph.</p><style>p{}</style><p>Second.</p></body></html>`
	pages, err := Text([]byte(src), "page.HTM", "")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0].Text, "Title")
	require.Contains(t, pages[0].Text, "First paragraph.")
	require.Contains(t, pages[0].Text, "Second.")
	require.NotContains(t, pages[0].Text, "var x")
}

func TestTextUnsupported(t *testing.T) {
	_, err := Text([]byte("x"), "slides.pptx", "application/octet-stream")
	require.True(t, errors.Is(err, util.ErrUnsupportedFormat))
	require.False(t, Supported("slides.pptx", "application/octet-stream"))
	require.True(t, Supported("report.PDF", ""))
	require.True(t, Supported("README", "text/plain"))
}

func TestMimeIgnoredForUnknownExtension(t *testing.T) {
	require.False(t, Supported("x.exe", "text/plain"))
	require.False(t, Supported("page.php", "text/html"))
	require.False(t, Supported("scan.tiff", "application/pdf"))
	_, err := Text([]byte("MZ\x90"), "x.exe", "text/plain")
	require.ErrorIs(t, err, util.ErrUnsupportedFormat)

	require.True(t, Supported("notes.TXT", "application/octet-stream"))
	require.True(t, Supported("blob", "application/pdf"))
}

func TestTextMimeFallback(t *testing.T) {
	pages, err := Text([]byte("plain body"), "README", "text/plain; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, "plain body", pages[0].Text)
}

func TestTextEmpty(t *testing.T) {
	_, err := Text([]byte("  \n\t "), "empty.txt", "")
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}

func TestTextBrokenPDF(t *testing.T) {
	_, err := Text([]byte("not a pdf"), "broken.pdf", "application/pdf")
	require.Error(t, err)
}

func TestPaged(t *testing.T) {
	require.True(t, Paged("report.PDF", ""))
	require.True(t, Paged("blob", "application/pdf"))
	require.False(t, Paged("notes.md", ""))
	require.False(t, Paged("page.html", "text/html"))
}
