package export

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	fontName  = "Yu Gothic"
	monoFont  = "Consolas"
	bodySize  = 11
	titleSize = 18
)

func renderMarkdown(title, document, path string) error {
	body := strings.TrimSpace(document) + "\n"
	if !strings.HasPrefix(strings.TrimSpace(document), "#") {
		body = "# " + title + "\n\n" + body
	}
	return os.WriteFile(path, []byte(body), 0o644)
}

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Yu Gothic", "Hiragino Sans", sans-serif; max-width: 50em; margin: 2em auto; line-height: 1.6; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 0.3em 0.6em; }
</style>
</head>
<body>
%s</body>
</html>
`

func renderHTML(title, document, path string) error {
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(document), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	page := fmt.Sprintf(htmlPage, html.EscapeString(title), body.String())
	return os.WriteFile(path, []byte(page), 0o644)
}

func renderDocx(title, document, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}
	source := []byte(document)
	w := docxWriter{doc: doc, source: source}
	addRun(doc.AddParagraph(""), title, true, titleSize, fontName)
	w.blocks(goldmark.New().Parser().Parse(text.NewReader(source)), 0)
	return doc.SaveTo(path)
}

// docxWriter walks a goldmark AST and emits one docx paragraph per block.
type docxWriter struct {
	doc    *docx.RootDoc
	source []byte
}

func (w docxWriter) blocks(parent ast.Node, depth int) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			w.inline(w.doc.AddParagraph(""), node, true, headingSize(node.Level))
		case *ast.Paragraph, *ast.TextBlock:
			w.inline(w.doc.AddParagraph(""), node, false, bodySize)
		case *ast.List:
			w.list(node, depth)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				line := strings.TrimRight(string(seg.Value(w.source)), "\r\n")
				addRun(w.doc.AddParagraph(""), line, false, bodySize, monoFont)
			}
		case *ast.ThematicBreak, *ast.HTMLBlock:
		default:
			w.blocks(node, depth)
		}
	}
}

func (w docxWriter) list(list *ast.List, depth int) {
	index := list.Start
	if index == 0 {
		index = 1
	}
	indent := strings.Repeat("    ", depth)
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				w.list(nested, depth+1)
				continue
			}
			p := w.doc.AddParagraph("")
			addRun(p, indent+marker, false, bodySize, fontName)
			w.inline(p, child, false, bodySize)
			marker = "  "
		}
	}
}

func (w docxWriter) inline(p *docx.Paragraph, parent ast.Node, bold bool, size uint64) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			value := string(node.Segment.Value(w.source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				value += " "
			}
			addRun(p, value, bold, size, fontName)
		case *ast.String:
			addRun(p, string(node.Value), bold, size, fontName)
		case *ast.CodeSpan:
			addRun(p, w.plain(node), bold, size, monoFont)
		case *ast.Emphasis:
			w.inline(p, node, bold || node.Level >= 2, size)
		case *ast.RawHTML:
		default:
			w.inline(p, node, bold, size)
		}
	}
}

func (w docxWriter) plain(parent ast.Node) string {
	var b strings.Builder
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(w.source))
		}
	}
	return b.String()
}

func addRun(p *docx.Paragraph, value string, bold bool, size uint64, font string) {
	if value == "" {
		return
	}
	run := p.AddText(value).Font(font).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 14
	case 3:
		return 12
	default:
		return bodySize
	}
}
