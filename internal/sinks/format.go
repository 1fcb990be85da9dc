package sinks

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var telegramMarkdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// formatTelegram renders markdown as the HTML subset Telegram accepts.
// ok is false when rendering fails and the caller should send plain text.
func formatTelegram(markdown string) (string, bool) {
	out, err := renderTelegram(markdown, telegramMarkdown.Parser())
	if err != nil {
		return "", false
	}
	return out, true
}

// formatNotification renders a notification as a markdown title followed by
// the escaped message body.
func formatNotification(title, body string) (string, bool) {
	if strings.TrimSpace(title) == "" {
		return html.EscapeString(body), true
	}
	header, ok := formatTelegram(title)
	if !ok {
		return "", false
	}
	return strings.TrimRight(header, "\n") + "\n" + html.EscapeString(body), true
}

func plainNotification(title, body string) string {
	if strings.TrimSpace(title) == "" {
		return body
	}
	return title + "\n" + body
}

func renderTelegram(markdown string, p parser.Parser) (string, error) {
	if p == nil {
		return "", errors.New("markdown parser is required")
	}
	src := []byte(markdown)
	doc := p.Parse(text.NewReader(src))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Document, *ast.TextBlock:
		case *ast.Paragraph:
			if !entering && node.NextSibling() != nil {
				buf.WriteString("\n\n")
			}
		case *ast.Heading:
			if entering {
				buf.WriteString("<b>")
			} else {
				buf.WriteString("</b>\n")
			}
		case *ast.Emphasis:
			tag := "i"
			if node.Level >= 2 {
				tag = "b"
			}
			writeTag(&buf, tag, entering)
		case *extast.Strikethrough:
			writeTag(&buf, "s", entering)
		case *ast.CodeSpan:
			writeTag(&buf, "code", entering)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if !entering {
				return ast.WalkContinue, nil
			}
			buf.WriteString("<pre><code>")
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.WriteString(html.EscapeString(string(seg.Value(src))))
			}
			buf.WriteString("</code></pre>")
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if entering {
				fmt.Fprintf(&buf, `<a href="%s">`, html.EscapeString(string(node.Destination)))
			} else {
				buf.WriteString("</a>")
			}
		case *ast.AutoLink:
			if entering {
				url := html.EscapeString(string(node.URL(src)))
				fmt.Fprintf(&buf, `<a href="%s">%s</a>`, url, html.EscapeString(string(node.Label(src))))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Blockquote:
			writeTag(&buf, "blockquote", entering)
		case *ast.List:
			if !entering && node.NextSibling() != nil {
				buf.WriteString("\n")
			}
		case *ast.ListItem:
			if entering {
				buf.WriteString(listMarker(node))
			} else {
				buf.WriteString("\n")
			}
		case *ast.Text:
			if !entering {
				return ast.WalkContinue, nil
			}
			buf.WriteString(html.EscapeString(string(node.Segment.Value(src))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.String:
			if entering {
				buf.WriteString(html.EscapeString(string(node.Value)))
			}
		case *ast.Image, *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			if entering {
				buf.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("render telegram html: %w", err)
	}
	return buf.String(), nil
}

func writeTag(buf *bytes.Buffer, tag string, entering bool) {
	if entering {
		buf.WriteString("<" + tag + ">")
		return
	}
	buf.WriteString("</" + tag + ">")
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	index := list.Start
	for prev := item.PreviousSibling(); prev != nil; prev = prev.PreviousSibling() {
		index++
	}
	return fmt.Sprintf("%d. ", index)
}
