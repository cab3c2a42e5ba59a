package browser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// QueryElement 基于 goquery 的静态元素, 不支持交互
type QueryElement struct {
	sel *goquery.Selection
}

// QueryElements 把选择结果拆成单个元素
func QueryElements(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &QueryElement{sel: s})
	})
	return out
}

// Text 可见文本, 块级元素之间换行
func (e *QueryElement) Text() (string, error) {
	var b strings.Builder
	for _, n := range e.sel.Nodes {
		writeText(&b, n)
	}
	return collapseLines(b.String()), nil
}

// Locate 在元素内部查找
func (e *QueryElement) Locate(selector string) ([]Element, error) {
	return QueryElements(e.sel.Find(selector)), nil
}

// Attribute 读取属性
func (e *QueryElement) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Click 静态文档不支持
func (e *QueryElement) Click() error {
	return errors.ErrUnsupported
}

// Type 静态文档不支持
func (e *QueryElement) Type(string) error {
	return errors.ErrUnsupported
}

var blockTags = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.Br: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.Tr: true, atom.Table: true,
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// collapseLines 压缩空白: 行内空白合并为一个空格, 去掉空行
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
