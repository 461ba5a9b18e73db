package notice

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)


func parseFragment(content string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(content), body)
}

// IsEmpty 判断富文本是否没有实际内容，例如编辑器清空后留下的 <p><br></p>
func IsEmpty(content string) bool {
	if strings.TrimSpace(content) == "" {
		return true
	}
	nodes, err := parseFragment(content)
	if err != nil {
		return strings.TrimSpace(content) == ""
	}

	var hasContent func(*html.Node) bool
	hasContent = func(n *html.Node) bool {
		switch n.Type {
		case html.TextNode:
			// TrimSpace 同时会去掉 &nbsp;
			if strings.TrimSpace(n.Data) != "" {
				return true
			}
		case html.ElementNode:
			// 图片只有在展示时会保留的情况下才算内容
			if n.DataAtom == atom.Img && safeImageSrc(attrValue(n, "src")) {
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if hasContent(c) {
				return true
			}
		}
		return false
	}

	for _, n := range nodes {
		if hasContent(n) {
			return false
		}
	}
	return true
}

var allowedElements = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Strong: true, atom.B: true, atom.Em: true,
	atom.I: true, atom.U: true, atom.S: true, atom.Ol: true, atom.Ul: true,
	atom.Li: true, atom.A: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.Blockquote: true, atom.Span: true, atom.Div: true, atom.Img: true,
}

// 这些元素连同内容一起丢弃
var droppedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true, atom.Embed: true,
}

// Sanitize 只保留编辑器能产生的排版元素，用于只读展示
func Sanitize(content string) string {
	nodes, err := parseFragment(content)
	if err != nil {
		return html.EscapeString(content)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		for _, clean := range sanitizeNode(n) {
			_ = html.Render(&buf, clean)
		}
	}
	return buf.String()
}

func sanitizeNode(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}
	case html.ElementNode:
		if droppedElements[n.DataAtom] {
			return nil
		}
	default:
		return nil
	}

	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, sanitizeNode(c)...)
	}
	if !allowedElements[n.DataAtom] {
		// 不认识的元素只保留其中的内容
		return children
	}

	clean := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	if n.DataAtom == atom.Img {
		src := attrValue(n, "src")
		if !safeImageSrc(src) {
			return nil
		}
		clean.Attr = []html.Attribute{{Key: "src", Val: src}}
		if alt := attrValue(n, "alt"); alt != "" {
			clean.Attr = append(clean.Attr, html.Attribute{Key: "alt", Val: alt})
		}
	}
	if n.DataAtom == atom.A {
		for _, attr := range n.Attr {
			if attr.Key == "href" && safeURL(attr.Val) {
				clean.Attr = append(clean.Attr,
					html.Attribute{Key: "href", Val: attr.Val},
					html.Attribute{Key: "rel", Val: "noopener noreferrer"},
					html.Attribute{Key: "target", Val: "_blank"},
				)
			}
		}
	}
	for _, c := range children {
		clean.AppendChild(c)
	}
	return []*html.Node{clean}
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "mailto":
		return true
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// 编辑器插入的图片是 http(s) 地址、站内相对路径或者内嵌的 base64 图片
var imageDataPrefixes = []string{
	"data:image/png;base64,",
	"data:image/jpeg;base64,",
	"data:image/gif;base64,",
	"data:image/webp;base64,",
}

func safeImageSrc(raw string) bool {
	raw = strings.TrimSpace(raw)
	for _, prefix := range imageDataPrefixes {
		if strings.HasPrefix(strings.ToLower(raw), prefix) {
			return true
		}
	}
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "http", "https":
		return true
	}
	return false
}
