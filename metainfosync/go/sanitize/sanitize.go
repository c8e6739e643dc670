// Package sanitize converts markdown release notes into the restricted
// element subset that appstream metainfo descriptions allow. Markdown is
// first rendered into a generic element tree, which is then rewritten so
// that only allowed tags remain as structure; everything else is flattened
// into character data.
package sanitize

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/russross/blackfriday/v2"
)

// allowedTags are the only element tags that survive sanitization as
// structure. The description root is exempt.
var allowedTags = map[string]bool{
	"p":    true,
	"li":   true,
	"ul":   true,
	"ol":   true,
	"em":   true,
	"code": true,
}

// tagMapping rewrites a tag to an allowed equivalent before the allow-list
// is consulted. Remapping happens in place and does not move the node.
var tagMapping = map[string]string{
	"strong": "em",
}

// Description renders the given markdown into a <description> element
// containing only allowed tags. An empty body yields an empty element.
func Description(body string) (*etree.Element, error) {
	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse([]byte(body))

	desc := etree.NewElement("description")
	if err := convertChildren(root, desc); err != nil {
		return nil, errors.Wrap(err, "failed to render markdown")
	}
	sanitizeElement(desc)
	return desc, nil
}

// convertChildren converts every child of the given markdown node and
// appends the results to parent.
func convertChildren(node *blackfriday.Node, parent *etree.Element) error {
	for child := node.FirstChild; child != nil; child = child.Next {
		if err := convertNode(child, parent); err != nil {
			return err
		}
	}
	return nil
}

// convertNode converts one markdown AST node into element-tree tokens under
// parent. Tags follow the names an HTML renderer would emit, so that the
// sanitizer's allow-list and remapping operate on familiar ground.
func convertNode(node *blackfriday.Node, parent *etree.Element) error {
	switch node.Type {
	case blackfriday.Text:
		parent.AddChild(etree.NewText(string(node.Literal)))
		return nil
	case blackfriday.Softbreak:
		parent.AddChild(etree.NewText("\n"))
		return nil
	case blackfriday.Hardbreak:
		parent.CreateElement("br")
		return nil
	case blackfriday.HTMLSpan, blackfriday.HTMLBlock:
		// Raw HTML is carried as literal text; serialization escapes it.
		parent.AddChild(etree.NewText(string(node.Literal)))
		return nil
	case blackfriday.Code:
		code := parent.CreateElement("code")
		code.SetText(string(node.Literal))
		return nil
	case blackfriday.CodeBlock:
		code := parent.CreateElement("pre").CreateElement("code")
		code.SetText(string(node.Literal))
		return nil
	case blackfriday.HorizontalRule:
		parent.CreateElement("hr")
		return nil
	case blackfriday.Paragraph:
		// Tight list items render their content without a paragraph wrapper.
		if p := node.Parent; p != nil && p.Type == blackfriday.Item &&
			p.Parent != nil && p.Parent.Type == blackfriday.List && p.Parent.ListData.Tight {
			return convertChildren(node, parent)
		}
		return convertChildren(node, parent.CreateElement("p"))
	case blackfriday.Heading:
		return convertChildren(node, parent.CreateElement("h"+strconv.Itoa(node.HeadingData.Level)))
	case blackfriday.Emph:
		return convertChildren(node, parent.CreateElement("em"))
	case blackfriday.Strong:
		return convertChildren(node, parent.CreateElement("strong"))
	case blackfriday.Del:
		return convertChildren(node, parent.CreateElement("del"))
	case blackfriday.BlockQuote:
		return convertChildren(node, parent.CreateElement("blockquote"))
	case blackfriday.List:
		return convertChildren(node, parent.CreateElement(listTag(node)))
	case blackfriday.Item:
		return convertChildren(node, parent.CreateElement(itemTag(node)))
	case blackfriday.Link:
		a := parent.CreateElement("a")
		a.CreateAttr("href", string(node.LinkData.Destination))
		return convertChildren(node, a)
	case blackfriday.Image:
		img := parent.CreateElement("img")
		img.CreateAttr("src", string(node.LinkData.Destination))
		return convertChildren(node, img)
	case blackfriday.Table:
		return convertChildren(node, parent.CreateElement("table"))
	case blackfriday.TableHead:
		return convertChildren(node, parent.CreateElement("thead"))
	case blackfriday.TableBody:
		return convertChildren(node, parent.CreateElement("tbody"))
	case blackfriday.TableRow:
		return convertChildren(node, parent.CreateElement("tr"))
	case blackfriday.TableCell:
		tag := "td"
		if node.TableCellData.IsHeader {
			tag = "th"
		}
		return convertChildren(node, parent.CreateElement(tag))
	default:
		return errors.Errorf("unsupported markdown node %v", node.Type)
	}
}

func listTag(node *blackfriday.Node) string {
	if node.ListData.ListFlags&blackfriday.ListTypeDefinition != 0 {
		return "dl"
	}
	if node.ListData.ListFlags&blackfriday.ListTypeOrdered != 0 {
		return "ol"
	}
	return "ul"
}

func itemTag(node *blackfriday.Node) string {
	if node.ListData.ListFlags&blackfriday.ListTypeTerm != 0 {
		return "dt"
	}
	if node.ListData.ListFlags&blackfriday.ListTypeDefinition != 0 {
		return "dd"
	}
	return "li"
}

// sanitizeElement rewrites the subtree rooted at el, children before
// parents. Each child element is either remapped and kept, or replaced at
// its position by its flattened text content. The child token list is
// rebuilt rather than mutated during iteration.
func sanitizeElement(el *etree.Element) {
	for _, child := range el.ChildElements() {
		sanitizeElement(child)
	}

	old := make([]etree.Token, len(el.Child))
	copy(old, el.Child)
	for len(el.Child) > 0 {
		el.RemoveChildAt(len(el.Child) - 1)
	}
	for _, tok := range old {
		ce, ok := tok.(*etree.Element)
		if !ok {
			el.AddChild(tok)
			continue
		}
		if mapped, ok := tagMapping[ce.Tag]; ok {
			ce.Tag = mapped
		}
		if allowedTags[ce.Tag] {
			el.AddChild(ce)
		} else {
			el.AddChild(etree.NewText(flatten(ce)))
		}
	}
}

// flatten returns the concatenated text content of the element's subtree.
func flatten(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			sb.WriteString(flatten(t))
		}
	}
	return sb.String()
}
