// Package metainfo maintains an appstream metainfo releases document: an
// XML file whose root holds one <release> element per published version.
package metainfo

import (
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/kjarosh/metainfo-sync/go/util"
)

const indentSpaces = 4

// Document is a loaded metainfo releases file. It is exclusively owned by
// the caller for the duration of a synchronization run: loaded once, mutated
// in memory, written once.
type Document struct {
	doc *etree.Document
}

// Load reads and parses the releases document at the given path. The file
// must already exist and be well-formed.
func Load(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrapf(err, "failed to load metainfo releases from %s", path)
	}
	if doc.Root() == nil {
		return nil, errors.Errorf("metainfo document %s has no root element", path)
	}
	return &Document{doc: doc}, nil
}

// Releases returns the release elements of the document in order.
func (d *Document) Releases() []*etree.Element {
	return d.doc.Root().SelectElements("release")
}

// Merge inserts the release into the document. An existing release with the
// same version is replaced at its current position; otherwise the release is
// inserted at the front, newest first. The document never holds two releases
// with the same version.
func (d *Document) Merge(rel *Release) {
	root := d.doc.Root()
	el := rel.element()
	for _, existing := range root.SelectElements("release") {
		if existing.SelectAttrValue("version", "") == rel.Version {
			root.InsertChildAt(existing.Index(), el)
			root.RemoveChild(existing)
			return
		}
	}
	if first := root.SelectElement("release"); first != nil {
		root.InsertChildAt(first.Index(), el)
	} else {
		root.AddChild(el)
	}
}

// Save rewrites the whole document to the given path with stable four-space
// indentation and a trailing newline.
func (d *Document) Save(path string) error {
	d.doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	reindent(d.doc.Root(), 0)
	d.stripAfterRoot()
	return util.WithWriteFile(path, func(w io.Writer) error {
		if _, err := d.doc.WriteTo(w); err != nil {
			return errors.Wrapf(err, "failed to write metainfo releases to %s", path)
		}
		_, err := w.Write([]byte("\n"))
		return errors.Wrap(err, "failed to write trailing newline")
	})
}

// stripAfterRoot removes whitespace-only character data trailing the root
// element, so the single trailing newline appended by Save does not
// accumulate across runs.
func (d *Document) stripAfterRoot() {
	for i := len(d.doc.Child) - 1; i >= 0; i-- {
		cd, ok := d.doc.Child[i].(*etree.CharData)
		if !ok || strings.TrimSpace(cd.Data) != "" {
			return
		}
		d.doc.RemoveChildAt(i)
	}
}

// reindent normalizes the whitespace between child tokens of every element
// that carries no text of its own, producing stable indentation. Elements
// with mixed content (such as description paragraphs) are left untouched and
// serialize inline.
func reindent(el *etree.Element, depth int) {
	children := el.ChildElements()
	if len(children) == 0 {
		return
	}

	if !hasTextContent(el) {
		old := make([]etree.Token, 0, len(el.Child))
		for len(el.Child) > 0 {
			tok := el.RemoveChildAt(len(el.Child) - 1)
			if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) == "" {
				continue
			}
			old = append(old, tok)
		}
		childIndent := "\n" + strings.Repeat(" ", (depth+1)*indentSpaces)
		for i := len(old) - 1; i >= 0; i-- {
			el.AddChild(etree.NewText(childIndent))
			el.AddChild(old[i])
		}
		el.AddChild(etree.NewText("\n" + strings.Repeat(" ", depth*indentSpaces)))
	}

	for _, child := range children {
		reindent(child, depth+1)
	}
}

// hasTextContent returns true if any direct character data child of the
// element is more than whitespace.
func hasTextContent(el *etree.Element) bool {
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return true
		}
	}
	return false
}
