package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is the read-only view of a markup element the extractor relies on.
type Node interface {
	Tag() string
	// Text returns the descendant text with whitespace collapsed.
	Text() string
	HasClass(class string) bool
	Attr(name string) (string, bool)
	Children() []Node
	// NextSibling returns the following element sibling or nil.
	NextSibling() Node
}

// Predicate selects nodes.
type Predicate func(Node) bool

// Parse builds a Node tree from HTML.
func Parse(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return FromSelection(doc.Selection), nil
}

// FromSelection adapts a goquery selection (its first element) to Node.
func FromSelection(sel *goquery.Selection) Node {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	return selectionNode{sel: sel.First()}
}

// Walk visits root and its descendants depth-first in document order.
// Returning false from visit stops the walk.
func Walk(root Node, visit func(Node) bool) bool {
	if root == nil {
		return true
	}
	if !visit(root) {
		return false
	}
	for _, child := range root.Children() {
		if !Walk(child, visit) {
			return false
		}
	}
	return true
}

// FindFirst returns the first node in document order matching pred, or nil.
func FindFirst(root Node, pred Predicate) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every node in document order matching pred.
func FindAll(root Node, pred Predicate) []Node {
	var found []Node
	Walk(root, func(n Node) bool {
		if pred(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// FollowingUntil returns the siblings after start up to (not including) the first one matching stop.
func FollowingUntil(start Node, stop Predicate) []Node {
	if start == nil {
		return nil
	}
	var out []Node
	for cur := start.NextSibling(); cur != nil; cur = cur.NextSibling() {
		if stop(cur) {
			break
		}
		out = append(out, cur)
	}
	return out
}

// HasClass matches nodes carrying class.
func HasClass(class string) Predicate {
	return func(n Node) bool { return n.HasClass(class) }
}

// TagIs matches nodes by element name.
func TagIs(tag string) Predicate {
	return func(n Node) bool { return strings.EqualFold(n.Tag(), tag) }
}

// TextContains matches nodes whose text contains s.
func TextContains(s string) Predicate {
	return func(n Node) bool { return strings.Contains(n.Text(), s) }
}

// All matches nodes satisfying every predicate.
func All(preds ...Predicate) Predicate {
	return func(n Node) bool {
		for _, p := range preds {
			if !p(n) {
				return false
			}
		}
		return true
	}
}

type selectionNode struct {
	sel *goquery.Selection
}

func (n selectionNode) Tag() string {
	return goquery.NodeName(n.sel)
}

func (n selectionNode) Text() string {
	return collapse(n.sel.Text())
}

func (n selectionNode) HasClass(class string) bool {
	return n.sel.HasClass(class)
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n selectionNode) Children() []Node {
	children := n.sel.Children()
	out := make([]Node, 0, children.Length())
	children.Each(func(_ int, s *goquery.Selection) {
		out = append(out, selectionNode{sel: s})
	})
	return out
}

func (n selectionNode) NextSibling() Node {
	next := n.sel.Next()
	if next.Length() == 0 {
		return nil
	}
	return selectionNode{sel: next}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
