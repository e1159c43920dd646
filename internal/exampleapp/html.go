package exampleapp

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoHead is returned by HeadAttr for documents without a <head> element.
var ErrNoHead = errors.New("html document has no head")

// ParseHTML parses an HTML document.
func ParseHTML(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Find returns the first element of type a in depth-first order, or nil.
func Find(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, a); found != nil {
			return found
		}
	}
	return nil
}

// Attr returns the value of the named attribute of n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HeadAttr returns an attribute of the document's <head> element.
func HeadAttr(doc *html.Node, key string) (string, error) {
	head := Find(doc, atom.Head)
	if head == nil {
		return "", ErrNoHead
	}
	val, ok := Attr(head, key)
	if !ok {
		return "", fmt.Errorf("head has no %s attribute", key)
	}
	return val, nil
}
