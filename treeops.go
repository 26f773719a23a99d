// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"path"
	"strings"
)

// Path returns the node's slash-joined absolute path from the tree root,
// e.g. "Character/Weapon/01472005.img/info/icon".
//
// Grounded on the teacher's path.go NormalizePath slash-cleaning, reused
// here to build rather than normalize a path, since WZ nodes carry no
// stored path string of their own.
func (n *Node) Path() string {
	if n.parent == nil {
		return n.Name
	}

	segments := make([]string, 0, 8)
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		segments = append(segments, cur.Name)
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	return path.Clean(strings.Join(segments, "/"))
}

// Child returns the direct child named name (case-insensitive), or nil
// if none matches.
func (n *Node) Child(name string) (*Node, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}

	return nil, nil
}

// AddChild appends child as a new child of n, reparenting it and marking
// both nodes Modified. child must not already have a parent.
func (n *Node) AddChild(child *Node) error {
	if child.parent != nil {
		return ErrInvalidChildTag
	}

	if n.Tag != TagDirectory && n.Tag != TagImage && n.Tag != TagSubProperty && n.Tag != TagConvex2D {
		return ErrInvalidChildTag
	}

	child.parent = n
	n.children = append(n.children, child)
	n.Modified = true
	child.Modified = true
	return nil
}

// RemoveChild detaches the direct child named name. Reports
// ErrNodeNotFound if no such child exists.
func (n *Node) RemoveChild(name string) error {
	children, err := n.Children()
	if err != nil {
		return err
	}

	for i, c := range children {
		if strings.EqualFold(c.Name, name) {
			n.children = append(children[:i:i], children[i+1:]...)
			c.parent = nil
			n.Modified = true
			return nil
		}
	}

	return ErrNodeNotFound
}

// Rename changes the node's own Name in place.
func (n *Node) Rename(newName string) {
	n.Name = newName
	n.Modified = true
	if n.parent != nil {
		n.parent.Modified = true
	}
}

// Walk calls fn for n and every descendant, depth-first pre-order.
// When fn returns false for a node, that node's descendants are skipped;
// the walk goes on with the rest of the tree.
//
// Grounded on the teacher's filter.go predicate-based slice filtering,
// generalized here to a tree-shaped walk since WZ nodes nest arbitrarily
// deep rather than forming PBO's flat entry list.
func (n *Node) Walk(fn func(*Node) bool) error {
	if !fn(n) {
		return nil
	}

	children, err := n.Children()
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}

	return nil
}

// CountTag returns the number of descendants (including n itself) whose
// Tag equals tag.
func (n *Node) CountTag(tag Tag) (int, error) {
	count := 0
	err := n.Walk(func(c *Node) bool {
		if c.Tag == tag {
			count++
		}

		return true
	})

	return count, err
}

// Find resolves a slash-separated path relative to n, descending through
// directories and images. An empty segment (leading/trailing/double
// slash) is skipped.
func (n *Node) Find(p string) (*Node, error) {
	cur := n
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}

		next, err := cur.Child(seg)
		if err != nil {
			return nil, err
		}

		if next == nil {
			return nil, ErrNodeNotFound
		}

		cur = next
	}

	return cur, nil
}
