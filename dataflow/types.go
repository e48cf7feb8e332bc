// Package dataflow defines the Graph, Node and Kind types plus the dotted
// path helpers shared by relevance and approximation code.
//
// This file declares Kind, Node, sentinel errors and the path utilities
// Owner and Ancestors.
//
// Errors:
//
//	ErrEmptyName    - variable name is the empty string (reserved for Root).
//	ErrBadKind      - variable added with a non-variable Kind.
//	ErrNodeConflict - node re-added with different attributes.
//	ErrNodeNotFound - operation referenced a non-existent node.
package dataflow

import (
	"errors"
	"strings"
)

// Sentinel errors for dataflow graph operations.
var (
	// ErrEmptyName indicates a variable was added with an empty name.
	// The empty name is reserved for the root system node.
	ErrEmptyName = errors.New("dataflow: variable name is empty")

	// ErrBadKind indicates AddVariable was called with a Kind other than
	// KindInput or KindOutput.
	ErrBadKind = errors.New("dataflow: kind must be KindInput or KindOutput")

	// ErrNodeConflict indicates a node was re-added with attributes that
	// differ from the ones already registered under that name.
	ErrNodeConflict = errors.New("dataflow: node already exists with different attributes")

	// ErrNodeNotFound indicates an operation referenced a non-existent node.
	ErrNodeNotFound = errors.New("dataflow: node not found")
)

// Root is the name of the implicit root system node present in every Graph.
const Root = ""

// Kind classifies a Graph node.
type Kind uint8

const (
	// KindInput marks a variable node that is an input of its owning system.
	KindInput Kind = iota + 1

	// KindOutput marks a variable node that is an output of its owning system.
	KindOutput

	// KindSystem marks a system node (a component or group of components).
	KindSystem
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// IsVariable reports whether k classifies a variable node.
func (k Kind) IsVariable() bool { return k == KindInput || k == KindOutput }

// Node is a single named node in a dataflow Graph.
//
// Name is a dotted absolute path ("sub.comp.x" for variables, "sub.comp"
// for systems). Nodes are plain values; they are copied on every read.
type Node struct {
	// Name is the dotted absolute path of the node.
	Name string

	// Kind classifies the node as input, output or system.
	Kind Kind

	// Local reports whether this rank holds the node's storage.
	// System nodes are always local.
	Local bool
}

// Owner returns the dotted path of the system that owns name: everything up
// to the last '.' separator. A top-level name is owned by Root.
func Owner(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}

	return Root
}

// Ancestors returns path followed by every enclosing system path, outermost
// last, excluding Root. Ancestors("a.b.c") is ["a.b.c", "a.b", "a"];
// Ancestors(Root) is nil.
func Ancestors(path string) []string {
	if path == Root {
		return nil
	}
	out := make([]string, 0, strings.Count(path, ".")+1)
	for path != Root {
		out = append(out, path)
		path = Owner(path)
	}

	return out
}
