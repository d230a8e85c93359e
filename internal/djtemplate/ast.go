// Package djtemplate parses the structure of Django templates. It tokenizes
// {{ variable }}, {% tag %} and {# comment #} constructs with source
// positions and builds a tree of tag blocks, enough to reason about
// inheritance ({% extends %}), library loads and {% block %} layout.
// Renderer renders the common subset of the template language.
package djtemplate

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal markup (passed through unchanged).
type TextNode struct {
	nodeBase
	Text string
}

// VarNode represents a {{ variable|filter }} output.
type VarNode struct {
	nodeBase
	Expr string
}

// CommentNode represents a {# comment #}.
type CommentNode struct {
	nodeBase
	Text string
}

// TagNode represents a single tag that does not open a block, e.g. {% url 'x' %}.
type TagNode struct {
	nodeBase
	Name string
	Args []string
}

// ExtendsNode represents {% extends "parent.html" %}.
type ExtendsNode struct {
	nodeBase
	Target  string // parent template name with quotes removed
	Dynamic bool   // true when the parent is a variable, not a string literal
}

// LoadNode represents {% load lib ... %}.
type LoadNode struct {
	nodeBase
	Libraries []string
}

// BlockNode represents {% block name %}...{% endblock %}.
type BlockNode struct {
	nodeBase
	Name string
	Body []Node
}

// PairNode represents any other tag with a closing counterpart, e.g.
// {% if %}...{% endif %}. Intermediate tags (else, elif, empty) stay in Body
// as TagNodes.
type PairNode struct {
	nodeBase
	Name string
	Args []string
	Body []Node
}

// Document represents a complete parsed template.
type Document struct {
	File    string
	Nodes   []Node
	Extends *ExtendsNode
	Loads   []*LoadNode
	Blocks  map[string]*BlockNode
}

// ExtendsFirst reports whether the document extends a parent and the
// {% extends %} tag precedes every other tag and variable.
func (d *Document) ExtendsFirst() bool {
	if d.Extends == nil {
		return false
	}
	for _, n := range d.Nodes {
		switch n.(type) {
		case *TextNode, *CommentNode:
			continue
		case *ExtendsNode:
			return n == Node(d.Extends)
		default:
			return false
		}
	}
	return false
}

// Loaded reports whether lib is loaded by a {% load %} tag anywhere in the
// document.
func (d *Document) Loaded(lib string) bool {
	for _, l := range d.Loads {
		for _, name := range l.Libraries {
			if name == lib {
				return true
			}
		}
	}
	return false
}

// Block returns the named block, searching nested blocks too.
func (d *Document) Block(name string) (*BlockNode, bool) {
	b, ok := d.Blocks[name]
	return b, ok
}
