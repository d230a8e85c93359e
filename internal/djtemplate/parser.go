package djtemplate

import (
	"strings"
)

// openers lists tags that open a block closed by "end" + name.
var openers = map[string]bool{
	"autoescape":     true,
	"block":          true,
	"blocktrans":     true,
	"blocktranslate": true,
	"cache":          true,
	"comment":        true,
	"filter":         true,
	"for":            true,
	"if":             true,
	"ifchanged":      true,
	"localize":       true,
	"localtime":      true,
	"spaceless":      true,
	"timezone":       true,
	"verbatim":       true,
	"with":           true,
}

// closerOf maps closing tags to the tag they close.
var closerOf = func() map[string]string {
	m := make(map[string]string, len(openers))
	for name := range openers {
		m["end"+name] = name
	}
	return m
}()

// intermediates maps branch tags to the block tags they may appear in.
var intermediates = map[string][]string{
	"else":   {"if", "for", "ifchanged"},
	"elif":   {"if"},
	"empty":  {"for"},
	"plural": {"blocktrans", "blocktranslate"},
}

// Parse tokenizes and parses src. file is used in positions and errors.
func Parse(src, file string) (*Document, error) {
	tokens, err := NewLexer(src, file).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{
		doc: &Document{File: file, Blocks: make(map[string]*BlockNode)},
	}
	nodes, err := p.parse(tokens)
	if err != nil {
		return nil, err
	}
	p.doc.Nodes = nodes
	return p.doc, nil
}

// frame is an open block on the parser stack.
type frame struct {
	name  string
	args  []string
	pos   Position
	nodes []Node
}

type parser struct {
	doc   *Document
	stack []*frame
}

func (p *parser) parse(tokens []Token) ([]Node, error) {
	root := &frame{}
	p.stack = []*frame{root}

	for _, tok := range tokens {
		var n Node
		switch tok.Type {
		case TokenEOF:
			if len(p.stack) > 1 {
				open := p.top()
				return nil, NewUnmatchedBlockError(open.pos, open.name)
			}
			return root.nodes, nil
		case TokenText:
			n = &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value}
		case TokenVar:
			if tok.Value == "" {
				return nil, NewParseError(tok.Pos, "empty variable tag")
			}
			n = &VarNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value}
		case TokenComment:
			n = &CommentNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value}
		case TokenTag:
			var err error
			n, err = p.tag(tok)
			if err != nil {
				return nil, err
			}
		}
		if n != nil {
			p.top().nodes = append(p.top().nodes, n)
		}
	}
	return root.nodes, nil
}

// tag handles one {% %} token. It returns the node to append to the current
// frame, or nil when the token opened a new frame.
func (p *parser) tag(tok Token) (Node, error) {
	fields := splitArgs(tok.Value)
	if len(fields) == 0 {
		return nil, NewParseError(tok.Pos, "empty block tag")
	}
	name, args := fields[0], fields[1:]

	// Tags inside comment and verbatim blocks are not interpreted.
	if top := p.top().name; (top == "comment" || top == "verbatim") && name != "end"+top {
		return &TagNode{nodeBase: nodeBase{pos: tok.Pos}, Name: name, Args: args}, nil
	}

	switch {
	case name == "extends":
		return p.extends(tok.Pos, args)
	case name == "load":
		if len(args) == 0 {
			return nil, NewParseError(tok.Pos, "'load' requires at least one library name")
		}
		ln := &LoadNode{nodeBase: nodeBase{pos: tok.Pos}, Libraries: loadLibraries(args)}
		p.doc.Loads = append(p.doc.Loads, ln)
		return ln, nil
	case openers[name]:
		if name == "block" {
			if len(args) != 1 {
				return nil, NewParseError(tok.Pos, "'block' takes exactly one argument")
			}
			if _, dup := p.doc.Blocks[args[0]]; dup {
				return nil, NewParseErrorf(tok.Pos, "'block' tag with name '%s' appears more than once", args[0])
			}
		}
		p.stack = append(p.stack, &frame{name: name, args: args, pos: tok.Pos})
		return nil, nil
	case closerOf[name] != "":
		return p.close(tok.Pos, name, args)
	case intermediates[name] != nil:
		if !p.inside(intermediates[name]) {
			return nil, NewParseErrorf(tok.Pos, "'%s' outside of %s", name, strings.Join(intermediates[name], "/"))
		}
	}
	return &TagNode{nodeBase: nodeBase{pos: tok.Pos}, Name: name, Args: args}, nil
}

func (p *parser) extends(pos Position, args []string) (Node, error) {
	if len(args) != 1 {
		return nil, NewParseError(pos, "'extends' takes one argument")
	}
	if p.doc.Extends != nil {
		return nil, NewParseError(pos, "'extends' cannot appear more than once in the same template")
	}
	target, quoted := unquote(args[0])
	ext := &ExtendsNode{nodeBase: nodeBase{pos: pos}, Target: target, Dynamic: !quoted}
	p.doc.Extends = ext
	return ext, nil
}

func (p *parser) close(pos Position, closer string, args []string) (Node, error) {
	want := closerOf[closer]
	open := p.top()
	if len(p.stack) == 1 || open.name != want {
		return nil, NewUnmatchedBlockError(pos, closer)
	}
	p.stack = p.stack[:len(p.stack)-1]

	base := nodeBase{pos: open.pos}
	if want != "block" {
		return &PairNode{nodeBase: base, Name: open.name, Args: open.args, Body: open.nodes}, nil
	}

	name := open.args[0]
	if len(args) > 0 && args[0] != name {
		return nil, NewParseErrorf(pos, "'endblock %s' closes block '%s'", args[0], name)
	}
	b := &BlockNode{nodeBase: base, Name: name, Body: open.nodes}
	p.doc.Blocks[name] = b
	return b, nil
}

func (p *parser) top() *frame {
	return p.stack[len(p.stack)-1]
}

func (p *parser) inside(names []string) bool {
	cur := p.top().name
	for _, n := range names {
		if cur == n {
			return true
		}
	}
	return false
}

// loadLibraries returns the libraries named by load arguments. The
// "{% load a b from lib %}" form loads lib.
func loadLibraries(args []string) []string {
	if len(args) >= 3 && args[len(args)-2] == "from" {
		return []string{args[len(args)-1]}
	}
	return args
}

// splitArgs splits tag content on whitespace, keeping quoted strings intact.
func splitArgs(s string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return args
}

// unquote strips matching single or double quotes from s.
func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}
