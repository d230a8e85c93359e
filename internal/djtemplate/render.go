package djtemplate

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxExtendsDepth bounds {% extends %} and {% include %} chains.
const maxExtendsDepth = 10

// Loader finds and parses templates by name.
type Loader interface {
	Load(name string) (*Document, error)
}

// DirLoader loads templates from an ordered list of directories; the first
// directory holding the name wins.
type DirLoader struct {
	Dirs []string
}

// Load implements Loader.
func (l *DirLoader) Load(name string) (*Document, error) {
	rel := filepath.FromSlash(name)
	for _, dir := range l.Dirs {
		path := filepath.Join(dir, rel)
		content, err := os.ReadFile(path) //nolint:gosec // G304: template dirs come from project settings
		if err != nil {
			continue
		}
		return Parse(string(content), filepath.ToSlash(path))
	}
	return nil, &TemplateNotFoundError{Name: name, Dirs: l.Dirs}
}

// TemplateNotFoundError is returned when no directory holds a template.
type TemplateNotFoundError struct {
	Name string
	Dirs []string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found (searched %s)", e.Name, strings.Join(e.Dirs, ", "))
}

// TagFunc renders a simple tag such as {% static %} from its arguments.
// Quoted arguments arrive unquoted.
type TagFunc func(args []string, data map[string]any) (string, error)

// Renderer renders templates with inheritance, includes, variables and the
// common control tags. Unknown tags render nothing.
type Renderer struct {
	Loader Loader
	Tags   map[string]TagFunc
}

// Render renders the named template with data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	doc, err := r.Loader.Load(name)
	if err != nil {
		return "", err
	}
	return r.RenderDocument(doc, data)
}

// RenderDocument renders a parsed template with data.
func (r *Renderer) RenderDocument(doc *Document, data map[string]any) (string, error) {
	return r.render(doc, data, 0)
}

func (r *Renderer) render(doc *Document, data map[string]any, depth int) (string, error) {
	chain, err := r.chain(doc, data, depth)
	if err != nil {
		return "", err
	}
	st := &renderState{
		r:      r,
		blocks: make(map[string][]*BlockNode),
		scope:  []map[string]any{data},
		depth:  depth,
	}
	for _, d := range chain {
		for _, name := range sortedBlockNames(d) {
			st.blocks[name] = append(st.blocks[name], d.Blocks[name])
		}
	}
	var out strings.Builder
	if err := st.nodes(&out, chain[len(chain)-1].Nodes); err != nil {
		return "", err
	}
	return out.String(), nil
}

// chain returns doc followed by its ancestors, the root template last.
func (r *Renderer) chain(doc *Document, data map[string]any, depth int) ([]*Document, error) {
	chain := []*Document{doc}
	seen := map[string]bool{doc.File: true}
	for cur := doc; cur.Extends != nil; {
		if len(chain)+depth > maxExtendsDepth {
			return nil, NewParseErrorf(cur.Extends.Pos(), "extends chain deeper than %d", maxExtendsDepth)
		}
		target := cur.Extends.Target
		if cur.Extends.Dynamic {
			v, _ := lookup(target, []map[string]any{data})
			s, ok := v.(string)
			if !ok || s == "" {
				return nil, NewParseErrorf(cur.Extends.Pos(), "extends target %s is not a template name", target)
			}
			target = s
		}
		parent, err := r.Loader.Load(target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cur.File, err)
		}
		if seen[parent.File] {
			return nil, NewParseErrorf(cur.Extends.Pos(), "template %s extends itself", target)
		}
		seen[parent.File] = true
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

func sortedBlockNames(d *Document) []string {
	names := make([]string, 0, len(d.Blocks))
	for name := range d.Blocks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// renderState is the state of one top-level render.
type renderState struct {
	r *Renderer
	// blocks holds every definition of a block, most derived first.
	blocks map[string][]*BlockNode
	// super is the stack of block definitions being rendered, for
	// {{ block.super }}.
	super []blockFrame
	scope []map[string]any
	depth int
}

type blockFrame struct {
	name  string
	level int
}

func (st *renderState) nodes(out *strings.Builder, nodes []Node) error {
	for _, n := range nodes {
		if err := st.node(out, n); err != nil {
			return err
		}
	}
	return nil
}

func (st *renderState) node(out *strings.Builder, n Node) error {
	switch n := n.(type) {
	case *TextNode:
		out.WriteString(n.Text)
	case *CommentNode, *LoadNode, *ExtendsNode:
	case *VarNode:
		return st.variable(out, n)
	case *BlockNode:
		return st.block(out, n.Name, 0)
	case *TagNode:
		return st.tag(out, n)
	case *PairNode:
		return st.pair(out, n)
	}
	return nil
}

func (st *renderState) block(out *strings.Builder, name string, level int) error {
	defs := st.blocks[name]
	if level >= len(defs) {
		return nil
	}
	st.super = append(st.super, blockFrame{name: name, level: level})
	defer func() { st.super = st.super[:len(st.super)-1] }()
	return st.nodes(out, defs[level].Body)
}

func (st *renderState) variable(out *strings.Builder, n *VarNode) error {
	expr, filters := splitFilters(n.Expr)
	if expr == "block.super" && len(st.super) > 0 {
		top := st.super[len(st.super)-1]
		return st.block(out, top.name, top.level+1)
	}
	v, _ := st.value(expr)
	safe := false
	for _, f := range filters {
		name, arg, _ := strings.Cut(f, ":")
		switch name {
		case "safe":
			safe = true
		case "default":
			if !truthy(v) {
				v, _ = st.value(arg)
			}
		case "upper":
			v = strings.ToUpper(display(v))
		case "lower":
			v = strings.ToLower(display(v))
		}
	}
	s := display(v)
	if !safe {
		s = html.EscapeString(s)
	}
	out.WriteString(s)
	return nil
}

func (st *renderState) tag(out *strings.Builder, n *TagNode) error {
	if n.Name == "include" {
		return st.include(out, n)
	}
	fn, ok := st.r.Tags[n.Name]
	if !ok {
		return nil
	}
	args := make([]string, 0, len(n.Args))
	for _, a := range n.Args {
		if s, quoted := unquote(a); quoted {
			args = append(args, s)
			continue
		}
		if v, ok := st.value(a); ok {
			args = append(args, display(v))
			continue
		}
		args = append(args, a)
	}
	s, err := fn(args, st.flatten())
	if err != nil {
		return NewParseErrorf(n.Pos(), "{%% %s %%}: %v", n.Name, err)
	}
	out.WriteString(s)
	return nil
}

func (st *renderState) include(out *strings.Builder, n *TagNode) error {
	if len(n.Args) == 0 {
		return NewParseError(n.Pos(), "'include' requires a template name")
	}
	name, quoted := unquote(n.Args[0])
	if !quoted {
		v, _ := st.value(name)
		name = display(v)
	}
	if st.depth+1 > maxExtendsDepth {
		return NewParseErrorf(n.Pos(), "include nested deeper than %d", maxExtendsDepth)
	}
	doc, err := st.r.Loader.Load(name)
	if err != nil {
		return err
	}
	s, err := st.r.render(doc, st.flatten(), st.depth+1)
	if err != nil {
		return err
	}
	out.WriteString(s)
	return nil
}

func (st *renderState) pair(out *strings.Builder, n *PairNode) error {
	switch n.Name {
	case "comment":
		return nil
	case "if":
		return st.ifBlock(out, n)
	case "for":
		return st.forBlock(out, n)
	case "with":
		st.push(bindings(n.Args, st))
		defer st.pop()
		return st.nodes(out, n.Body)
	case "verbatim":
		for _, c := range n.Body {
			switch c := c.(type) {
			case *TextNode:
				out.WriteString(c.Text)
			case *TagNode:
				out.WriteString("{% " + strings.Join(append([]string{c.Name}, c.Args...), " ") + " %}")
			}
		}
		return nil
	}
	return st.nodes(out, n.Body)
}

// ifBlock renders the first branch whose condition holds.
func (st *renderState) ifBlock(out *strings.Builder, n *PairNode) error {
	cond := n.Args
	var branch []Node
	for _, c := range n.Body {
		t, ok := c.(*TagNode)
		if ok && (t.Name == "elif" || t.Name == "else") {
			if st.condition(cond) {
				return st.nodes(out, branch)
			}
			cond, branch = t.Args, nil
			if t.Name == "else" {
				cond = nil
			}
			continue
		}
		branch = append(branch, c)
	}
	if st.condition(cond) {
		return st.nodes(out, branch)
	}
	return nil
}

// condition evaluates an {% if %} expression: operands joined by "or" and
// "and", each optionally negated or compared with == / !=. An empty
// expression is an else branch.
func (st *renderState) condition(args []string) bool {
	if args == nil {
		return true
	}
	for _, conj := range splitOn(args, "or") {
		all := true
		for _, term := range splitOn(conj, "and") {
			if !st.term(term) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (st *renderState) term(t []string) bool {
	if len(t) > 0 && t[0] == "not" {
		return !st.term(t[1:])
	}
	switch {
	case len(t) == 1:
		v, _ := st.value(t[0])
		return truthy(v)
	case len(t) == 3 && (t[1] == "==" || t[1] == "!="):
		a, _ := st.value(t[0])
		b, _ := st.value(t[2])
		return (display(a) == display(b)) == (t[1] == "==")
	}
	return false
}

func (st *renderState) forBlock(out *strings.Builder, n *PairNode) error {
	if len(n.Args) < 3 || n.Args[len(n.Args)-2] != "in" {
		return NewParseError(n.Pos(), "'for' statements should use the format 'for x in y'")
	}
	names := strings.Split(strings.Join(n.Args[:len(n.Args)-2], ""), ",")
	seq, _ := st.value(n.Args[len(n.Args)-1])
	items, _ := seq.([]any)

	body, empty := n.Body, []Node(nil)
	for i, c := range n.Body {
		if t, ok := c.(*TagNode); ok && t.Name == "empty" {
			body, empty = n.Body[:i], n.Body[i+1:]
			break
		}
	}
	if len(items) == 0 {
		return st.nodes(out, empty)
	}
	for i, item := range items {
		frame := map[string]any{
			"forloop": map[string]any{
				"counter":  int64(i + 1),
				"counter0": int64(i),
				"first":    i == 0,
				"last":     i == len(items)-1,
			},
		}
		if len(names) == 1 {
			frame[names[0]] = item
		} else if tuple, ok := item.([]any); ok {
			for j, name := range names {
				if j < len(tuple) {
					frame[name] = tuple[j]
				}
			}
		}
		st.push(frame)
		err := st.nodes(out, body)
		st.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (st *renderState) push(frame map[string]any) { st.scope = append(st.scope, frame) }
func (st *renderState) pop()                      { st.scope = st.scope[:len(st.scope)-1] }

// flatten merges the scope stack into one map, inner frames winning.
func (st *renderState) flatten() map[string]any {
	out := make(map[string]any)
	for _, frame := range st.scope {
		for k, v := range frame {
			out[k] = v
		}
	}
	return out
}

// value resolves a literal or a dotted variable path.
func (st *renderState) value(expr string) (any, bool) {
	expr = strings.TrimSpace(expr)
	if s, quoted := unquote(expr); quoted {
		return s, true
	}
	if i, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return i, true
	}
	switch expr {
	case "True":
		return true, true
	case "False":
		return false, true
	case "None":
		return nil, true
	}
	return lookup(expr, st.scope)
}

// lookup resolves a dotted path against the scope stack, innermost first.
// Numeric segments index lists.
func lookup(path string, scope []map[string]any) (any, bool) {
	parts := strings.Split(path, ".")
	for i := len(scope) - 1; i >= 0; i-- {
		v, ok := scope[i][parts[0]]
		if !ok {
			continue
		}
		for _, p := range parts[1:] {
			switch c := v.(type) {
			case map[string]any:
				v, ok = c[p]
			case []any:
				idx, err := strconv.Atoi(p)
				ok = err == nil && idx >= 0 && idx < len(c)
				if ok {
					v = c[idx]
				}
			default:
				ok = false
			}
			if !ok {
				return nil, false
			}
		}
		return v, true
	}
	return nil, false
}

// bindings parses "name=value" arguments of {% with %}.
func bindings(args []string, st *renderState) map[string]any {
	frame := make(map[string]any)
	for i := 0; i < len(args); i++ {
		if k, v, ok := strings.Cut(args[i], "="); ok {
			frame[k], _ = st.value(v)
			continue
		}
		// legacy form: {% with value as name %}
		if i+2 < len(args) && args[i+1] == "as" {
			frame[args[i+2]], _ = st.value(args[i])
			i += 2
		}
	}
	return frame
}

// splitFilters splits "value|filter:arg|other" at pipes outside quotes.
func splitFilters(expr string) (string, []string) {
	var parts []string
	var cur strings.Builder
	var quote rune
	for _, r := range expr {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '|':
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	parts = append(parts, strings.TrimSpace(cur.String()))
	return parts[0], parts[1:]
}

func splitOn(args []string, sep string) [][]string {
	var out [][]string
	start := 0
	for i, a := range args {
		if a == sep {
			out = append(out, args[start:i])
			start = i + 1
		}
	}
	return append(out, args[start:])
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

// display formats a value the way Django prints it.
func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}
