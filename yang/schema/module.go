package schema

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/netconfd/confd/yang/parse"
)

// Module is one resolved YANG module or submodule (component A). Revision
// selection across files providing the same module name follows spec.md
// section 6: exact match if requested, else latest by lexicographic
// revision date.
type Module struct {
	Name      string
	Namespace string
	Prefix    string
	Revision  string
	Root      *Node // the module's own top-level "module" Node

	imports map[string]*Module // prefix -> imported module
	idents  map[string]*Identity

	statement *parse.Statement
}

// Identity is a resolved YANG "identity" statement with its direct bases
// (resolution pass 6, spec.md section 4.1); DerivedFrom walks them
// transitively.
type Identity struct {
	Module *Module
	Name    string
	Bases   []*Identity
}

// QName returns "module-name:identity-name".
func (id *Identity) QName() string { return id.Module.Name + ":" + id.Name }

// DerivedFrom reports whether id is transitively derived from base (by
// identity QName). It is false when id is base itself.
func (id *Identity) DerivedFrom(baseQName string) bool {
	if id.QName() == baseQName {
		return false // "derived-from" excludes self; callers add self check for derived-from-or-self
	}
	return id.derivesFrom(baseQName, map[*Identity]bool{})
}

func (id *Identity) derivesFrom(baseQName string, seen map[*Identity]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	for _, b := range id.Bases {
		if b.QName() == baseQName {
			return true
		}
		if b.derivesFrom(baseQName, seen) {
			return true
		}
	}
	return false
}

// Domain is a schema domain (spec.md section 3): a forest of modules that
// resolve imports/augments against each other. The top-level device schema
// is one Domain; each mounted subtree (component H) is a separate Domain.
type Domain struct {
	modules map[string]map[string]*Module // name -> revision -> Module
	order   []string                      // module names in load order

	identities map[string]*Identity // "module:name" -> Identity
}

func NewDomain() *Domain {
	return &Domain{
		modules:    make(map[string]map[string]*Module),
		identities: make(map[string]*Identity),
	}
}

// AddModuleSource parses and registers a module's raw text under its
// (name, revision) key. Resolution (imports, uses, etc.) is deferred to
// Compile so that forward references across modules are legal.
func (d *Domain) AddModuleSource(filename string, text []byte) error {
	stmt, err := parse.Parse(filename, text)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", filename)
	}
	name := stmt.Argument
	rev := latestRevisionArg(stmt)
	m := &Module{Name: name, Revision: rev, statement: stmt}
	if ns := stmt.Find("namespace"); ns != nil {
		m.Namespace = ns.Argument
	}
	if p := stmt.Find("prefix"); p != nil {
		m.Prefix = p.Argument
	}
	if d.modules[name] == nil {
		d.modules[name] = make(map[string]*Module)
		d.order = append(d.order, name)
	}
	d.modules[name][rev] = m
	return nil
}

func latestRevisionArg(stmt *parse.Statement) string {
	revs := stmt.FindAll("revision")
	best := ""
	for _, r := range revs {
		if r.Argument > best {
			best = r.Argument
		}
	}
	return best
}

// Module looks up a module by name, selecting the given revision if
// non-empty, else the latest lexicographically (spec.md section 6).
func (d *Domain) Module(name, revision string) (*Module, error) {
	revs, ok := d.modules[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown module %q", name)
	}
	if revision != "" {
		m, ok := revs[revision]
		if !ok {
			return nil, fmt.Errorf("schema: module %q has no revision %q", name, revision)
		}
		return m, nil
	}
	var keys []string
	for k := range revs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return revs[keys[len(keys)-1]], nil
}

// Modules returns every loaded module's latest revision, in load order.
func (d *Domain) Modules() []*Module {
	var out []*Module
	for _, name := range d.order {
		m, err := d.Module(name, "")
		if err == nil {
			out = append(out, m)
		}
	}
	return out
}

// FindIdentity looks up a previously resolved identity by its
// "module:name" QName (resolution pass 6, spec.md section 4.1). An
// unknown QName returns (nil, nil) since an identityref value naming an
// undeclared identity is a type-validation failure for the caller to
// raise, not a lookup error.
func (d *Domain) FindIdentity(qn string) (*Identity, error) {
	return d.identities[qn], nil
}

// FindSchemaNode resolves a canonical absolute schema path
// ("/prefix:name/prefix:name/...") to a Node, per spec.md section 4.1.
func (d *Domain) FindSchemaNode(path string) (*Node, error) {
	segs := pathSegments(path)
	var cur *Node
	for i, seg := range segs {
		prefix, local, err := splitQName(seg)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			m, err := d.moduleByPrefixOrName(prefix, nil)
			if err != nil {
				return nil, err
			}
			cur = m.Root.Child(local)
			if cur == nil {
				return nil, fmt.Errorf("schema: no top-level node %q in module %q", local, m.Name)
			}
			continue
		}
		next := cur.Child(local)
		if next == nil {
			return nil, fmt.Errorf("schema: no child %q under %s", local, cur.CanonicalPath())
		}
		cur = next
	}
	return cur, nil
}

// ResolveNamespace resolves a QName prefix used within a statement owned
// by m (a when/must/path XPath expression, a leafref path, an
// identityref value) to its namespace URI, honoring m's own prefix and its
// imports. It lets callers outside this package (union, mount, restconf)
// build an xpath.NSResolver without reaching into unexported state.
func (m *Module) ResolveNamespace(prefix string) (string, bool) {
	if prefix == "" || prefix == m.Prefix {
		return m.Namespace, true
	}
	if imp, ok := m.imports[prefix]; ok {
		return imp.Namespace, true
	}
	return "", false
}

func (d *Domain) moduleByPrefixOrName(prefix string, importer *Module) (*Module, error) {
	if importer != nil {
		if m, ok := importer.imports[prefix]; ok {
			return m, nil
		}
		if prefix == importer.Prefix {
			return importer, nil
		}
	}
	for _, m := range d.Modules() {
		if m.Name == prefix || m.Prefix == prefix {
			return m, nil
		}
	}
	return nil, fmt.Errorf("schema: unknown module or prefix %q", prefix)
}

func splitQName(s string) (prefix, local string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", s, nil
}
