package union

import (
	"fmt"
	"log"

	"github.com/netconfd/confd/common"
	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
	"github.com/netconfd/confd/yang/xpath"
)

// Options controls a Validate pass.
type Options struct {
	// Domain is the schema domain root points into; required.
	Domain *schema.Domain
	// Mounts resolves a mount-point instance to its mounted domain
	// (spec.md component H). Nil if schema-mount is unused.
	Mounts MountResolver
}

// MountResolver is the narrow surface union needs from package mount: the
// domain governing a mount-point instance, looked up by canonical XPath.
type MountResolver interface {
	DomainFor(mountPoint *data.Node) (*schema.Domain, error)
}

// nsResolver adapts a schema.Module to xpath.NSResolver.
type nsResolver struct{ m *schema.Module }

func (r nsResolver) Resolve(prefix string) (string, bool) { return r.m.ResolveNamespace(prefix) }

// Validate runs the full component-D check battery (spec.md section 4.4)
// against root. It first prunes every subtree whose "when" is false, then
// checks type, keys and unique, mandatory, must, leafref integrity and
// min/max-elements on what remains; pruned subtrees are not type-checked,
// and mandatory is checked only once, after pruning. It returns every
// failure found rather than stopping at the first, mirroring the
// teacher's validator call shape of returning a full error list for a
// single rpc-reply.
func Validate(root *data.Node, opts Options) []*mgmterror.MgmtError {
	v := &validator{opts: opts, funcs: funcLibrary{domain: opts.Domain}}
	v.pruneWhen(root)
	var errs []*mgmterror.MgmtError
	errs = append(errs, v.checkTypes(root)...)
	errs = append(errs, v.checkKeysAndUnique(root)...)
	errs = append(errs, v.checkMandatory(root)...)
	errs = append(errs, v.checkMusts(root)...)
	errs = append(errs, v.checkLeafrefs(root)...)
	errs = append(errs, v.checkElementCounts(root)...)
	return errs
}

type validator struct {
	opts  Options
	funcs xpath.FunctionLibrary
}

func pathOf(n *data.Node) []string {
	p := n.Path()
	return []string{p}
}

func (v *validator) ctxFor(n *data.Node) *xpath.Context {
	mod := (*schema.Module)(nil)
	if n.Schema != nil {
		mod = n.Schema.Module
	}
	var ns xpath.NSResolver
	if mod != nil {
		ns = nsResolver{mod}
	}
	return &xpath.Context{Node: n, Position: 1, Size: 1, NS: ns, Funcs: v.funcs}
}

// pruneWhen removes (spec.md section 4.4 step 5) any subtree whose
// schema node carries a "when" that evaluates false. Non-fatal: an
// evaluation error is treated as false (prune). A "when" whose expression
// failed to compile at schema-load time has no Program and is skipped, so
// it never prunes.
func (v *validator) pruneWhen(n *data.Node) {
	for _, c := range append([]*data.Node(nil), n.Children()...) {
		if c.Schema != nil {
			keep := true
			for _, w := range c.Schema.Whens {
				if w.Program == nil {
					continue
				}
				ok, err := xpath.EvalBoolean(w.Program, v.ctxFor(c))
				if err != nil || !ok {
					if common.LoggingIsEnabledAtLevel(common.LevelDebug, common.TypeWhen) {
						log.Printf("when: pruning %s (%s)", c.Path(), w.XPath)
					}
					keep = false
					break
				}
			}
			if !keep {
				n.RemoveChild(c)
				continue
			}
		}
		v.pruneWhen(c)
	}
}

func (v *validator) checkTypes(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	if n.Schema != nil && n.Schema.Type != nil && (n.Schema.Kind == schema.KindLeaf || n.Schema.Kind == schema.KindLeafList) {
		if err := n.Schema.Type.ValidateValue(pathOf(n), n.Value); err != nil {
			err.Path = n.Path()
			errs = append(errs, err)
		}
		if n.Schema.Type.Base == schema.TIdentityref {
			errs = append(errs, v.checkIdentityref(n)...)
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkTypes(c)...)
	}
	return errs
}

func (v *validator) checkIdentityref(n *data.Node) []*mgmterror.MgmtError {
	if v.opts.Domain == nil || len(n.Schema.Type.IdentityBases) == 0 {
		return nil
	}
	id, _ := v.funcs.(funcLibrary).identityOf(n.Value, n.Schema)
	if id == nil {
		return []*mgmterror.MgmtError{withPath(mgmterror.NewInvalidValueError(), n)}
	}
	for _, base := range n.Schema.Type.IdentityBases {
		baseQ := qualify(base, n.Schema)
		if id.QName() == baseQ || id.DerivedFrom(baseQ) {
			return nil
		}
	}
	return []*mgmterror.MgmtError{withPath(mgmterror.NewInvalidValueError(), n)}
}

func withPath(e *mgmterror.MgmtError, n *data.Node) *mgmterror.MgmtError {
	e.Path = n.Path()
	return e
}

// checkKeysAndUnique implements spec.md section 4.4 steps 2-3: every list
// entry has all key leaves and a unique key tuple among siblings, and
// every "unique" statement's descendant-leaf tuple is unique among
// siblings (absent leaves never collide).
func (v *validator) checkKeysAndUnique(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	bySchema := map[*schema.Node][]*data.Node{}
	for _, c := range n.Children() {
		if c.Schema != nil {
			bySchema[c.Schema] = append(bySchema[c.Schema], c)
		}
	}
	for sn, entries := range bySchema {
		if sn.Kind != schema.KindList {
			continue
		}
		seenKeys := map[string]*data.Node{}
		for _, e := range entries {
			for _, k := range sn.KeyNames {
				if e.Child(k) == nil {
					errs = append(errs, withPath(mgmterror.NewMissingElementError([]string{e.Path()}, k), e))
				}
			}
			kk := fmt.Sprint(e.KeyValues())
			if prev, ok := seenKeys[kk]; ok && prev != e {
				errs = append(errs, withPath(mgmterror.NewDataExistsError([]string{e.Path()}), e))
			}
			seenKeys[kk] = e
		}
		for _, uniq := range sn.Unique {
			seen := map[string]bool{}
			for _, e := range entries {
				vals, allAbsent := uniqueTuple(e, uniq)
				if allAbsent {
					continue
				}
				key := fmt.Sprint(vals)
				if seen[key] {
					errs = append(errs, withPath(mgmterror.NewUniqueViolationError([]string{e.Path()}, uniq), e))
				}
				seen[key] = true
			}
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkKeysAndUnique(c)...)
	}
	return errs
}

func uniqueTuple(entry *data.Node, relPaths []string) ([]string, bool) {
	vals := make([]string, len(relPaths))
	allAbsent := true
	for i, rp := range relPaths {
		cur := entry
		for _, seg := range splitRel(rp) {
			if cur == nil {
				break
			}
			cur = cur.Child(seg)
		}
		if cur != nil {
			vals[i] = cur.Value
			allAbsent = false
		}
	}
	return vals, allAbsent
}

func splitRel(p string) []string {
	var out []string
	cur := ""
	for _, r := range p {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// checkMandatory implements spec.md section 4.4 step 4, re-checked after
// when-pruning so a pruned mandatory descendant doesn't falsely fail.
func (v *validator) checkMandatory(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	if n.Schema != nil && (n.Schema.Kind == schema.KindContainer && !n.Schema.Presence() || n.Value != "" || len(n.Children()) > 0) {
		for _, sn := range n.Schema.FlattenedChildren() {
			if sn.Mandatory && n.Child(sn.Name) == nil {
				errs = append(errs, withPath(mgmterror.NewMandatoryNodeNotSetError([]string{n.Path() + "/" + sn.Name}), n))
			}
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkMandatory(c)...)
	}
	return errs
}

// checkMusts implements spec.md section 4.4 step 6.
func (v *validator) checkMusts(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	if n.Schema != nil {
		for _, m := range n.Schema.Musts {
			if m.Program == nil {
				continue
			}
			ok, err := xpath.EvalBoolean(m.Program, v.ctxFor(n))
			if err != nil || !ok {
				if common.LoggingIsEnabledAtLevel(common.LevelDebug, common.TypeMust) {
					log.Printf("must: %s failed (%s)", n.Path(), m.XPath)
				}
				errs = append(errs, withPath(mgmterror.NewMustViolationError([]string{n.Path()}, m.AppTag, m.Message), n))
			}
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkMusts(c)...)
	}
	return errs
}

// checkLeafrefs implements spec.md section 4.4 step 7: a
// require-instance true leafref's value must resolve to an existing
// target node of equal canonical value.
func (v *validator) checkLeafrefs(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	if n.Schema != nil && n.Schema.Type != nil && n.Schema.Type.Base == schema.TLeafref && n.Schema.Type.RequireInstance {
		target := n.Schema.Type.LeafrefTarget()
		if target != nil {
			root := n
			for root.Parent() != nil {
				root = root.Parent()
			}
			if findByValue(root, target, n.Value) == nil {
				errs = append(errs, withPath(mgmterror.NewLeafrefTargetMissingError(n.Path(), n.Value), n))
			}
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkLeafrefs(c)...)
	}
	return errs
}

// checkElementCounts implements spec.md section 4.4 step 8.
func (v *validator) checkElementCounts(n *data.Node) []*mgmterror.MgmtError {
	var errs []*mgmterror.MgmtError
	counts := map[*schema.Node]int{}
	for _, c := range n.Children() {
		if c.Schema != nil {
			counts[c.Schema]++
		}
	}
	for sn, count := range counts {
		if sn.Kind != schema.KindList && sn.Kind != schema.KindLeafList {
			continue
		}
		if count < sn.MinElems {
			errs = append(errs, withPath(mgmterror.NewTooFewElementsError([]string{n.Path() + "/" + sn.Name}), n))
		}
		if sn.MaxElems > 0 && count > sn.MaxElems {
			errs = append(errs, withPath(mgmterror.NewTooManyElementsError([]string{n.Path() + "/" + sn.Name}), n))
		}
	}
	for _, c := range n.Children() {
		errs = append(errs, v.checkElementCounts(c)...)
	}
	return errs
}
