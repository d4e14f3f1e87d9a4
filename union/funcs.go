package union

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
	"github.com/netconfd/confd/yang/xpath"
)

// funcLibrary implements xpath.FunctionLibrary (spec.md section 4.3's
// YANG extension functions: re-match(), deref(), derived-from(),
// derived-from-or-self(), enum-value(), bit-is-set(); current() is
// answered by the evaluator itself from its Context) against a bound
// instance tree. It needs the owning schema.Domain to resolve identity
// QNames and leafref targets, so it lives here rather than in yang/xpath
// itself (which must stay free of yang/data/yang/schema imports to avoid a
// cycle — both packages import yang/xpath, not the reverse).
type funcLibrary struct {
	domain *schema.Domain
}

func (funcLibrary) ReMatch(value, pattern string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

func asData(n xpath.Node) *data.Node {
	if dn, ok := n.(dnode); ok {
		if d, ok := dn.n.(*data.Node); ok {
			return d
		}
	}
	return nil
}

// Deref resolves a leafref-valued node to the node it targets, per
// RFC 7950 section 10.6.2. Kept as a best-effort instance-tree search
// (findByValue, the same one checkLeafrefs uses) rather than consulting the schema type's
// pre-parsed PathProg a second time.
func (f funcLibrary) Deref(n xpath.Node) (xpath.Node, error) {
	dn := asData(n)
	if dn == nil || dn.Schema == nil || dn.Schema.Type == nil {
		return nil, nil
	}
	target := dn.Schema.Type.LeafrefTarget()
	if target == nil {
		return nil, nil
	}
	root := dn
	for root.Parent() != nil {
		root = root.Parent()
	}
	if got := findByValue(root, target, dn.Value); got != nil {
		return wrap(got), nil
	}
	return nil, nil
}

func (f funcLibrary) DerivedFrom(n xpath.Node, moduleLocal string) (bool, error) {
	dn := asData(n)
	if dn == nil || f.domain == nil {
		return false, nil
	}
	base := qualify(moduleLocal, dn.Schema)
	id, err := f.identityOf(dn.Value, dn.Schema)
	if err != nil || id == nil {
		return false, nil
	}
	return id.DerivedFrom(base), nil
}

func (f funcLibrary) DerivedFromOrSelf(n xpath.Node, moduleLocal string) (bool, error) {
	dn := asData(n)
	if dn == nil || f.domain == nil {
		return false, nil
	}
	base := qualify(moduleLocal, dn.Schema)
	id, err := f.identityOf(dn.Value, dn.Schema)
	if err != nil || id == nil {
		return false, nil
	}
	return id.QName() == base || id.DerivedFrom(base), nil
}

func (funcLibrary) EnumValue(n xpath.Node) (int, error) {
	dn := asData(n)
	if dn == nil || dn.Schema == nil || dn.Schema.Type == nil {
		return 0, nil
	}
	for _, e := range dn.Schema.Type.Enums {
		if e.Name == dn.Value {
			return e.Value, nil
		}
	}
	return 0, nil
}

func (funcLibrary) BitIsSet(n xpath.Node, bit string) (bool, error) {
	dn := asData(n)
	if dn == nil {
		return false, nil
	}
	for _, b := range strings.Fields(dn.Value) {
		if b == bit {
			return true, nil
		}
	}
	return false, nil
}

// qualify resolves a (possibly prefixed) identity name written in a
// when/must/derived-from() argument within the namespace context of the
// node that carries the expression, defaulting to that node's own module
// when unprefixed (RFC 7950 section 9.10.4).
func qualify(moduleLocal string, sn *schema.Node) string {
	if strings.Contains(moduleLocal, ":") {
		return moduleLocal
	}
	if sn != nil && sn.Module != nil {
		return sn.Module.Name + ":" + moduleLocal
	}
	return moduleLocal
}

func (f funcLibrary) identityOf(value string, sn *schema.Node) (*schema.Identity, error) {
	qn := value
	if !strings.Contains(qn, ":") && sn != nil && sn.Module != nil {
		qn = sn.Module.Name + ":" + value
	}
	return f.domain.FindIdentity(qn)
}

func findByValue(n *data.Node, target *schema.Node, value string) *data.Node {
	var found *data.Node
	data.Walk(n, func(c *data.Node) data.WalkResult {
		if c.Schema == target && c.Value == value {
			found = c
			return data.WalkStop
		}
		return data.WalkContinue
	})
	return found
}

// asNumber parses s as a float64 for a best-effort numeric comparison of
// decimal64/integer leaf values. Nothing in this package calls it.
func asNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
