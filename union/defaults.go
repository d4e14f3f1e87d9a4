package union

import (
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// AddDefaults augments root with explicit default leaves for any
// default-bearing leaf absent from its container, and with empty
// non-presence containers required to host mandatory defaults
// (spec.md section 4.4, "Defaults", run before Validate). Choice
// defaults (a "default" case with no case materialized) are handled the
// same way: the default case's leaves are added as if explicitly present.
func AddDefaults(root *data.Node) {
	if root.Schema == nil {
		for _, c := range root.Children() {
			AddDefaults(c)
		}
		return
	}
	addDefaultsUnder(root, root.Schema)
}

func addDefaultsUnder(n *data.Node, sn *schema.Node) {
	for _, c := range sn.Children {
		switch c.Kind {
		case schema.KindChoice:
			addDefaultCase(n, c)
			continue
		case schema.KindLeaf:
			if n.Child(c.Name) == nil && len(c.Default) == 1 {
				leaf := data.NewLeaf(c, c.Default[0])
				leaf.Transient = true
				n.AppendChild(leaf)
			}
		case schema.KindLeafList:
			if len(n.ChildrenNamed(c.Name)) == 0 {
				for _, d := range c.Default {
					leaf := data.NewLeaf(c, d)
					leaf.Transient = true
					n.AppendChild(leaf)
				}
			}
		case schema.KindContainer:
			if n.Child(c.Name) == nil && !c.Presence() && hasMandatoryOrDefaultDescendant(c) {
				container := data.New(c)
				container.Transient = true
				n.AppendChild(container)
				addDefaultsUnder(container, c)
			} else if existing := n.Child(c.Name); existing != nil {
				addDefaultsUnder(existing, c)
			}
		}
	}
	for _, existing := range n.Children() {
		if existing.Schema != nil && (existing.Schema.Kind == schema.KindContainer || existing.Schema.Kind == schema.KindList) {
			addDefaultsUnder(existing, existing.Schema)
		}
	}
}

// addDefaultCase instantiates a choice's "default case" substatement's
// leaves when no case is otherwise materialized under n (RFC 7950
// section 7.9.3). choiceSn's Children are the synthetic "case" wrapper
// nodes schema resolution produces for shorthand leaf/container cases.
func addDefaultCase(n *data.Node, choiceSn *schema.Node) {
	for _, caseSn := range choiceSn.Children {
		for _, leafSn := range caseSn.FlattenedChildren() {
			if n.Child(leafSn.Name) != nil {
				return // some case already materialized; nothing to default
			}
		}
	}
	// No case present: the schema-load pass records the default case's
	// direct children at choiceSn.Children[0] by convention when a
	// "default" argument was given; absent that, there is nothing to add.
	if len(choiceSn.Children) == 0 {
		return
	}
	addDefaultsUnder(n, choiceSn.Children[0])
}

func hasMandatoryOrDefaultDescendant(sn *schema.Node) bool {
	for _, c := range sn.Children {
		if c.Mandatory || len(c.Default) > 0 {
			return true
		}
		if c.Kind == schema.KindContainer && !c.Presence() && hasMandatoryOrDefaultDescendant(c) {
			return true
		}
	}
	return false
}
