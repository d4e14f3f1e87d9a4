package netconf

import (
	"encoding/xml"

	"github.com/netconfd/confd/datastore"
	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/data/encoding"
	"github.com/netconfd/confd/yang/schema"
)

// Session is the per-connection context a built-in handler receives
// (spec.md section 9's typed context struct). ID is used for lock
// ownership and kill-session.
type Session struct {
	ID     string
	Domain *schema.Domain
	Store  *datastore.Store
	Binder *data.Binder
}

// RegisterBuiltins wires the minimum operation set spec.md section 4.6
// requires onto d, each handler receiving *Session as its ctx.
func RegisterBuiltins(d *Dispatcher) {
	d.Register("", OpGet, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		return marshalData(s.Store.Get(datastore.Running))
	})
	d.Register("", OpGetConfig, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		var env struct {
			Source struct {
				Inner []byte `xml:",innerxml"`
			} `xml:"source"`
		}
		if err := xml.Unmarshal(req.Body, &env); err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		source, err := datastoreName(env.Source.Inner)
		if err != nil {
			return nil, err
		}
		root := s.Store.Get(source)
		if root == nil {
			return nil, mgmterror.NewOperationNotSupportedError()
		}
		return marshalData(root)
	})
	d.Register("", OpEditConfig, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		var env struct {
			Target struct {
				Inner []byte `xml:",innerxml"`
			} `xml:"target"`
			DefaultOperation string `xml:"default-operation"`
			Config           struct {
				Inner []byte `xml:",innerxml"`
			} `xml:"config"`
		}
		if err := xml.Unmarshal(req.Body, &env); err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		defaultOp := data.OpMerge
		if env.DefaultOperation != "" {
			op, err := data.ParseOp(env.DefaultOperation)
			if err != nil {
				return nil, mgmterror.NewBadElementError(nil, "default-operation")
			}
			defaultOp = op
		}
		fragment, err := s.Binder.Bind(env.Config.Inner)
		if err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		return nil, s.Store.Edit(fragment, defaultOp)
	})
	d.Register("", OpCopyConfig, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		var env struct {
			Target struct {
				Inner []byte `xml:",innerxml"`
			} `xml:"target"`
			Source struct {
				Inner  []byte `xml:",innerxml"`
				Config struct {
					Inner []byte `xml:",innerxml"`
				} `xml:"config"`
			} `xml:"source"`
		}
		if err := xml.Unmarshal(req.Body, &env); err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		target, err := datastoreName(env.Target.Inner)
		if err != nil {
			return nil, err
		}
		var content *data.Node
		if len(env.Source.Config.Inner) > 0 {
			content, err = s.Binder.Bind(env.Source.Config.Inner)
			if err != nil {
				return nil, mgmterror.NewMalformedMessageError()
			}
		} else {
			source, err := datastoreName(env.Source.Inner)
			if err != nil {
				return nil, err
			}
			root := s.Store.Get(source)
			if root == nil {
				return nil, mgmterror.NewOperationNotSupportedError()
			}
			content = root.Clone()
		}
		return nil, s.Store.Replace(target, content)
	})
	d.Register("", OpDeleteConfig, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		target, err := parseTarget(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, s.Store.Clear(target)
	})
	d.Register("", OpCreateSubscription, func(ctx interface{}, req *Request) ([]byte, error) {
		// Notification delivery is a transport concern the daemon's
		// session layer owns; create-subscription itself only needs to
		// succeed here so capability-probing clients don't treat it as
		// unsupported (spec.md section 4.6).
		return nil, nil
	})
	d.Register("", OpLock, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		target, err := parseTarget(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, s.Store.Lock(target, s.ID)
	})
	d.Register("", OpUnlock, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		target, err := parseTarget(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, s.Store.Unlock(target, s.ID)
	})
	d.Register("", OpKillSession, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		var body struct {
			SessionID string `xml:"session-id"`
		}
		if err := xml.Unmarshal(req.Body, &body); err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		s.Store.KillSession(body.SessionID)
		return nil, nil
	})
	d.Register("", OpDiscardChanges, func(ctx interface{}, req *Request) ([]byte, error) {
		ctx.(*Session).Store.DiscardChanges()
		return nil, nil
	})
	d.Register("", OpValidate, func(ctx interface{}, req *Request) ([]byte, error) {
		if errs := ctx.(*Session).Store.Validate(); len(errs) != 0 {
			return nil, &mgmterror.MgmtErrorList{Errors: errs}
		}
		return nil, nil
	})
	d.Register("", OpCommit, func(ctx interface{}, req *Request) ([]byte, error) {
		s := ctx.(*Session)
		errs, err := s.Store.Commit(s.ID)
		if err != nil {
			return nil, err
		}
		if len(errs) != 0 {
			return nil, &mgmterror.MgmtErrorList{Errors: errs}
		}
		return nil, nil
	})
	d.Register("", OpCloseSession, func(ctx interface{}, req *Request) ([]byte, error) {
		return nil, nil
	})
}

// parseTarget extracts the <target><candidate/></target>-style datastore
// selector RFC 6241 uses for lock/unlock/delete-config. get-config and
// copy-config parse their own <source>/<target> envelopes.
func parseTarget(body []byte) (datastore.Name, error) {
	var env struct {
		Target struct {
			Inner []byte `xml:",innerxml"`
		} `xml:"target"`
	}
	if err := xml.Unmarshal(body, &env); err != nil {
		return "", mgmterror.NewMalformedMessageError()
	}
	return datastoreName(env.Target.Inner)
}

// datastoreName resolves the inner XML of a <target> or <source> element
// (its single child element name) to the datastore it selects.
func datastoreName(inner []byte) (datastore.Name, error) {
	var probe struct{ XMLName xml.Name }
	if err := xml.Unmarshal(inner, &probe); err != nil {
		return "", mgmterror.NewMalformedMessageError()
	}
	switch probe.XMLName.Local {
	case "candidate":
		return datastore.Candidate, nil
	case "running":
		return datastore.Running, nil
	case "startup":
		return datastore.Startup, nil
	}
	return "", mgmterror.NewBadElementError(nil, "target")
}

// marshalData renders root's children as a <data> element, the get/
// get-config reply body shape RFC 6241 sections 7.1/7.7 require.
func marshalData(root *data.Node) ([]byte, error) {
	inner, err := encoding.ToXML(root)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("<data>"), inner...), []byte("</data>")...), nil
}
