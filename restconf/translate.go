// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package restconf

import (
	"encoding/xml"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/fcgi"
	"strings"

	"github.com/netconfd/confd/datastore"
	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/data/encoding"
	"github.com/netconfd/confd/yang/schema"
)

const (
	mimeJSON = "application/yang-data+json"
	mimeXML  = "application/yang-data+xml"
)

// Options controls a Handler's body encoding.
type Options struct {
	// WidenInt64 is passed straight through to encoding.Options; see its
	// doc comment (spec §9(b)).
	WidenInt64 bool
}

// RPCHandler executes a schema-defined custom "rpc" statement (spec.md
// section 9's open plugin registry for dynamic dispatch), given its bound
// <input> instance tree (nil if the rpc declares no input). It must
// return a nil output exactly when the rpc statement declares no
// "output" substatement, which RFC 8040 section 3.6 maps to 204 No
// Content instead of a 200 body.
type RPCHandler func(input *data.Node) (*data.Node, error)

// Handler implements RFC 8040's /data and /operations subtrees: verb
// mapping onto the candidate datastore's edit/validate/commit pipeline,
// content negotiation between application/yang-data+json and +xml, RPC
// invocation, and RFC 8040 section 7.1 error-body shaping. It serves both
// as an http.Handler and, via ServeFastCGI, over FastCGI - matching the
// two front-end transports spec.md section 6 names.
type Handler struct {
	Domain *schema.Domain
	Store  *datastore.Store
	Binder *data.Binder
	Opts   Options

	// RPCs maps "module:rpc-name" to the handler invoked by POST
	// /operations/module:rpc-name (RFC 8040 section 3.6).
	RPCs map[string]RPCHandler

	// SessionID attributes edit-config-equivalent RESTCONF writes to a
	// single implicit session, since RESTCONF itself has no session
	// concept (RFC 8040 section 1.3).
	SessionID string
}

// ServeFastCGI runs h as a FastCGI responder, accepting connections on l -
// the deployment spec.md section 6 describes for RESTCONF sitting behind
// a web server that speaks FastCGI rather than proxying plain HTTP.
func ServeFastCGI(h http.Handler, l net.Listener) error {
	return fcgi.Serve(l, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/restconf/data") && !strings.HasPrefix(r.URL.Path, "/restconf/operations") {
		http.NotFound(w, r)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/restconf/operations"):
		h.serveOperation(w, r)
	default:
		h.serveData(w, r)
	}
}

func (h *Handler) serveData(w http.ResponseWriter, r *http.Request) {
	apiPath := strings.TrimPrefix(r.URL.Path, "/restconf/data")
	segs, err := ParseAPIPath(apiPath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.handleGet(w, r, segs)
	case http.MethodPost:
		h.handleCreate(w, r, segs)
	case http.MethodPut:
		h.handleReplace(w, r, segs)
	case http.MethodPatch:
		h.handleMerge(w, r, segs)
	case http.MethodDelete:
		h.handleDelete(w, r, segs)
	default:
		h.writeError(w, r, mgmterror.NewOperationNotSupportedError())
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, segs []Segment) {
	root := h.Store.Get(datastore.Running)
	target := Locate(root, segs)
	if target == nil {
		h.writeError(w, r, mgmterror.NewDataMissingError(nil))
		return
	}
	// writeNode/ToJSON and ToXML both render their argument's *children*,
	// not the argument itself (the same convention serveOperation's
	// "config" wrapper relies on below), so the requested resource is
	// cloned under a synthetic root to get its own module-qualified key
	// in the response instead of just its children's.
	wrapper := &data.Node{Name: "config"}
	wrapper.AppendChild(target.Clone())
	h.writeNode(w, r, wrapper)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, segs []Segment) {
	frag, err := h.decodeBody(r, segs, data.OpCreate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Edit(frag, data.OpMerge); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path)
	h.commitOrFail(w, r, http.StatusCreated)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request, segs []Segment) {
	existed := Locate(h.Store.Get(datastore.Running), segs) != nil
	frag, err := h.decodeBody(r, segs, data.OpReplace)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Edit(frag, data.OpMerge); err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusNoContent
	if !existed {
		status = http.StatusCreated
	}
	h.commitOrFail(w, r, status)
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request, segs []Segment) {
	frag, err := h.decodeBody(r, segs, data.OpMerge)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Edit(frag, data.OpMerge); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.commitOrFail(w, r, http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, segs []Segment) {
	root := h.Store.Get(datastore.Candidate)
	target := Locate(root, segs)
	if target == nil {
		h.writeError(w, r, mgmterror.NewDataMissingError(nil))
		return
	}
	frag, parent, _, err := h.buildAncestors(segs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	del := target.Clone()
	del.SetOp(data.OpDelete)
	parent.AppendChild(del)
	if err := h.Store.Edit(frag, data.OpMerge); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.commitOrFail(w, r, http.StatusNoContent)
}

func (h *Handler) commitOrFail(w http.ResponseWriter, r *http.Request, successStatus int) {
	errs, err := h.Store.Commit(h.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(errs) != 0 {
		h.writeErrorList(w, r, errs)
		return
	}
	w.WriteHeader(successStatus)
}

// serveOperation handles POST to /restconf/operations/{module}:{rpc} (RFC
// 8040 section 3.6): resolves the rpc's schema node, decodes its <input>
// (if declared) from the negotiated body encoding, invokes the
// registered RPCHandler, and reshapes the result as {module:output} (or
// 204 if the rpc declares no output).
func (h *Handler) serveOperation(w http.ResponseWriter, r *http.Request) {
	apiPath := strings.TrimPrefix(r.URL.Path, "/restconf/operations")
	segs, err := ParseAPIPath(apiPath)
	if err != nil || len(segs) != 1 || segs[0].Module == "" {
		h.writeError(w, r, mgmterror.NewUnknownElementError(nil, apiPath))
		return
	}
	seg := segs[0]
	m, merr := h.Domain.Module(seg.Module, "")
	if merr != nil {
		h.writeError(w, r, mgmterror.NewUnknownNamespaceError(nil, seg.Module))
		return
	}
	rpcSn := m.Root.Child(seg.Name)
	if rpcSn == nil || rpcSn.Kind != schema.KindRPC {
		h.writeError(w, r, mgmterror.NewUnknownElementError(nil, seg.Name))
		return
	}
	handler, ok := h.RPCs[seg.Module+":"+seg.Name]
	if !ok {
		h.writeError(w, r, mgmterror.NewOperationNotSupportedError())
		return
	}

	var input *data.Node
	if inputSn := rpcSn.Child("input"); inputSn != nil {
		body, rerr := io.ReadAll(r.Body)
		if rerr != nil {
			h.writeError(w, r, mgmterror.NewMalformedMessageError())
			return
		}
		if len(body) > 0 {
			n, berr := h.decodeAt(r, inputSn, seg.Module, body)
			if berr != nil {
				h.writeError(w, r, mgmterror.NewMalformedMessageError())
				return
			}
			input = n
		}
	}

	output, err := handler(input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if output == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	wrapper := &data.Node{Name: "config"}
	wrapper.AppendChild(output)
	h.writeNode(w, r, wrapper)
}

// decodeAt decodes body (JSON or XML, per r's Content-Type) as the single
// resource sn, a RESTCONF write-body fragment targeting a nested resource
// (spec.md section 4.7) rather than a whole document.
func (h *Handler) decodeAt(r *http.Request, sn *schema.Node, parentModule string, body []byte) (*data.Node, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == mimeJSON {
		nodes, err := encoding.FromJSONFragment(sn, parentModule, body)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, mgmterror.NewMalformedMessageError()
		}
		return nodes[0], nil
	}
	return h.Binder.BindAt(sn, body)
}

// decodeBody reads r's body and binds it as the content for the resource
// segs names, wrapping it in the ancestor instance nodes segs implies (so
// the result merges correctly from datastore.Store's "config" root) and
// setting the edit-config operation op on the target node(s) (spec.md
// section 4.7, 4.5).
func (h *Handler) decodeBody(r *http.Request, segs []Segment, op data.Op) (*data.Node, error) {
	if len(segs) == 0 {
		return nil, mgmterror.NewOperationNotSupportedError()
	}
	root, parent, targetSchema, err := h.buildAncestors(segs)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, mgmterror.NewMalformedMessageError()
	}
	parentModule := ""
	if targetSchema.Parent != nil && targetSchema.Parent.Module != nil {
		parentModule = targetSchema.Parent.Module.Name
	}

	var nodes []*data.Node
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == mimeJSON {
		nodes, err = encoding.FromJSONFragment(targetSchema, parentModule, body)
	} else {
		var n *data.Node
		n, err = h.Binder.BindAt(targetSchema, body)
		if err == nil {
			nodes = []*data.Node{n}
		}
	}
	if err != nil {
		return nil, mgmterror.NewMalformedMessageError()
	}
	for _, n := range nodes {
		n.SetOp(op)
		parent.AppendChild(n)
	}
	return root, nil
}

// buildAncestors walks segs[:-1] against h.Domain, producing the chain of
// bound-but-empty instance nodes (list ancestors carry only their key
// leaves) that a fragment targeting segs' final resource must be wrapped
// in for datastore.Store.Edit's top-down, key-matching merge (package
// datastore's mergeChildren) to locate it. It returns the synthetic
// "config" root, the deepest ancestor node new content should be
// appended under, and the final segment's resolved schema node.
func (h *Handler) buildAncestors(segs []Segment) (root, parent *data.Node, target *schema.Node, err error) {
	root = &data.Node{Name: "config"}
	parent = root
	var cur *schema.Node
	lastModule := ""
	for i, seg := range segs {
		modName := seg.Module
		if modName == "" {
			modName = lastModule
		}
		if modName == "" {
			return nil, nil, nil, mgmterror.NewUnknownElementError(nil, seg.Name)
		}
		lastModule = modName
		if i == 0 {
			m, merr := h.Domain.Module(modName, "")
			if merr != nil {
				return nil, nil, nil, mgmterror.NewUnknownNamespaceError(nil, modName)
			}
			cur = m.Root.Child(seg.Name)
		} else {
			cur = cur.Child(seg.Name)
		}
		if cur == nil {
			return nil, nil, nil, mgmterror.NewUnknownElementError(nil, seg.Name)
		}
		if i == len(segs)-1 {
			return root, parent, cur, nil
		}
		if len(seg.Keys) > 0 && len(seg.Keys) != len(cur.KeyNames) {
			return nil, nil, nil, mgmterror.NewInvalidValueError()
		}
		node := data.New(cur)
		for ki, kn := range cur.KeyNames {
			if keySn := cur.Child(kn); keySn != nil {
				node.AppendChild(data.NewLeaf(keySn, seg.Keys[ki]))
			}
		}
		parent.AppendChild(node)
		parent = node
	}
	return root, parent, target, mgmterror.NewUnknownElementError(nil, "")
}

func (h *Handler) writeNode(w http.ResponseWriter, r *http.Request, n *data.Node) {
	if wantsJSON(r) {
		b, err := encoding.ToJSON(n, encoding.Options{WidenInt64: h.Opts.WidenInt64})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", mimeJSON)
		w.Write(b)
		return
	}
	b, err := encoding.ToXML(n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimeXML)
	w.Write(b)
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		return ct == mimeJSON
	}
	return strings.Contains(accept, "json")
}

// restconfErrorsXML is the RFC 8040 section 7.1 error body's XML
// rendering: one or more rpc-error-shaped entries wrapped in an "errors"
// container. The JSON rendering instead goes through
// mgmterror.MgmtErrorList.MarshalRESTCONFJSON, which wraps the same
// entries in the module-qualified "ietf-restconf:errors" key section
// 7.1 requires.
type restconfErrorsXML struct {
	XMLName xml.Name               `xml:"errors"`
	Errors  []*mgmterror.MgmtError `xml:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *mgmterror.MgmtError:
		h.writeErrorList(w, r, []*mgmterror.MgmtError{e})
	case *mgmterror.MgmtErrorList:
		h.writeErrorList(w, r, e.Errors)
	default:
		h.writeErrorList(w, r, []*mgmterror.MgmtError{mgmterror.NewOperationFailedApplicationError()})
	}
}

func (h *Handler) writeErrorList(w http.ResponseWriter, r *http.Request, errs []*mgmterror.MgmtError) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", mimeJSON)
		w.WriteHeader(statusFor(errs))
		b, _ := (&mgmterror.MgmtErrorList{Errors: errs}).MarshalRESTCONFJSON()
		w.Write(b)
		return
	}
	w.Header().Set("Content-Type", mimeXML)
	w.WriteHeader(statusFor(errs))
	b, _ := xml.Marshal(restconfErrorsXML{Errors: errs})
	w.Write(b)
}

func statusFor(errs []*mgmterror.MgmtError) int {
	if len(errs) == 0 {
		return http.StatusOK
	}
	switch errs[0].Tag {
	case "access-denied":
		return http.StatusForbidden
	case "data-missing", "unknown-element", "unknown-namespace", "invalid-value":
		return http.StatusNotFound
	case "lock-denied", "in-use", "resource-denied", "data-exists":
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
