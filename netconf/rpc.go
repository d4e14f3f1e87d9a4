package netconf

import (
	"encoding/xml"

	"github.com/netconfd/confd/mgmterror"
)

// BaseNamespace is the NETCONF base namespace. Reply.Marshal writes it as
// the default xmlns of every outgoing <rpc-reply>; it is not bound to a
// prefix, and ParseRequest does not check the namespace of an incoming
// <rpc>.
const BaseNamespace = "urn:ietf:params:xml:ns:netconf:base:1.0"

// Operation identifies one of the built-in NETCONF operations spec.md
// section 4.6 requires at minimum, or a plugin-registered extension
// (spec.md section 9's "open registry" for dynamic dispatch).
type Operation string

const (
	OpGet              Operation = "get"
	OpGetConfig        Operation = "get-config"
	OpEditConfig       Operation = "edit-config"
	OpCopyConfig       Operation = "copy-config"
	OpDeleteConfig     Operation = "delete-config"
	OpLock             Operation = "lock"
	OpUnlock           Operation = "unlock"
	OpCloseSession     Operation = "close-session"
	OpKillSession      Operation = "kill-session"
	OpCommit           Operation = "commit"
	OpDiscardChanges   Operation = "discard-changes"
	OpValidate         Operation = "validate"
	OpCreateSubscription Operation = "create-subscription"
)

// Request is a parsed <rpc> envelope: the session-supplied username and
// message-id plus the single child element naming the operation.
type Request struct {
	MessageID string
	Username  string
	Namespace string // the operation element's owning module namespace
	Operation Operation
	Body      []byte // the raw operation element, for handler-specific unmarshaling
}

// rpcEnvelope is the wire shape of <rpc>, used only for encoding/decoding;
// callers interact with Request/Reply instead.
type rpcEnvelope struct {
	XMLName   xml.Name `xml:"rpc"`
	MessageID string   `xml:"message-id,attr"`
	Username  string   `xml:"username,attr,omitempty"`
	Body      []byte   `xml:",innerxml"`
}

// ParseRequest decodes a raw <rpc> message into a Request. The operation
// element's own XML name supplies Namespace/Operation; Body retains the
// operation element's raw bytes for a handler to unmarshal further
// (edit-config's instance fragment, in particular).
func ParseRequest(msg []byte) (*Request, error) {
	if err := checkWellFormed(msg); err != nil {
		return nil, mgmterror.NewMalformedMessageError()
	}
	var env rpcEnvelope
	if err := xml.Unmarshal(msg, &env); err != nil {
		return nil, mgmterror.NewMalformedMessageError()
	}
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(env.Body, &probe); err != nil {
		return nil, mgmterror.NewMalformedMessageError()
	}
	return &Request{
		MessageID: env.MessageID,
		Username:  env.Username,
		Namespace: probe.XMLName.Space,
		Operation: Operation(probe.XMLName.Local),
		Body:      env.Body,
	}, nil
}

// Reply is a <rpc-reply>: either ok, arbitrary result body, or one or
// more rpc-errors (spec.md section 4.6/7).
type Reply struct {
	MessageID string
	OK        bool
	Body      []byte
	Errors    []*mgmterror.MgmtError
}

type rpcReplyEnvelope struct {
	XMLName   xml.Name           `xml:"rpc-reply"`
	Xmlns     string             `xml:"xmlns,attr"`
	MessageID string             `xml:"message-id,attr"`
	OK        *struct{}          `xml:"ok,omitempty"`
	Errors    []*mgmterror.MgmtError `xml:"rpc-error,omitempty"`
	Body      []byte             `xml:",innerxml"`
}

// Marshal encodes r as an <rpc-reply> document.
func (r *Reply) Marshal() ([]byte, error) {
	env := rpcReplyEnvelope{Xmlns: BaseNamespace, MessageID: r.MessageID, Errors: r.Errors, Body: r.Body}
	if r.OK && len(r.Errors) == 0 {
		env.OK = &struct{}{}
	}
	return xml.Marshal(env)
}

// Handler processes one dispatched operation and produces its reply body
// (or an error, turned into rpc-error(s) by the caller). ctx carries
// whatever per-session state (datastore handles, the requesting
// username) the handler needs; it is passed as interface{} so that
// extension packages can supply their own context type - concrete
// handlers type-assert it to their own context struct (spec.md
// section 9's "closed tagged variant ... handlers consume a typed
// context struct rather than variadic arguments").
type Handler func(ctx interface{}, req *Request) (body []byte, err error)

// Dispatcher maps (namespace, operation) to either a local Handler or a
// forwarding target (spec.md section 4.6): the backend socket protocol
// itself is a host concern, represented here only as an opaque Forward
// handler with the same signature.
type Dispatcher struct {
	handlers map[string]Handler
	fallback Handler // used when no (namespace, op) entry matches; e.g. forward-to-backend
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}}
}

func dispatchKey(namespace string, op Operation) string { return namespace + "\x00" + string(op) }

// Register binds a handler for (namespace, op). An empty namespace
// matches the NETCONF base operations (get, edit-config, commit, ...),
// which are unqualified in the wire form.
func (d *Dispatcher) Register(namespace string, op Operation, h Handler) {
	d.handlers[dispatchKey(namespace, op)] = h
}

// SetFallback installs the handler used when no explicit registration
// matches (e.g. a forward-to-backend handler). Without one, an unmatched
// operation gets operation-not-supported; cmd/confd installs none.
func (d *Dispatcher) SetFallback(h Handler) { d.fallback = h }

// Dispatch routes req to its handler and wraps the result as a Reply.
func (d *Dispatcher) Dispatch(ctx interface{}, req *Request) *Reply {
	h, ok := d.handlers[dispatchKey(req.Namespace, req.Operation)]
	if !ok {
		h = d.fallback
	}
	if h == nil {
		return &Reply{MessageID: req.MessageID, Errors: []*mgmterror.MgmtError{mgmterror.NewOperationNotSupportedError()}}
	}
	body, err := h(ctx, req)
	if err != nil {
		return errorReply(req.MessageID, err)
	}
	return &Reply{MessageID: req.MessageID, OK: len(body) == 0, Body: body}
}

func errorReply(messageID string, err error) *Reply {
	if me, ok := err.(*mgmterror.MgmtError); ok {
		return &Reply{MessageID: messageID, Errors: []*mgmterror.MgmtError{me}}
	}
	if list, ok := err.(*mgmterror.MgmtErrorList); ok {
		return &Reply{MessageID: messageID, Errors: list.Errors}
	}
	return &Reply{MessageID: messageID, Errors: []*mgmterror.MgmtError{
		withMessage(mgmterror.NewOperationFailedApplicationError(), err.Error()),
	}}
}

func withMessage(e *mgmterror.MgmtError, msg string) *mgmterror.MgmtError {
	e.Message = msg
	return e
}
