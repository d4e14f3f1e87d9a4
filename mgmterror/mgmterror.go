// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// Copyright (c) 2014-2017 by Brocade Communications Systems, Inc.
// All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package mgmterror implements the NETCONF rpc-error taxonomy of
// RFC 6241 section 4.3: error-type, error-tag, error-app-tag, error-path,
// error-message and error-info, with XML and RESTCONF (RFC 8040 section
// 7.1) JSON encodings.
package mgmterror

import (
	"encoding/xml"
	"fmt"
)

// ErrorType is the NETCONF error-type: the layer where the error occurred.
type ErrorType string

const (
	TransportError  ErrorType = "transport"
	RPCError        ErrorType = "rpc"
	ProtocolError   ErrorType = "protocol"
	ApplicationErr  ErrorType = "application"
)

// ErrorTag is the NETCONF error-tag.
type ErrorTag string

const (
	TagInUse                ErrorTag = "in-use"
	TagInvalidValue         ErrorTag = "invalid-value"
	TagTooBig               ErrorTag = "too-big"
	TagMissingAttribute     ErrorTag = "missing-attribute"
	TagBadAttribute         ErrorTag = "bad-attribute"
	TagUnknownAttribute     ErrorTag = "unknown-attribute"
	TagMissingElement       ErrorTag = "missing-element"
	TagBadElement           ErrorTag = "bad-element"
	TagUnknownElement       ErrorTag = "unknown-element"
	TagUnknownNamespace     ErrorTag = "unknown-namespace"
	TagAccessDenied         ErrorTag = "access-denied"
	TagLockDenied           ErrorTag = "lock-denied"
	TagResourceDenied       ErrorTag = "resource-denied"
	TagRollbackFailed       ErrorTag = "rollback-failed"
	TagDataExists           ErrorTag = "data-exists"
	TagDataMissing          ErrorTag = "data-missing"
	TagOperationNotSupported ErrorTag = "operation-not-supported"
	TagOperationFailed      ErrorTag = "operation-failed"
	TagMalformedMessage     ErrorTag = "malformed-message"
)

// ErrorInfo carries the optional <error-info> element content as a set of
// namespace-qualified name/value pairs.
type ErrorInfo struct {
	XMLName xml.Name      `xml:"error-info"`
	Items   []ErrorInfoItem `xml:",any"`
}

type ErrorInfoItem struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// MgmtError is a single NETCONF/RESTCONF error. It implements the error
// interface so it can be returned and wrapped like any other Go error.
type MgmtError struct {
	XMLName     xml.Name  `xml:"rpc-error"`
	Type        ErrorType `xml:"error-type"`
	Tag         ErrorTag  `xml:"error-tag"`
	Severity    string    `xml:"error-severity"`
	AppTag      string    `xml:"error-app-tag,omitempty"`
	Path        string    `xml:"error-path,omitempty"`
	Message     string    `xml:"error-message,omitempty"`
	Info        *ErrorInfo `xml:"error-info,omitempty"`
}

func (e *MgmtError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Tag)
}

func newError(t ErrorType, tag ErrorTag) *MgmtError {
	return &MgmtError{
		Type:     t,
		Tag:      tag,
		Severity: "error",
	}
}

// MgmtErrorList aggregates multiple errors, e.g. the result of a full
// validation pass where every failure is reported rather than the first.
type MgmtErrorList struct {
	Errors []*MgmtError
}

func (l *MgmtErrorList) Error() string {
	if len(l.Errors) == 0 {
		return "no errors"
	}
	msg := l.Errors[0].Error()
	if len(l.Errors) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(l.Errors)-1)
	}
	return msg
}

func (l *MgmtErrorList) Append(err *MgmtError) {
	l.Errors = append(l.Errors, err)
}

func (l *MgmtErrorList) Ok() bool { return len(l.Errors) == 0 }

// --- RFC 6241 / common constructors, named after the tag they raise ---

func NewInUseError(path []string) *MgmtError {
	e := newError(ProtocolError, TagInUse)
	e.Message = "resource is in use"
	e.SetPath(path)
	return e
}

func NewInvalidValueError() *MgmtError {
	e := newError(ApplicationErr, TagInvalidValue)
	e.Message = "invalid value"
	return e
}

func NewTooBigError() *MgmtError {
	e := newError(ProtocolError, TagTooBig)
	e.Message = "request too big"
	return e
}

func NewMissingAttributeError(element, attr string) *MgmtError {
	e := newError(ProtocolError, TagMissingAttribute)
	e.Message = fmt.Sprintf("attribute %q missing on element %q", attr, element)
	return e
}

func NewBadAttributeError(attr string) *MgmtError {
	e := newError(ProtocolError, TagBadAttribute)
	e.Message = fmt.Sprintf("bad attribute %q", attr)
	return e
}

func NewUnknownAttributeError(attr string) *MgmtError {
	e := newError(ApplicationErr, TagUnknownAttribute)
	e.Message = fmt.Sprintf("unknown attribute %q", attr)
	return e
}

func NewMissingElementError(path []string, name string) *MgmtError {
	e := newError(ProtocolError, TagMissingElement)
	e.Message = fmt.Sprintf("missing required element %q", name)
	e.SetPath(path)
	return e
}

func NewBadElementError(path []string, name string) *MgmtError {
	e := newError(ApplicationErr, TagBadElement)
	e.Message = fmt.Sprintf("bad element %q", name)
	e.SetPath(path)
	return e
}

func NewUnknownElementError(path []string, name string) *MgmtError {
	e := newError(ApplicationErr, TagUnknownElement)
	e.Message = fmt.Sprintf("unknown element %q", name)
	e.SetPath(path)
	return e
}

func NewUnknownNamespaceError(path []string, ns string) *MgmtError {
	e := newError(ApplicationErr, TagUnknownNamespace)
	e.Message = fmt.Sprintf("unknown namespace %q", ns)
	e.SetPath(path)
	return e
}

func NewAccessDeniedError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagAccessDenied)
	e.Message = "access denied"
	e.SetPath(path)
	return e
}

func NewLockDeniedError(sid string) *MgmtError {
	e := newError(ProtocolError, TagLockDenied)
	e.Message = "lock is held by another session"
	e.Info = &ErrorInfo{Items: []ErrorInfoItem{{
		XMLName: xml.Name{Local: "session-id"},
		Value:   sid,
	}}}
	return e
}

func NewResourceDeniedError() *MgmtError {
	e := newError(ApplicationErr, TagResourceDenied)
	e.Message = "resource denied"
	return e
}

func NewResourceDeniedProtocolError() *MgmtError {
	e := newError(ProtocolError, TagResourceDenied)
	e.Message = "resource denied"
	return e
}

func NewRollbackFailedError() *MgmtError {
	e := newError(ApplicationErr, TagRollbackFailed)
	e.Message = "rollback failed"
	return e
}

func NewDataExistsError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagDataExists)
	e.Message = "data already exists"
	e.SetPath(path)
	return e
}

func NewDataMissingError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagDataMissing)
	e.Message = "data does not exist"
	e.SetPath(path)
	return e
}

func NewOperationNotSupportedError() *MgmtError {
	e := newError(ApplicationErr, TagOperationNotSupported)
	e.Message = "operation not supported"
	return e
}

func NewOperationFailedApplicationError() *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	e.Message = "operation failed"
	return e
}

func NewOperationFailedProtocolError() *MgmtError {
	e := newError(ProtocolError, TagOperationFailed)
	e.Message = "operation failed"
	return e
}

func NewMalformedMessageError() *MgmtError {
	e := newError(RPCError, TagMalformedMessage)
	e.Message = "malformed message"
	return e
}

// NewExecError wraps the failure of an external exec'd hook or script as an
// application operation-failed error carrying the script's output.
func NewExecError(path []string, out string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	e.Message = out
	e.SetPath(path)
	return e
}

// --- Validator-specific constructors (component D, spec sec 4.4) ---

func NewMustViolationError(path []string, appTag, message string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	if message == "" {
		message = "must condition is not satisfied"
	}
	e.Message = message
	e.AppTag = appTag
	e.SetPath(path)
	return e
}

func NewWhenViolationError(path []string, message string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	if message == "" {
		message = "when condition is not satisfied"
	}
	e.Message = message
	e.SetPath(path)
	return e
}

func NewUniqueViolationError(path []string, leaves []string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	e.Message = fmt.Sprintf("unique constraint violated for %v", leaves)
	e.SetPath(path)
	return e
}

func NewMandatoryNodeNotSetError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagMissingElement)
	e.Message = "mandatory node is not set"
	e.SetPath(path)
	return e
}

func NewLeafrefTargetMissingError(path, value string) *MgmtError {
	e := newError(ApplicationErr, TagDataMissing)
	e.Message = fmt.Sprintf("leafref target for value %q does not exist", value)
	e.SetPath([]string{path})
	return e
}

func NewInvalidRangeError(path []string, value, typeName string) *MgmtError {
	e := newError(ApplicationErr, TagInvalidValue)
	e.Message = fmt.Sprintf("value %q is out of range for type %s", value, typeName)
	e.SetPath(path)
	return e
}

func NewInvalidPatternError(path []string, value string) *MgmtError {
	e := newError(ApplicationErr, TagInvalidValue)
	e.Message = fmt.Sprintf("value %q does not match required pattern", value)
	e.SetPath(path)
	return e
}

func NewTooFewElementsError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	e.Message = "too few elements"
	e.SetPath(path)
	return e
}

func NewTooManyElementsError(path []string) *MgmtError {
	e := newError(ApplicationErr, TagOperationFailed)
	e.Message = "too many elements"
	e.SetPath(path)
	return e
}

// SetPath renders path (a slash-decomposed canonical XPath) into the
// error-path field.
func (e *MgmtError) SetPath(path []string) {
	if len(path) == 0 {
		return
	}
	p := ""
	for _, seg := range path {
		p += "/" + seg
	}
	e.Path = p
}
