package mgmterror

import "encoding/json"

// restconfError is the RFC 8040 section 7.1 "errors/error" JSON shape.
type restconfError struct {
	Type    ErrorType `json:"error-type"`
	Tag     ErrorTag  `json:"error-tag"`
	AppTag  string    `json:"error-app-tag,omitempty"`
	Path    string    `json:"error-path,omitempty"`
	Message string    `json:"error-message,omitempty"`
}

type restconfErrors struct {
	Errors struct {
		Error []restconfError `json:"error"`
	} `json:"ietf-restconf:errors"`
}

// MarshalRESTCONFJSON renders the error list as a RFC 8040 section 7.1
// error body.
func (l *MgmtErrorList) MarshalRESTCONFJSON() ([]byte, error) {
	var body restconfErrors
	for _, e := range l.Errors {
		body.Errors.Error = append(body.Errors.Error, restconfError{
			Type:    e.Type,
			Tag:     e.Tag,
			AppTag:  e.AppTag,
			Path:    e.Path,
			Message: e.Message,
		})
	}
	return json.Marshal(body)
}

// MarshalRESTCONFJSON renders a single error as a one-element RFC 8040
// error body.
func (e *MgmtError) MarshalRESTCONFJSON() ([]byte, error) {
	l := &MgmtErrorList{Errors: []*MgmtError{e}}
	return l.MarshalRESTCONFJSON()
}
