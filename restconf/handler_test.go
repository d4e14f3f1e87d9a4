// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package restconf_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/netconfd/confd/datastore"
	"github.com/netconfd/confd/restconf"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

const testModule = `
module example {
  namespace "urn:example";
  prefix ex;

  container top {
    leaf x { type string; }
  }

  container ifs {
    list if {
      key "name";
      leaf name { type string; }
      leaf mtu { type uint32; }
    }
  }

  leaf-list tags { type string; }

  leaf ref {
    type leafref {
      path "/ex:tags";
      require-instance true;
    }
  }

  rpc reverse {
    input {
      leaf s { type string; }
    }
    output {
      leaf s { type string; }
    }
  }

  rpc ping {
  }
}
`

func newTestHandler(t *testing.T) (*restconf.Handler, *datastore.Store, *schema.Domain) {
	t.Helper()
	d := schema.NewDomain()
	if err := d.AddModuleSource("example.yang", []byte(testModule)); err != nil {
		t.Fatalf("AddModuleSource: %v", err)
	}
	if err := schema.Compile(d, schema.Options{}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	store := datastore.New(d, nil, false)
	h := &restconf.Handler{
		Domain: d,
		Store:  store,
		Binder: &data.Binder{Domain: d},
		RPCs:   map[string]restconf.RPCHandler{},
	}
	return h, store, d
}

func doRequest(h *restconf.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/yang-data+json")
	}
	r.Header.Set("Accept", "application/yang-data+json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

type errorBody struct {
	Errors struct {
		Error []struct {
			Tag  string `json:"error-tag"`
			Path string `json:"error-path"`
		} `json:"error"`
	} `json:"ietf-restconf:errors"`
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v (body %s)", err, w.Body.String())
	}
	return body
}

// Create-then-read: spec section 8 scenario 1.
func TestCreateThenRead(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPost, "/restconf/data/example:top", `{"example:top":{"x":"a"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodGet, "/restconf/data/example:top/x", "")
	if w.Code != http.StatusOK {
		t.Fatalf("read: got status %d, body %s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"example:x":"a"}` {
		t.Fatalf("read: got body %q", got)
	}
}

// Replace-with-list-keys: spec section 8 scenario 2. The same PUT applied
// twice must be idempotent: first 201, second 204, one stored entry.
func TestReplaceWithListKeys(t *testing.T) {
	h, store, _ := newTestHandler(t)

	body := `{"example:if":[{"name":"eth0","mtu":1500}]}`
	w := doRequest(h, http.MethodPut, "/restconf/data/example:ifs/if=eth0", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("first put: got status %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodPut, "/restconf/data/example:ifs/if=eth0", body)
	if w.Code != http.StatusNoContent {
		t.Fatalf("second put: got status %d, body %s", w.Code, w.Body.String())
	}

	running := store.Get(datastore.Running)
	entries := running.Child("ifs").ChildrenNamed("if")
	if len(entries) != 1 {
		t.Fatalf("expected exactly one if entry, got %d", len(entries))
	}
	if mtu := entries[0].Child("mtu"); mtu == nil || mtu.Value != "1500" {
		t.Fatalf("expected mtu 1500, got %+v", mtu)
	}
}

// Create conflict: spec section 8 scenario 3. Repeating scenario 1's POST
// must fail with 409 data-exists instead of the 201 a fresh create gets.
func TestCreateConflict(t *testing.T) {
	h, _, _ := newTestHandler(t)

	if w := doRequest(h, http.MethodPost, "/restconf/data/example:top", `{"example:top":{"x":"a"}}`); w.Code != http.StatusCreated {
		t.Fatalf("first create: got status %d, body %s", w.Code, w.Body.String())
	}

	w := doRequest(h, http.MethodPost, "/restconf/data/example:top", `{"example:top":{"x":"a"}}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("repeated create: got status %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/yang-data+json" {
		t.Fatalf("expected json error content-type, got %q", ct)
	}

	body := decodeErrorBody(t, w)
	if len(body.Errors.Error) != 1 || body.Errors.Error[0].Tag != "data-exists" {
		t.Fatalf("expected one data-exists error, got %+v", body)
	}
}

// Leafref failure: spec section 8 scenario 4. Setting /ref to a value
// absent from the leaf-list it refers to must fail commit with
// data-missing at a path naming ref, not succeed or fail some other way.
func TestLeafrefFailureOnCommit(t *testing.T) {
	h, _, _ := newTestHandler(t)

	if w := doRequest(h, http.MethodPatch, "/restconf/data/example:tags", `{"example:tags":["a","b"]}`); w.Code != http.StatusNoContent {
		t.Fatalf("seeding tags: got status %d, body %s", w.Code, w.Body.String())
	}

	w := doRequest(h, http.MethodPatch, "/restconf/data/example:ref", `{"example:ref":"z"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing leafref target, got %d, body %s", w.Code, w.Body.String())
	}

	body := decodeErrorBody(t, w)
	if len(body.Errors.Error) != 1 || body.Errors.Error[0].Tag != "data-missing" {
		t.Fatalf("expected one data-missing error, got %+v", body)
	}
	if !strings.Contains(body.Errors.Error[0].Path, "ref") {
		t.Fatalf("expected error path to name ref, got %q", body.Errors.Error[0].Path)
	}
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// RPC roundtrip: spec section 8 scenario 6, both the with-output and
// no-output shapes.
func TestRPCRoundtrip(t *testing.T) {
	h, _, d := newTestHandler(t)
	reverseSn, err := d.FindSchemaNode("/ex:reverse")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	outputSn := reverseSn.Child("output")
	h.RPCs["example:reverse"] = func(input *data.Node) (*data.Node, error) {
		s := ""
		if in := input.Child("s"); in != nil {
			s = in.Value
		}
		out := data.New(outputSn)
		out.AppendChild(data.NewLeaf(outputSn.Child("s"), reverseString(s)))
		return out, nil
	}
	h.RPCs["example:ping"] = func(input *data.Node) (*data.Node, error) {
		return nil, nil
	}

	w := doRequest(h, http.MethodPost, "/restconf/operations/example:reverse", `{"example:input":{"s":"abc"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reverse: got status %d, body %s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"example:output":{"s":"cba"}}` {
		t.Fatalf("reverse: got body %q", got)
	}

	w = doRequest(h, http.MethodPost, "/restconf/operations/example:ping", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("ping: got status %d, body %s", w.Code, w.Body.String())
	}
}
