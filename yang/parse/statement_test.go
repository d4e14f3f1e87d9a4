package parse_test

import (
	"testing"

	"github.com/netconfd/confd/yang/parse"
)

func TestParseSimpleModule(t *testing.T) {
	text := []byte(`
module example {
	namespace "urn:example";
	prefix ex;

	container top {
		leaf x {
			type string;
		}
	}
}
`)
	stmt, err := parse.Parse("example.yang", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Keyword != "module" || stmt.Argument != "example" {
		t.Fatalf("got %s %q, want module \"example\"", stmt.Keyword, stmt.Argument)
	}
	ns := stmt.Find("namespace")
	if ns == nil || ns.Argument != "urn:example" {
		t.Fatalf("namespace statement missing or wrong: %+v", ns)
	}
	top := stmt.Find("container")
	if top == nil || top.Argument != "top" {
		t.Fatalf("container top missing")
	}
	leaf := top.Find("leaf")
	if leaf == nil || leaf.Argument != "x" {
		t.Fatalf("leaf x missing")
	}
}

func TestParseStringConcatenation(t *testing.T) {
	text := []byte(`
module m { namespace "urn:m"; prefix m;
	leaf d {
		type string;
		description "part one " +
			"part two";
	}
}
`)
	stmt, err := parse.Parse("m.yang", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf := stmt.Find("leaf")
	desc := leaf.Find("description")
	want := "part one part two"
	if desc.Argument != want {
		t.Fatalf("got %q, want %q", desc.Argument, want)
	}
}

func TestParseUnterminatedBlockIsError(t *testing.T) {
	text := []byte(`module m { namespace "urn:m"; prefix m;`)
	if _, err := parse.Parse("m.yang", text); err == nil {
		t.Fatalf("expected error for unterminated block")
	}
}
