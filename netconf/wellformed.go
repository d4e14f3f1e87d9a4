package netconf

import (
	"bytes"
	"io"

	xml "github.com/andaru/flexml"
)

// checkWellFormed tokenizes msg with flexml's streaming decoder before the
// full envelope unmarshal, the way andaru/opr8's datastore.Decoder walks
// inbound YANG data one token at a time rather than buffering a DOM: a
// malformed chunked payload (mismatched tags, truncated entity, bad UTF-8)
// fails on the token that breaks rather than wherever encoding/xml's
// struct-directed Unmarshal happens to notice it, which matters once
// chunk-buffer-bytes caps how much of a hostile message a session will
// even hold in memory.
func checkWellFormed(msg []byte) error {
	d := xml.NewDecoder(bytes.NewReader(msg))
	depth := 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if depth != 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}
