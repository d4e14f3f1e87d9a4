// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package loadkeys implements the "load-key" NETCONF extension operation
// (spec.md section 4.6's plugin-registered extension, registered by the
// daemon when its loadkeys-list-path option is set): parsing an OpenSSH authorized_keys file and
// turning each entry into edit-config content under a schema-supplied
// "public keys for user" list, the way an operator loading a new user's
// keys from a bastion host would.
package loadkeys

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// PublicKey is one parsed authorized_keys line.
type PublicKey struct {
	key     ssh.PublicKey
	Comment string
	Options []string
}

// Type returns the key's algorithm name ("ssh-rsa", "ssh-ed25519", ...).
func (k *PublicKey) Type() string { return k.key.Type() }

// Base64Key returns the base64-encoded key material alone, stripped of
// the leading type token ssh.MarshalAuthorizedKey includes.
func (k *PublicKey) Base64Key() string {
	line := ssh.MarshalAuthorizedKey(k.key)
	line = bytes.TrimPrefix(line, []byte(k.Type()+" "))
	return strings.TrimRight(string(line), "\n")
}

// ParseAuthorizedKeys reads r as an OpenSSH authorized_keys file (sshd(8)
// AUTHORIZED_KEYS FILE FORMAT), skipping blank and '#'-commented lines.
func ParseAuthorizedKeys(r io.Reader) ([]*PublicKey, error) {
	var keys []*PublicKey
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		lineNum++
		if len(line) == 0 || bytes.HasPrefix(line, []byte("#")) {
			continue
		}
		pk, comment, options, _, err := ssh.ParseAuthorizedKey(line)
		if err != nil {
			return nil, fmt.Errorf("loadkeys: line %d: %w", lineNum, err)
		}
		keys = append(keys, &PublicKey{key: pk, Comment: comment, Options: options})
	}
	if err := scanner.Err(); err != nil {
		return keys, err
	}
	return keys, nil
}

// Fragment builds the edit-config instance content for one key under
// entrySn, a schema list node shaped like the public-keys list spec.md's
// "system login user" feature expects: a list keyed by a name leaf (the
// key's comment), with "type", "key" and optionally "options" leaf
// children. Returns an error if entrySn's children don't match that
// shape, so a caller can fail closed rather than silently drop fields.
func Fragment(entrySn *schema.Node) func(k *PublicKey) (*data.Node, error) {
	return func(k *PublicKey) (*data.Node, error) {
		if len(entrySn.KeyNames) != 1 {
			return nil, fmt.Errorf("loadkeys: %s must be keyed by a single name leaf", entrySn.CanonicalPath())
		}
		entry := data.New(entrySn)
		nameSn := entrySn.Child(entrySn.KeyNames[0])
		if nameSn == nil {
			return nil, fmt.Errorf("loadkeys: %s: missing key leaf %q", entrySn.CanonicalPath(), entrySn.KeyNames[0])
		}
		entry.AppendChild(data.NewLeaf(nameSn, k.Comment))

		typeSn := entrySn.Child("type")
		keySn := entrySn.Child("key")
		if typeSn == nil || keySn == nil {
			return nil, fmt.Errorf("loadkeys: %s must have \"type\" and \"key\" leaves", entrySn.CanonicalPath())
		}
		entry.AppendChild(data.NewLeaf(typeSn, k.Type()))
		entry.AppendChild(data.NewLeaf(keySn, k.Base64Key()))

		if len(k.Options) > 0 {
			if optSn := entrySn.Child("options"); optSn != nil {
				entry.AppendChild(data.NewLeaf(optSn, strings.Join(k.Options, ",")))
			}
		}
		return entry, nil
	}
}
