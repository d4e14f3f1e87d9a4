// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package main

import (
	"encoding/xml"
	"fmt"
	"io/ioutil"
)

// Options is the startup options document spec.md section 6 describes: an
// XML file naming YANG search paths, socket paths, enabled features, the
// mount-domain sharing flag, and buffer thresholds. Command-line flags
// parsed after loading the document override individual fields.
type Options struct {
	XMLName xml.Name `xml:"confd-options"`

	YangDir       string   `xml:"yang-dir"`
	Features      []string `xml:"features>feature"`
	NetconfSocket string   `xml:"netconf-socket"`
	NetconfAddr   string   `xml:"netconf-addr"`
	RestconfAddr  string   `xml:"restconf-addr"`
	PidFile       string   `xml:"pid-file"`
	StartupFile   string   `xml:"startup-file"`
	ShareDomains  bool     `xml:"share-mount-domains"`
	LoadKeysList  string   `xml:"loadkeys-list-path"`
	LogLevel      string   `xml:"log-level"`
	ChunkBufBytes int      `xml:"chunk-buffer-bytes"`
}

// defaultOptions mirrors cmd/configd's flag.String defaults (the teacher's
// basepath-rooted /run/configd paths), adapted to this daemon's name.
func defaultOptions() Options {
	const basepath = "/run/confd"
	return Options{
		YangDir:       "/usr/share/confd/yang",
		NetconfSocket: basepath + "/netconf.sock",
		RestconfAddr:  "127.0.0.1:8443",
		PidFile:       basepath + "/confd.pid",
		StartupFile:   basepath + "/startup.xml",
		LogLevel:      "error",
		ChunkBufBytes: 1 << 20,
	}
}

// loadOptionsFile reads and parses an XML options document, starting from
// defaultOptions so a document overriding only a few fields still yields
// complete Options.
func loadOptionsFile(path string) (Options, error) {
	opts := defaultOptions()
	if path == "" {
		return opts, nil
	}
	body, err := ioutil.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("confd: reading options file %s: %w", path, err)
	}
	if err := xml.Unmarshal(body, &opts); err != nil {
		return opts, fmt.Errorf("confd: parsing options file %s: %w", path, err)
	}
	return opts, nil
}

// Dump renders opts as the XML document -C prints (spec.md section 6's
// "the -C verb dumps the resolved option set").
func (o Options) Dump() ([]byte, error) {
	return xml.MarshalIndent(o, "", "  ")
}
