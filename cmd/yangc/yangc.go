// Copyright (c) 2018-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// yangc parses and fully resolves a directory of YANG modules, the
// standalone diagnostic counterpart to the compile pass cmd/confd runs at
// startup (spec.md section 4.1's seven-pass resolution: imports, augments,
// uses, type/leafref linkage, identity bases, XPath compilation, feature
// pruning).
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"

	"github.com/netconfd/confd/yang/schema"
)

var (
	skipUnknown  bool
	capabilities string
	fullSchema   bool
	lint         bool
)

func usage() {
	_, file := filepath.Split(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage of %s [flags] <yang-dir>:\n\n", file)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
This utility parses every .yang file in <yang-dir>, resolves imports,
augments, uses, typedefs and leafrefs across the whole set, and reports
the first error found. With no errors it prints "<module>@<revision>: ok"
for each module and exits 0.
`)
}

func init() {
	flag.BoolVar(&skipUnknown, "i", false, "Report compile errors as warnings instead of failing")
	flag.StringVar(&capabilities, "capabilities", "",
		"INI file naming enabled module:feature pairs")
	flag.BoolVar(&fullSchema, "full", true, "Accepted for compatibility; has no effect (config false nodes are always compiled)")
	flag.BoolVar(&lint, "lint", false, "also check the directory with goyang's independent parser before compiling")
}

// loadFeatures reads an INI file of "module:feature = true|false" entries
// into the map schema.Options.Features expects, matching the teacher's
// -capabilities file format (getFunctionsFromIniFiles in the prior
// revision of this tool did the equivalent for custom XPath functions).
func loadFeatures(path string) (map[string]bool, error) {
	features := map[string]bool{}
	if path == "" {
		return features, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("yangc: reading %s: %w", path, err)
	}
	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			name := key.Name()
			if section.Name() != "" && section.Name() != ini.DefaultSection {
				name = section.Name() + ":" + name
			}
			enabled, _ := key.Bool()
			features[name] = enabled
		}
	}
	return features, nil
}

func loadModules(dir string) (*schema.Domain, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("yangc: %w", err)
	}
	d := schema.NewDomain()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yang") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		text, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("yangc: reading %s: %w", path, err)
		}
		if err := d.AddModuleSource(path, text); err != nil {
			return nil, fmt.Errorf("yangc: parsing %s: %w", path, err)
		}
	}
	return d, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}

	features, err := loadFeatures(capabilities)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if lint {
		for _, lerr := range schema.LintWithGoyang(args[0]) {
			fmt.Fprintf(os.Stderr, "goyang: %v\n", lerr)
		}
	}

	domain, err := loadModules(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := schema.Compile(domain, schema.Options{Features: features}); err != nil {
		if !skipUnknown {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
	}

	for _, m := range domain.Modules() {
		fmt.Printf("%s@%s: ok\n", m.Name, m.Revision)
	}
}
