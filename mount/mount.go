// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package mount implements RFC 8528 schema-mount resolution (spec.md
// component H): mount-point extension detection, on-demand yang-library
// solicitation, mounted-domain creation/sharing, and the binding of a
// mount-point instance's canonical XPath to its mounted schema.Domain.
package mount

import (
	"log"
	"sync"

	"github.com/netconfd/confd/common"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// YangLibrary is the RFC 8525 module-set advertisement a mount-point
// instance solicits on first touch: the module-set name plus the raw YANG
// module sources to compile into a domain. Two advertisements are
// considered equal (and so share a domain, spec.md section 9(c)) when
// ModuleSetName and every module source byte-for-byte match.
type YangLibrary struct {
	ModuleSetName string
	ModuleSources map[string][]byte // filename -> YANG text
}

func (a *YangLibrary) equal(b *YangLibrary) bool {
	if a.ModuleSetName != b.ModuleSetName || len(a.ModuleSources) != len(b.ModuleSources) {
		return false
	}
	for k, v := range a.ModuleSources {
		bv, ok := b.ModuleSources[k]
		if !ok || string(bv) != string(v) {
			return false
		}
	}
	return true
}

// LibraryCallback is solicited once per distinct mount-point instance (by
// its canonical XPath) the first time the instance is touched. The host
// process supplies this (e.g. by querying a running VM's yang-library
// over the backend socket); package mount has no opinion on the
// transport.
type LibraryCallback func(mountPoint *data.Node) (*YangLibrary, error)

// Options configures a Resolver.
type Options struct {
	// ShareDomains enables domain sharing keyed by yang-library
	// tree-equality (spec.md section 9(c)). Disable for peers whose
	// yang-library output is not deterministic across otherwise-identical
	// mount points.
	ShareDomains bool
	Solicit      LibraryCallback
}

// Resolver is the host-side mount-point registry (spec.md section 3's
// "mapping (mount-point schema node, canonical XPath to the instance) ->
// mounted schema", kept outside the instance tree). It satisfies
// union.MountResolver.
type Resolver struct {
	opts Options

	mu       sync.Mutex
	bindings map[string]*schema.Domain // canonical instance XPath -> domain
	shared   []*sharedDomain
}

type sharedDomain struct {
	lib    *YangLibrary
	domain *schema.Domain
}

func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts, bindings: map[string]*schema.Domain{}}
}

// DomainFor returns the schema.Domain governing mountPoint's instance
// subtree, soliciting and compiling its yang-library on first touch and
// caching the binding by canonical XPath thereafter (spec.md section 4.8).
func (r *Resolver) DomainFor(mountPoint *data.Node) (*schema.Domain, error) {
	if mountPoint.Schema == nil || !mountPoint.Schema.IsMountPoint() {
		return nil, nil
	}
	key := mountPoint.Path()

	r.mu.Lock()
	if d, ok := r.bindings[key]; ok {
		r.mu.Unlock()
		return d, nil
	}
	r.mu.Unlock()

	if r.opts.Solicit == nil {
		return nil, nil
	}
	lib, err := r.opts.Solicit(mountPoint)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.bindings[key]; ok {
		return d, nil
	}
	if r.opts.ShareDomains {
		for _, sd := range r.shared {
			if sd.lib.equal(lib) {
				if common.LoggingIsEnabledAtLevel(common.LevelDebug, common.TypeMount) {
					log.Printf("mount: %s shares domain %s", key, sd.lib.ModuleSetName)
				}
				r.bindings[key] = sd.domain
				return sd.domain, nil
			}
		}
	}
	d, err := compileLibrary(lib)
	if err != nil {
		return nil, err
	}
	if common.LoggingIsEnabledAtLevel(common.LevelDebug, common.TypeMount) {
		log.Printf("mount: %s attached new domain %s", key, lib.ModuleSetName)
	}
	r.bindings[key] = d
	if r.opts.ShareDomains {
		r.shared = append(r.shared, &sharedDomain{lib: lib, domain: d})
	}
	return d, nil
}

func compileLibrary(lib *YangLibrary) (*schema.Domain, error) {
	d := schema.NewDomain()
	for name, src := range lib.ModuleSources {
		if err := d.AddModuleSource(name, src); err != nil {
			return nil, err
		}
	}
	if err := schema.Compile(d, schema.Options{}); err != nil {
		return nil, err
	}
	return d, nil
}

// Reset drops every cached binding and shared domain (used by tests and by
// a full schema reload).
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = map[string]*schema.Domain{}
	r.shared = nil
}
