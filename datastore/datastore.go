// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package datastore implements the candidate/running/startup datastore
// pipeline (spec.md component E): edit-config merge semantics, two-phase
// commit with rollback, locking, and the candidate session state machine
// (clean -> dirty -> validated -> clean/dirty).
package datastore

import (
	"sync"

	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/union"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// Name identifies one of the three standard datastores (spec.md section 3).
type Name string

const (
	Candidate Name = "candidate"
	Running   Name = "running"
	Startup   Name = "startup"
)

// State is the candidate session state machine (spec.md section 4.5).
type State int

const (
	Clean State = iota
	Dirty
	Validated
)

// Hook runs before or after commit promotes candidate to running. A
// pre-commit hook failure aborts the commit before running is touched; a
// post-commit hook failure restores running from its pre-commit snapshot
// and fails the commit with operation-failed (spec.md section 7).
type Hook func(running *data.Node) error

// Store holds the three datastores for one schema domain and the single
// candidate session's state. Devices with per-session candidates would
// hold one Store per session; this type itself is concurrency-safe for
// the single shared-candidate deployment spec.md section 3 allows.
type Store struct {
	mu sync.Mutex

	domain  *schema.Domain
	mounts  union.MountResolver
	running *data.Node
	startup *data.Node // nil if :startup is unavailable
	candidate *data.Node
	state   State

	lockedBy string // session id holding the running lock, "" if unlocked

	PreCommit  []Hook
	PostCommit []Hook
}

// New creates a Store rooted at an empty <config/> instance for domain.
// mounts may be nil if schema-mount is unused.
func New(domain *schema.Domain, mounts union.MountResolver, startupAvailable bool) *Store {
	root := newConfigRoot(domain)
	s := &Store{domain: domain, mounts: mounts, running: root, candidate: root.Clone()}
	if startupAvailable {
		s.startup = root.Clone()
	}
	return s
}

// newConfigRoot creates the synthetic <config> root instance every
// datastore is rooted at (spec.md section 3); it carries no schema
// pointer of its own, only schema-bound module-owned children.
func newConfigRoot(domain *schema.Domain) *data.Node {
	return &data.Node{Name: "config"}
}

// Get returns the named datastore's root instance tree. Callers must treat
// it as read-only; mutate via Edit/Commit instead.
func (s *Store) Get(name Name) *data.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case Candidate:
		return s.candidate
	case Running:
		return s.running
	case Startup:
		return s.startup
	}
	return nil
}

// Lock acquires the named datastore's lock for sessionID (spec.md
// section 5). Only "running" is modeled as lockable: candidate edits
// outside a lock are always permitted per spec, a commit simply fails if
// running is locked by someone else.
func (s *Store) Lock(name Name, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != Running {
		return nil
	}
	if s.lockedBy != "" && s.lockedBy != sessionID {
		return mgmterror.NewLockDeniedError(s.lockedBy)
	}
	s.lockedBy = sessionID
	return nil
}

// Unlock releases sessionID's lock on the named datastore, if held.
func (s *Store) Unlock(name Name, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == Running && s.lockedBy == sessionID {
		s.lockedBy = ""
	}
	return nil
}

// KillSession forcibly releases any lock sessionID holds (spec.md
// section 5, kill-session).
func (s *Store) KillSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedBy == sessionID {
		s.lockedBy = ""
	}
}

// DiscardChanges replaces candidate with a fresh copy of running (spec.md
// section 4.5) and resets the session state to clean.
func (s *Store) DiscardChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = s.running.Clone()
	s.state = Clean
}

// Replace overwrites the named datastore's content wholesale with content
// (spec.md section 4.6's copy-config: unlike Edit's per-node merge, the
// target datastore's entire prior content is discarded). content must
// already be schema-bound against s.domain; running cannot be replaced
// directly - copy-config's <target>running</target> case goes through
// Commit via the candidate instead, matching the merge pipeline every
// other path to running uses.
func (s *Store) Replace(name Name, content *data.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case Candidate:
		s.candidate = content
		s.state = Dirty
	case Startup:
		if s.startup == nil {
			return mgmterror.NewOperationNotSupportedError()
		}
		s.startup = content
	default:
		return mgmterror.NewOperationNotSupportedError()
	}
	return nil
}

// Clear empties the named datastore (spec.md section 4.6's
// delete-config), subject to the same running restriction as Replace.
func (s *Store) Clear(name Name) error {
	return s.Replace(name, &data.Node{Name: "config"})
}

// Edit applies an edit-config fragment to the candidate datastore
// (spec.md section 4.5), honoring the fragment's own per-node "operation"
// attributes and defaultOp as the implicit operation for descendants
// lacking one. It marks the session dirty on success.
func (s *Store) Edit(fragment *data.Node, defaultOp data.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := applyEdit(s.candidate, fragment, defaultOp); err != nil {
		return err
	}
	s.state = Dirty
	return nil
}

// Validate runs the component-D validator over a working copy of
// candidate (so a failed validation never perturbs candidate itself) and
// reports every error found. On success the session moves to Validated.
func (s *Store) Validate() []*mgmterror.MgmtError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Store) validateLocked() []*mgmterror.MgmtError {
	working := s.candidate.Clone()
	union.AddDefaults(working)
	errs := union.Validate(working, union.Options{Domain: s.domain, Mounts: s.mounts})
	if len(errs) == 0 {
		s.state = Validated
	}
	return errs
}

// Commit validates candidate, snapshots running for rollback, atomically
// promotes candidate to running, runs pre/post-commit hooks, and on any
// hook failure restores the snapshot (spec.md section 4.5's two-phase
// commit with rollback-on-failure). sessionID must hold running's lock if
// it is held by anyone.
func (s *Store) Commit(sessionID string) ([]*mgmterror.MgmtError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockedBy != "" && s.lockedBy != sessionID {
		return nil, mgmterror.NewLockDeniedError(s.lockedBy)
	}
	if errs := s.validateLocked(); len(errs) != 0 {
		return errs, nil
	}

	snapshot := s.running
	candidate := s.candidate

	for _, h := range s.PreCommit {
		if err := h(candidate); err != nil {
			return nil, mgmterror.NewOperationFailedApplicationError()
		}
	}

	s.running = candidate

	for _, h := range s.PostCommit {
		if err := h(s.running); err != nil {
			s.running = snapshot // rollback (spec.md section 7: rollback-failed if this itself fails)
			return nil, mgmterror.NewOperationFailedApplicationError()
		}
	}

	if s.startup != nil {
		s.startup = s.running.Clone()
	}
	s.candidate = s.running.Clone()
	s.state = Clean
	return nil, nil
}
