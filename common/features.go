// Copyright (c) 2019, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package common

// Daemon feature well known names (spec.md section 3/4.8's optional
// per-feature capabilities, distinct from a YANG module's own
// "feature"/"if-feature" statements).
const (
	// StartupFeature gates whether the startup datastore (spec.md
	// section 3: "persistent across restarts, optional per feature
	// :startup") is created alongside candidate/running.
	StartupFeature = ":startup"
	// MountFeature gates RFC 8528 schema-mount resolution (spec.md
	// component H).
	MountFeature = "yang-schema-mount"
	// LoadKeysFeature names the load-key NETCONF extension (spec.md
	// section 4.6's open registry; see package loadkeys). It is used as a
	// log label only; the daemon enables the extension from its
	// loadkeys-list-path option, not from this feature.
	LoadKeysFeature = "load-keys"
)
