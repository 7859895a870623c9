// Package policy implements static permission inference for function
// source. It scans Go source for aws-sdk-go-v2 client calls and derives
// the minimal set of IAM actions the code needs, so no hand-written
// wildcard policy is required.
package policy

import (
	"sort"
)

// Permission is one (service, action) pair a function is inferred to need.
type Permission struct {
	Service string `json:"service"`
	Action  string `json:"action"`
}

// PermissionSet is the derived set of permissions for one function.
// It is regenerated from source on every planning pass and never merged
// with a prior version, so stale permissions drop out on their own.
type PermissionSet struct {
	Permissions []Permission `json:"permissions"`
}

// Diagnostic reports a file the analyzer could not process. It is a
// warning, not an error: analysis degrades to a partial set and
// deployment proceeds.
type Diagnostic struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Empty returns the permission set inferred when no source could be
// analyzed: the base log-writing permissions only. Deployment proceeds
// with this minimal set rather than blocking.
func Empty() *PermissionSet {
	return newPermissionSet(nil)
}

// newPermissionSet builds a sorted, de-duplicated set from raw pairs
// with the base log-writing permissions always included.
func newPermissionSet(perms []Permission) *PermissionSet {
	seen := make(map[Permission]bool, len(perms)+len(basePermissions))
	all := make([]Permission, 0, len(perms)+len(basePermissions))
	for _, p := range basePermissions {
		if !seen[p] {
			seen[p] = true
			all = append(all, p)
		}
	}
	for _, p := range perms {
		if !seen[p] {
			seen[p] = true
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Action < all[j].Action })
	return &PermissionSet{Permissions: all}
}

// Actions returns the sorted action names of the set.
func (ps *PermissionSet) Actions() []string {
	actions := make([]string, len(ps.Permissions))
	for i, p := range ps.Permissions {
		actions[i] = p.Action
	}
	return actions
}

// Document renders the set as an IAM policy document: one Allow
// statement with sorted actions, deterministic by construction.
func (ps *PermissionSet) Document() map[string]any {
	return map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect":   "Allow",
				"Action":   ps.Actions(),
				"Resource": "*",
			},
		},
	}
}
