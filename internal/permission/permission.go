package permission

import (
	"sort"
	"strings"
)

type Scope string

const (
	ScopeNone Scope = ""
	ScopeOwn  Scope = "own"
	ScopeAll  Scope = "all"
)

const (
	SubmissionsReadOwn   = "submissions:read:own"
	SubmissionsReadAll   = "submissions:read:all"
	SubmissionsCreate    = "submissions:create"
	SubmissionsUpdateOwn = "submissions:update:own"
	SubmissionsUpdateAll = "submissions:update:all"
	SubmissionsReview    = "submissions:review"
	SubmissionsApprove   = "submissions:approve"
	SubmissionsReject    = "submissions:reject"
	SubmissionsArchive   = "submissions:archive"
	UsersManage          = "users:manage"
	RolesManage          = "roles:manage"
	AuditRead            = "audit:read"
	InitiativesCreate    = "initiatives:create"
)

// Catalog lists every permission key the portal knows about, with a description for seeding.
var Catalog = []struct {
	Key         string
	Description string
}{
	{SubmissionsReadOwn, "Read own submissions"},
	{SubmissionsReadAll, "Read all submissions"},
	{SubmissionsCreate, "Create submissions"},
	{SubmissionsUpdateOwn, "Update own submissions"},
	{SubmissionsUpdateAll, "Update all submissions"},
	{SubmissionsReview, "Review submissions"},
	{SubmissionsApprove, "Approve submissions"},
	{SubmissionsReject, "Reject submissions"},
	{SubmissionsArchive, "Archive submissions"},
	{UsersManage, "Manage users"},
	{RolesManage, "Manage roles"},
	{AuditRead, "Read audit logs"},
	{InitiativesCreate, "Create initiatives"},
}

// Key is a parsed "resource:action[:scope]" permission key.
type Key struct {
	Resource string
	Action   string
	Scope    Scope
}

func ParseKey(key string) Key {
	parts := strings.Split(key, ":")
	k := Key{Resource: parts[0]}
	if len(parts) > 1 {
		k.Action = parts[1]
	}
	if len(parts) > 2 {
		k.Scope = Scope(parts[2])
	}
	return k
}

func (k Key) String() string {
	s := k.Resource + ":" + k.Action
	if k.Scope != ScopeNone {
		s += ":" + string(k.Scope)
	}
	return s
}

// WithScope returns the same resource/action under another scope.
func (k Key) WithScope(scope Scope) Key {
	k.Scope = scope
	return k
}

// Set is a deduplicated collection of permission keys.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys sorted.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Evaluate applies the scoped permission rule to an already resolved set:
//   - unscoped and ":all" keys need an exact match;
//   - an ":own" key is satisfied by the ":all" variant for any owner;
//   - otherwise a supplied owner must be the principal and the ":own" key must be held.
func Evaluate(set Set, principalID, key string, ownerID *string) bool {
	k := ParseKey(key)
	if k.Scope != ScopeOwn {
		return set.Has(key)
	}
	if set.Has(k.WithScope(ScopeAll).String()) {
		return true
	}
	if ownerID != nil && *ownerID != principalID {
		return false
	}
	return set.Has(key)
}
