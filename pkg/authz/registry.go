package authz

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps operations to their authorization requirements. An
// operation is identified by "METHOD /path/template". Requirements may be
// registered at a group level (a path prefix covering every operation
// under it) and overridden per operation; resolution is most-specific-
// wins, field-wise.
//
// Registration happens at wiring time; Resolve is called once per
// request and is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	groups     map[string]Requirement // path prefix -> requirement
	operations map[string]Requirement // "METHOD path" -> requirement
	prefixes   []string               // group prefixes, longest first
}

// NewRegistry creates an empty requirement registry.
func NewRegistry() *Registry {
	return &Registry{
		groups:     make(map[string]Requirement),
		operations: make(map[string]Requirement),
	}
}

// Group registers a requirement covering every operation whose path
// starts with prefix.
func (reg *Registry) Group(prefix string, req Requirement) *Registry {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.groups[prefix]; !exists {
		reg.prefixes = append(reg.prefixes, prefix)
		sort.Slice(reg.prefixes, func(i, j int) bool {
			return len(reg.prefixes[i]) > len(reg.prefixes[j])
		})
	}
	reg.groups[prefix] = req
	return reg
}

// Operation registers a requirement for a single operation, overriding
// any group-level requirement field-wise.
func (reg *Registry) Operation(method, path string, req Requirement) *Registry {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.operations[operationKey(method, path)] = req
	return reg
}

// Resolve returns the effective requirement for an operation and whether
// any requirement was registered for it. Unregistered operations resolve
// to a zero requirement, which the enforcer treats as
// authenticated-access-only.
func (reg *Registry) Resolve(method, path string) (Requirement, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var req Requirement
	found := false
	for _, prefix := range reg.prefixes {
		if strings.HasPrefix(path, prefix) {
			req = reg.groups[prefix]
			found = true
			break
		}
	}

	if op, ok := reg.operations[operationKey(method, path)]; ok {
		req = merge(req, op)
		found = true
	}

	return req, found
}

// merge overlays an operation-level requirement on a group-level one.
// List-valued and pointer fields replace the base when set; boolean flags
// combine with OR, so an operation can tighten a group's OwnerOnly or
// AdminOnly restriction but never relax it. Marking the operation public
// is the one escape: it drops the group's permission demands entirely.
func merge(base, op Requirement) Requirement {
	out := base
	if op.RequiredPermissions != nil {
		out.RequiredPermissions = op.RequiredPermissions
	}
	if op.Mode != "" {
		out.Mode = op.Mode
	}
	if op.Conditional != nil {
		out.Conditional = op.Conditional
	}
	out.OwnerOnly = out.OwnerOnly || op.OwnerOnly
	out.AdminOnly = out.AdminOnly || op.AdminOnly
	out.BypassTenantScope = out.BypassTenantScope || op.BypassTenantScope
	if op.Public {
		out = Requirement{Public: true, BypassTenantScope: out.BypassTenantScope}
	}
	return out
}

func operationKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
