package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Built-in roles of the HR domain.
const (
	RoleAdmin       = "Admin"
	RoleHR          = "HR"
	RoleManagerName = "Manager"
	RoleEmployee    = "Employee"
)

// Built-in permissions.
const (
	PermNotificationsPublish   = "notifications:publish"
	PermNotificationsManageAny = "notifications:manage-any"
	PermLiveJoinAny            = "live:join-any"
)

// RoleManager maps role names to permission masks.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask
	frozen bool
}

// NewRoleManager returns a RoleManager resolving permission names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask),
	}
}

// RegisterRole defines role with the given permissions. A role may hold no
// permissions; it is still a known role.
func (rm *RoleManager) RegisterRole(role string, permissions ...string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if role == "" {
		return errors.New("permission: role name empty")
	}
	if _, exists := rm.roles[role]; exists {
		return fmt.Errorf("%w: role %s", ErrDuplicate, role)
	}

	var mask Mask
	for _, perm := range permissions {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknown, perm)
		}
		mask = mask.With(bit)
	}
	rm.roles[role] = mask
	return nil
}

// Known reports whether role has been registered.
func (rm *RoleManager) Known(role string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.roles[role]
	return ok
}

// Mask returns the permission mask of role.
func (rm *RoleManager) Mask(role string) (Mask, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	m, ok := rm.roles[role]
	return m, ok
}

// Has reports whether role grants permission. Unknown roles and permissions
// grant nothing.
func (rm *RoleManager) Has(role, permission string) bool {
	bit, ok := rm.registry.Bit(permission)
	if !ok {
		return false
	}
	m, ok := rm.Mask(role)
	return ok && m.Has(bit)
}

// Roles returns the registered role names, sorted.
func (rm *RoleManager) Roles() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]string, 0, len(rm.roles))
	for r := range rm.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further role registrations and freezes the registry.
func (rm *RoleManager) Freeze() {
	rm.registry.Freeze()
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// Default returns a frozen RoleManager with the built-in roles:
// Admin holds every permission, HR may publish notifications, Manager and
// Employee hold none.
func Default() *RoleManager {
	reg := NewRegistry()
	for _, p := range []string{PermNotificationsPublish, PermNotificationsManageAny, PermLiveJoinAny} {
		if _, err := reg.Register(p); err != nil {
			panic(err)
		}
	}
	rm := NewRoleManager(reg)
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(rm.RegisterRole(RoleAdmin, PermNotificationsPublish, PermNotificationsManageAny, PermLiveJoinAny))
	must(rm.RegisterRole(RoleHR, PermNotificationsPublish))
	must(rm.RegisterRole(RoleManagerName))
	must(rm.RegisterRole(RoleEmployee))
	rm.Freeze()
	return rm
}
