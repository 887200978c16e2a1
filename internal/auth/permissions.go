package auth

import "slices"

// Permission represents a named capability in the console.
type Permission string

// Permission constants.
const (
	PermAvailabilityRead Permission = "availability:read"
	PermPlacementRead    Permission = "placement:read"
	PermSnapshotRefresh  Permission = "snapshot:refresh"
	PermTokenIssue       Permission = "token:issue"
)

// roleLadder lists roles from least to most privileged with the
// permissions each adds over the one below. Every role inherits the rest.
var roleLadder = []struct {
	role Role
	adds []Permission
}{
	{RoleViewer, []Permission{PermAvailabilityRead, PermPlacementRead}},
	{RoleInstaller, []Permission{PermSnapshotRefresh}},
	{RoleAdmin, []Permission{PermTokenIssue}},
}

var rolePermissions = func() map[Role][]Permission {
	m := make(map[Role][]Permission, len(roleLadder))
	var acc []Permission
	for _, step := range roleLadder {
		acc = append(slices.Clip(acc), step.adds...)
		m[step.role] = acc
	}
	return m
}()

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions role grants, or nil
// for an unknown role.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
