// Package permissions maps operator roles to permissions and checks
// required permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "orders.*")
//   - "resource.action" - Specific action (e.g., "orders.confirm")
//   - "resource.subresource.action" - Nested permission (e.g., "stock.alerts.acknowledge")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "orders.*" matches "orders.confirm", "orders.ship", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "orders.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// ExpandWildcard expands a wildcard permission pattern to check if it covers
// a set of specific permissions. Returns the list of permissions that would be covered.
func ExpandWildcard(pattern string, allKnownPerms []string) []string {
	if pattern == "*" {
		return allKnownPerms
	}

	if !strings.HasSuffix(pattern, ".*") {
		// Not a wildcard, return as-is if it exists
		for _, p := range allKnownPerms {
			if p == pattern {
				return []string{pattern}
			}
		}
		return nil
	}

	prefix := strings.TrimSuffix(pattern, ".*")
	var matches []string
	for _, p := range allKnownPerms {
		if strings.HasPrefix(p, prefix+".") {
			matches = append(matches, p)
		}
	}
	return matches
}

// Effective expands wildcard grants into the concrete permissions they cover,
// in CommonPermissions order.
func Effective(perms []string) []string {
	granted := make(map[string]bool)
	for _, p := range perms {
		for _, c := range ExpandWildcard(p, CommonPermissions) {
			granted[c] = true
		}
	}
	out := make([]string, 0, len(granted))
	for _, c := range CommonPermissions {
		if granted[c] {
			out = append(out, c)
		}
	}
	return out
}

// Permissions known to the application
const (
	OrdersRead      = "orders.read"
	OrdersCreate    = "orders.create"
	OrdersAssign    = "orders.assign"
	OrdersConfirm   = "orders.confirm"
	OrdersPrepare   = "orders.prepare"
	OrdersShip      = "orders.ship"
	OrdersImport    = "orders.import"
	StockRead       = "stock.read"
	StockWrite      = "stock.write"
	CatalogRead     = "catalog.read"
	CatalogWrite    = "catalog.write"
	PromotionsWrite = "promotions.write"
	KPIRead         = "kpi.read"
	OperatorsManage = "operators.manage"
)

// Roles
const (
	RoleAdmin        = "admin"
	RoleConfirmation = "confirmation"
	RolePreparation  = "preparation"
	RoleLogistics    = "logistics"
	RoleStock        = "stock"
)

// CommonPermissions lists every concrete permission.
var CommonPermissions = []string{
	OrdersRead, OrdersCreate, OrdersAssign, OrdersConfirm, OrdersPrepare, OrdersShip, OrdersImport,
	StockRead, StockWrite,
	CatalogRead, CatalogWrite, PromotionsWrite,
	KPIRead,
	OperatorsManage,
}

var rolePermissions = map[string][]string{
	RoleAdmin:        {"*"},
	RoleConfirmation: {OrdersRead, OrdersCreate, OrdersConfirm, CatalogRead, StockRead},
	RolePreparation:  {OrdersRead, OrdersPrepare, CatalogRead, StockRead},
	RoleLogistics:    {OrdersRead, OrdersShip, CatalogRead, StockRead},
	RoleStock:        {"stock.*", "catalog.*", PromotionsWrite, OrdersRead, KPIRead},
}

// ForRole returns the permissions granted by a role. Unknown roles get none.
func ForRole(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// IsValidRole reports whether role is one of the known operator roles.
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
