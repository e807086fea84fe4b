package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// Role identifies one of the four PillPath user roles
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCustomer   Role = "customer"
	RolePharmacy   Role = "pharmacy"
	RolePharmacist Role = "pharmacist"
)

// RoleAuthMiddleware checks if the user has one of the required roles
func RoleAuthMiddleware(allowedRoles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Role is set by the JWT middleware
			role, ok := GetUserRole(r.Context())
			if !ok || role == "" {
				sendUnauthorized(w, "User role not found")
				return
			}

			hasPermission := false
			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					hasPermission = true
					break
				}
			}

			if !hasPermission {
				sendForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin middleware that requires the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return RoleAuthMiddleware(RoleAdmin)(next)
}

// sendForbidden sends a forbidden response
func sendForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    "FORBIDDEN",
			"message": message,
		},
	})
}

// GetUserRole extracts the user role from context
func GetUserRole(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	if !ok {
		return "", false
	}
	return Role(role), true
}
