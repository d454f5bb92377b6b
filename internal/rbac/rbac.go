// Package rbac evaluates role capabilities for the catalogue. Whether a user
// may WRITE a given document directly decides between an immediate write and
// a moderation request.
package rbac

type Role string
type Action string

const (
	RoleUser          Role = "user"
	RoleClearingAdmin Role = "clearing-admin"
	RoleAdmin         Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionModerate Action = "moderate"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleClearingAdmin:
		return action == ActionRead || action == ActionWrite || action == ActionModerate
	case RoleUser:
		return action == ActionRead
	default:
		return false
	}
}

// CanWriteDocument decides the direct-write capability for one document:
// clearing admins and admins write anything, creators write their own.
// Everyone else goes through moderation.
func CanWriteDocument(role Role, userID, createdBy string) bool {
	if Can(role, ActionWrite) {
		return true
	}
	return createdBy != "" && createdBy == userID
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleClearingAdmin, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
