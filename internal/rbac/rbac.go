// Package rbac decides which actions a role may take on a board.
package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleCommenter Role = "commenter"
	RoleEditor    Role = "editor"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionWrite   Action = "write"
	ActionAnalyze Action = "analyze"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionComment || action == ActionWrite || action == ActionAnalyze
	case RoleCommenter:
		return action == ActionRead || action == ActionComment
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// CanOnBoard applies Can to a board owned by ownerID. Only the owner and
// admins see a board at all.
func CanOnBoard(role Role, action Action, actorID, ownerID string) bool {
	if role == RoleAdmin {
		return true
	}
	if actorID == "" || actorID != ownerID {
		return false
	}
	return Can(role, action)
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleCommenter, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
