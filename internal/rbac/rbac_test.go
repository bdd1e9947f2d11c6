package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "viewer comment", role: RoleViewer, action: ActionComment, allow: false},
		{name: "editor analyze", role: RoleEditor, action: ActionAnalyze, allow: true},
		{name: "editor admin", role: RoleEditor, action: ActionAdmin, allow: false},
		{name: "commenter read", role: RoleCommenter, action: ActionRead, allow: true},
		{name: "commenter comment", role: RoleCommenter, action: ActionComment, allow: true},
		{name: "commenter analyze", role: RoleCommenter, action: ActionAnalyze, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: "guest", action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanOnBoard(t *testing.T) {
	cases := []struct {
		name    string
		role    Role
		action  Action
		actorID string
		allow   bool
	}{
		{name: "owner editor writes", role: RoleEditor, action: ActionWrite, actorID: "owner", allow: true},
		{name: "owner viewer cannot write", role: RoleViewer, action: ActionWrite, actorID: "owner", allow: false},
		{name: "other editor cannot read", role: RoleEditor, action: ActionRead, actorID: "other", allow: false},
		{name: "admin writes any board", role: RoleAdmin, action: ActionWrite, actorID: "other", allow: true},
		{name: "anonymous", role: RoleEditor, action: ActionRead, actorID: "", allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanOnBoard(tc.role, tc.action, tc.actorID, "owner"); got != tc.allow {
				t.Fatalf("CanOnBoard(%q, %q, %q) = %v, want %v", tc.role, tc.action, tc.actorID, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("editor") != RoleEditor || Normalize("superuser") != RoleViewer {
		t.Fatal("Normalize should keep known roles and default to viewer")
	}
}
