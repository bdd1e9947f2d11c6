package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/rbac"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

// ErrUnknownRole is returned by AssignRole for a role outside rbac's set.
var ErrUnknownRole = errors.New("unknown role")

// AssignRole sets the role of the user identified by id, email or display
// name, in that order. Roles are granted by operators, never over HTTP.
func AssignRole(ctx context.Context, st *store.Store, who, role string) (store.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if string(rbac.Normalize(role)) != role {
		return store.User{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	who = strings.TrimSpace(who)

	user, err := st.GetUserByID(ctx, who)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = st.GetUserByEmail(ctx, strings.ToLower(who))
	}
	if errors.Is(err, sql.ErrNoRows) {
		user, err = st.GetUserByName(ctx, who)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("find user %q: %w", who, err)
	}

	if err := st.SetUserRole(ctx, user.ID, role); err != nil {
		return store.User{}, fmt.Errorf("set role: %w", err)
	}
	user.Role = role
	return user, nil
}
