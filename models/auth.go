package models

import (
	"context"
	"slices"
	"time"

	"github.com/hisabworks/hisab_backend/appctx"
	"github.com/hisabworks/hisab_backend/utils"
)

// Actor is the acting user, threaded through context by the auth middleware.
// Authorization is a pure function of the actor value: no session global, no
// store lookup inside the checks.
type Actor struct {
	Username    string
	Name        string
	Role        UserRole
	Permissions []string
}

func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}

func SetActorInContext(ctx context.Context, actor Actor) context.Context {
	ctx = appctx.Set(ctx, appctx.ContextKeyUsername, actor.Username)
	ctx = appctx.Set(ctx, appctx.ContextKeyUserName, actor.Name)
	ctx = appctx.Set(ctx, appctx.ContextKeyUserRole, string(actor.Role))
	ctx = appctx.Set(ctx, appctx.ContextKeyPermissions, actor.Permissions)
	return ctx
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	username, ok := appctx.GetString(ctx, appctx.ContextKeyUsername)
	if !ok || username == "" {
		return Actor{}, false
	}
	name, _ := appctx.GetString(ctx, appctx.ContextKeyUserName)
	role, _ := appctx.GetString(ctx, appctx.ContextKeyUserRole)
	permissions, _ := appctx.GetStrings(ctx, appctx.ContextKeyPermissions)
	return Actor{
		Username:    username,
		Name:        name,
		Role:        UserRole(role),
		Permissions: permissions,
	}, true
}

// Authorize reports whether the actor may perform the named action.
// Admins are allowed everything.
func Authorize(actor Actor, permission string) bool {
	if actor.IsAdmin() {
		return true
	}
	return slices.Contains(actor.Permissions, permission)
}

// CheckBackDate rejects entries dated before today for non-admin actors.
// Admins bypass the guard entirely. Comparison is by calendar day in the
// server's local time, so a same-day entry at any hour passes.
func CheckBackDate(actor Actor, date time.Time, now time.Time) error {
	if actor.IsAdmin() {
		return nil
	}
	if utils.DateOnly(date).Before(utils.DateOnly(now)) {
		return utils.NewSecurityError("back-dated entries are not allowed for this user")
	}
	return nil
}

func requireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, utils.NewSecurityError("acting user is required")
	}
	return actor, nil
}

func requirePermission(ctx context.Context, permission string) (Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return Actor{}, err
	}
	if !Authorize(actor, permission) {
		return Actor{}, utils.NewSecurityError("permission denied: " + permission)
	}
	return actor, nil
}
