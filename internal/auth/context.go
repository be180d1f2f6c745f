package auth

import (
	"context"
	"sync"

	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/metadata"
)

// RoleField is the user column holding the actor's role.
const RoleField = "role"

// RequestContext resolves the session user at most once per request.
type RequestContext struct {
	engine    *engine.Engine
	userModel string
	userID    int64

	once  sync.Once
	user  map[string]any
	actor *metadata.Actor
	err   error
}

// NewRequestContext binds a request to the session's user id; zero means anonymous.
func NewRequestContext(e *engine.Engine, userModel string, userID int64) *RequestContext {
	return &RequestContext{engine: e, userModel: userModel, userID: userID}
}

// Actor returns the session actor, or nil when the request is anonymous or
// the user no longer exists.
func (rc *RequestContext) Actor(ctx context.Context) (*metadata.Actor, error) {
	rc.load(ctx)
	return rc.actor, rc.err
}

// User returns the session user row.
func (rc *RequestContext) User(ctx context.Context) (map[string]any, error) {
	rc.load(ctx)
	return rc.user, rc.err
}

func (rc *RequestContext) load(ctx context.Context) {
	rc.once.Do(func() {
		if rc.userID == 0 {
			return
		}
		rc.user, rc.err = rc.engine.FindOne(ctx, rc.userModel,
			map[string]any{metadata.IDField: rc.userID},
			engine.Options{Access: engine.PublicRead})
		if rc.err != nil || rc.user == nil {
			return
		}
		role, _ := rc.user[RoleField].(string)
		rc.actor = &metadata.Actor{ID: rc.userID, Role: role}
	})
}
