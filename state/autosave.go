package state

import (
	"github.com/hupe1980/botmesh/core"
)

// NewAutoSaveMiddleware saves the given scopes at the end of every
// successful turn, so application logic can mutate state freely without
// remembering to flush it. A turn that errors saves nothing.
func NewAutoSaveMiddleware(scopes ...*Scope) core.Middleware {
	return core.MiddlewareFunc(func(tc *core.TurnContext, next core.NextFunc) error {
		if err := next(); err != nil {
			return err
		}
		for _, scope := range scopes {
			if err := scope.Save(tc, false); err != nil {
				return err
			}
		}
		return nil
	})
}
