package core

// NextFunc continues the middleware pipeline. A middleware that never calls
// next ends the turn for all downstream middleware and the application
// logic; that is a short-circuit, not an error.
type NextFunc func() error

// TurnLogic is the terminal application callback invoked once per turn if
// every middleware called its continuation.
type TurnLogic func(tc *TurnContext) error

// Middleware intercepts a turn. Code before the next() call runs in
// registration order on the way in; code after next() runs in reverse
// order on the way out, which is how outbound-observing middleware sees
// responses sent by the application logic.
type Middleware interface {
	OnTurn(tc *TurnContext, next NextFunc) error
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func(tc *TurnContext, next NextFunc) error

// OnTurn calls the wrapped function.
func (f MiddlewareFunc) OnTurn(tc *TurnContext, next NextFunc) error {
	return f(tc, next)
}

// MiddlewareSet is an ordered middleware collection. Registration order is
// execution order; the set never retries and never swallows errors.
type MiddlewareSet struct {
	middleware []Middleware
}

// Use appends middleware to the set.
func (s *MiddlewareSet) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

// Run threads tc through the registered middleware with logic as the
// innermost step. Each middleware wraps the remainder of the chain via its
// continuation; an error from any layer propagates up through the unwind
// to the caller.
func (s *MiddlewareSet) Run(tc *TurnContext, logic TurnLogic) error {
	return s.runAt(tc, 0, logic)
}

func (s *MiddlewareSet) runAt(tc *TurnContext, i int, logic TurnLogic) error {
	if i == len(s.middleware) {
		if logic == nil {
			return nil
		}
		return logic(tc)
	}
	return s.middleware[i].OnTurn(tc, func() error {
		return s.runAt(tc, i+1, logic)
	})
}
