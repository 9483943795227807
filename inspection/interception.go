package inspection

import (
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Decision is an interceptor's verdict on an inbound activity. Forward
// controls whether the turn continues into the application; Intercept
// controls whether the turn's traffic is mirrored through the interceptor.
type Decision struct {
	Forward   bool
	Intercept bool
}

// Interceptor observes a turn's traffic as trace activities. All three
// hooks are guarded: a hook error is logged and the turn proceeds, so a
// broken debugging surface can never take the bot down.
type Interceptor interface {
	// Inbound inspects the activity that starts the turn.
	Inbound(tc *core.TurnContext, trace *core.Activity) (Decision, error)
	// Outbound inspects activities the application is sending.
	Outbound(tc *core.TurnContext, traces []*core.Activity) error
	// TraceState reports durable state at the end of an intercepted turn.
	TraceState(tc *core.TurnContext) error
}

// InterceptionMiddleware mirrors a turn's inbound, outbound and state
// traffic through an Interceptor. An application logic error is reported
// to the interceptor as an error trace and then rethrown unchanged.
type InterceptionMiddleware struct {
	interceptor Interceptor
	logger      logging.Logger
}

// NewInterceptionMiddleware wires an interceptor into the turn flow.
func NewInterceptionMiddleware(interceptor Interceptor, logger logging.Logger) *InterceptionMiddleware {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &InterceptionMiddleware{interceptor: interceptor, logger: logger}
}

// OnTurn implements core.Middleware.
func (m *InterceptionMiddleware) OnTurn(tc *core.TurnContext, next core.NextFunc) error {
	decision := m.invokeInbound(tc, TraceFromActivity(tc.Activity(), "ReceivedActivity", "Received Activity"))

	if decision.Intercept {
		tc.OnSendActivities(func(tc *core.TurnContext, activities []*core.Activity, next func() ([]core.ResourceResponse, error)) ([]core.ResourceResponse, error) {
			traces := make([]*core.Activity, 0, len(activities))
			for _, activity := range activities {
				traces = append(traces, TraceFromActivity(activity, "SentActivity", "Sent Activity"))
			}
			m.invokeOutbound(tc, traces)
			return next()
		})
		tc.OnUpdateActivity(func(tc *core.TurnContext, activity *core.Activity, next func() error) error {
			m.invokeOutbound(tc, []*core.Activity{TraceFromActivity(activity, "MessageUpdate", "Updated Message")})
			return next()
		})
		tc.OnDeleteActivity(func(tc *core.TurnContext, reference *core.ConversationReference, next func() error) error {
			m.invokeOutbound(tc, []*core.Activity{TraceFromReference(reference)})
			return next()
		})
	}

	if decision.Forward {
		if err := next(); err != nil {
			m.invokeOutbound(tc, []*core.Activity{TraceFromError(err.Error())})
			return err
		}
	}

	if decision.Intercept {
		m.invokeTraceState(tc)
	}
	return nil
}

func (m *InterceptionMiddleware) invokeInbound(tc *core.TurnContext, trace *core.Activity) Decision {
	decision, err := m.interceptor.Inbound(tc, trace)
	if err != nil {
		m.logger.Warn("exception in inbound interception error=%v", err)
		return Decision{Forward: true, Intercept: false}
	}
	return decision
}

func (m *InterceptionMiddleware) invokeOutbound(tc *core.TurnContext, traces []*core.Activity) {
	if err := m.interceptor.Outbound(tc, traces); err != nil {
		m.logger.Warn("exception in outbound interception error=%v", err)
	}
}

func (m *InterceptionMiddleware) invokeTraceState(tc *core.TurnContext) {
	if err := m.interceptor.TraceState(tc); err != nil {
		m.logger.Warn("exception in state interception error=%v", err)
	}
}
