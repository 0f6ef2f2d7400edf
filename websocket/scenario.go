package websocket

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/wire"
	"golang.org/x/net/websocket"
)

// Scenario describes a scripted exchange with a toft server: an ordered
// sequence of messages to send and messages to wait for. It is the building
// block of handler tests and smoke tests.
type Scenario struct {
	conn  *websocket.Conn
	steps []scenarioStep
}

func NewScenario(conn *websocket.Conn) *Scenario {
	return &Scenario{conn: conn}
}

// Send queues a message to be sent when the scenario runs. The payload is
// built lazily so it can depend on values captured by earlier steps.
func (s *Scenario) Send(msg func() any) *Scenario {
	s.steps = append(s.steps, scenarioStep{send: msg})
	return s
}

// Receive queues a wait for the next message matching every given filter.
// Non-matching messages, such as interleaved broadcasts, are skipped.
//
// Accepted arguments are MsgFilter values and func(wire.Msg) error
// inspectors, which run once the matching message arrives.
func (s *Scenario) Receive(v ...any) *Scenario {
	var step scenarioStep

	for _, f := range v {
		switch f := f.(type) {
		case MsgFilter:
			step.filters = append(step.filters, f)

		case func(wire.Msg) bool:
			step.filters = append(step.filters, f)

		case func(wire.Msg) error:
			step.inspectors = append(step.inspectors, f)

		default:
			step.err = errors.New("unsupported receive argument").
				WithTag("argument", f)
		}
	}

	s.steps = append(s.steps, step)
	return s
}

// Run plays the scenario. It returns the first error encountered: an
// encoding or transport failure, an inspector error, or the context ending
// before every step completed.
func (s *Scenario) Run(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetDeadline(deadline); err != nil {
			return errors.New("setting connection deadline failed").Wrap(err)
		}
	}

	for i, step := range s.steps {
		if err := s.runStep(ctx, step); err != nil {
			return errors.New("scenario step failed").
				WithTag("step", i).
				Wrap(err)
		}
	}
	return nil
}

func (s *Scenario) runStep(ctx context.Context, step scenarioStep) error {
	if step.err != nil {
		return step.err
	}

	if step.send != nil {
		msg, err := wire.MsgFrom(step.send())
		if err != nil {
			return err
		}
		_, err = wire.Send(s.conn, msg)
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, _, err := wire.Receive(s.conn)
		if err != nil {
			return err
		}

		if !matches(msg, step.filters) {
			continue
		}

		for _, inspect := range step.inspectors {
			if err := inspect(msg); err != nil {
				return err
			}
		}
		return nil
	}
}

type scenarioStep struct {
	send       func() any
	filters    []MsgFilter
	inspectors []func(wire.Msg) error
	err        error
}

// MsgFilter reports whether a received message is the one a scenario step
// waits for.
type MsgFilter func(wire.Msg) bool

func FilterByType(t wire.MsgType) MsgFilter {
	return func(msg wire.Msg) bool {
		return msg.Type == t
	}
}

func FilterByRequestID(id uint32) MsgFilter {
	return func(msg wire.Msg) bool {
		var base struct {
			RequestID uint32 `json:"request_id"`
		}
		if err := msg.DataTo(&base); err != nil {
			return false
		}
		return base.RequestID == id
	}
}

func matches(msg wire.Msg, filters []MsgFilter) bool {
	for _, f := range filters {
		if !f(msg) {
			return false
		}
	}
	return true
}
