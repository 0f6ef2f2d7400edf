package bjalki

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

// Module answers structural graph queries: which placed objects touch which,
// component membership and connectivity.
type Module struct {
	// DisableCache rebuilds the graph on every query.
	DisableCache bool

	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "bjalki"
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)
}

func (m *Module) HandleMsg(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var err error

	switch msg.Type {
	case wire.MsgTypeGraphNeighborsRequest:
		err = m.handleNeighbors(ctx, respond, msg)

	case wire.MsgTypeGraphComponentsRequest:
		err = m.handleComponents(ctx, respond, msg)

	case wire.MsgTypeGraphConnectedRequest:
		err = m.handleConnected(ctx, respond, msg)

	case wire.MsgTypeGraphStatsRequest:
		err = m.handleStats(ctx, respond, msg)

	default:
		err = wire.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
}

func (m *Module) handleNeighbors(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.GraphNeighborsRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	graph := m.graph()
	if !graph.Has(req.ObjectID) {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
			Detail:    grid.ErrTypeNotFound,
		})
		return nil
	}

	respond.Send(wire.GraphNeighborsResponse{
		Type:      wire.MsgTypeGraphNeighborsResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Neighbors: graph.Neighbors(req.ObjectID),
		Degree:    graph.Degree(req.ObjectID),
	})
	return nil
}

func (m *Module) handleComponents(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	respond.Send(wire.GraphComponentsResponse{
		Type:       wire.MsgTypeGraphComponentsResponse,
		Timestamp:  wire.Now(),
		RequestID:  req.RequestID,
		Components: m.graph().Components(),
	})
	return nil
}

func (m *Module) handleConnected(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.GraphConnectedRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	graph := m.graph()
	if !graph.Has(req.ObjectA) || !graph.Has(req.ObjectB) {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
			Detail:    grid.ErrTypeNotFound,
		})
		return nil
	}

	respond.Send(wire.GraphConnectedResponse{
		Type:      wire.MsgTypeGraphConnectedResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Connected: graph.IsConnected(req.ObjectA, req.ObjectB),
	})
	return nil
}

func (m *Module) handleStats(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	respond.Send(wire.GraphStatsResponse{
		Type:      wire.MsgTypeGraphStatsResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Stats:     m.graph().Stats(),
	})
	return nil
}

func (m *Module) graph() grid.Graph {
	revision, state := m.currentSession.RevisionState()
	if m.DisableCache {
		return grid.BuildGraph(state)
	}
	return m.state.Graph(revision, func() grid.Graph {
		return grid.BuildGraph(state)
	})
}
