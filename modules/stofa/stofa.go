package stofa

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

// Module answers room queries: flood-filled empty regions enclosed by placed
// objects on a single z-level.
type Module struct {
	// DisableCache recomputes every query instead of recalling results for
	// the current revision.
	DisableCache bool

	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "stofa"
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
	case wire.MsgTypeRoomDetectRequest:
		err = m.handleRoomDetect(ctx, respond, msg)

	case wire.MsgTypeRoomAtRequest:
		err = m.handleRoomAt(ctx, respond, msg)

	default:
		err = wire.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
}

func (m *Module) handleRoomDetect(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.RoomDetectRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	rooms, err := m.rooms(grid.RoomOptions{
		ZLevel:                  req.ZLevel,
		Bounds:                  req.Bounds,
		MinSize:                 req.MinSize,
		ExcludeBoundaryTouching: req.ExcludeBoundaryTouching,
	})
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	respond.Send(wire.RoomDetectResponse{
		Type:      wire.MsgTypeRoomDetectResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Rooms:     roomCells(rooms),
		Stats:     grid.RoomStatsOf(rooms),
	})
	return nil
}

func (m *Module) handleRoomAt(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.RoomAtRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	rooms, err := m.rooms(grid.RoomOptions{
		ZLevel:                  req.Cell.Z,
		Bounds:                  req.Bounds,
		MinSize:                 req.MinSize,
		ExcludeBoundaryTouching: req.ExcludeBoundaryTouching,
	})
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	res := wire.RoomAtResponse{
		Type:      wire.MsgTypeRoomAtResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
	}
	if room, found := grid.RoomAt(req.Cell, rooms); found {
		res.Found = true
		res.Room = room.Cells()
	}

	respond.Send(res)
	return nil
}

// rooms recalls or computes the room set for the current revision.
func (m *Module) rooms(opts grid.RoomOptions) ([]grid.Footprint, error) {
	revision, state := m.currentSession.RevisionState()

	if !m.DisableCache {
		if rooms, ok := m.state.Rooms(revision, opts); ok {
			return rooms, nil
		}
	}

	rooms, err := grid.DetectRooms(state, opts)
	if err != nil {
		return nil, err
	}

	if !m.DisableCache {
		m.state.SetRooms(revision, opts, rooms)
	}
	return rooms, nil
}

func roomCells(rooms []grid.Footprint) [][]grid.Cell {
	cells := make([][]grid.Cell, len(rooms))
	for i, room := range rooms {
		cells[i] = room.Cells()
	}
	return cells
}
