package festa

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

// Module lets participants carve child content into the footprint of an
// object they own, e.g. a window into a wall. Attachments live and die with
// their parent: they are dropped when the parent is removed, moved out from
// under them, or its non-persistent owner disconnects.
type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "festa"
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
	case wire.MsgTypeParticipantJoinRequest:
		err = m.handleParticipantJoin(ctx, respond, msg)

	case wire.MsgTypeRemoveRequest:
		err = m.handleObjectRemove(ctx, respond, msg)

	case wire.MsgTypeMoveRequest:
		err = m.handleObjectMove(ctx, respond, msg)

	case wire.MsgTypeUndoRequest,
		wire.MsgTypeRedoRequest,
		wire.MsgTypeSnapshotRestoreRequest:
		m.pruneDetachedParents()

	case wire.MsgTypeAttachRequest:
		err = m.handleAttach(ctx, respond, msg)

	case wire.MsgTypeDetachRequest:
		err = m.handleDetach(ctx, respond, msg)

	case wire.MsgTypeAttachmentListRequest:
		err = m.handleAttachmentList(ctx, respond, msg)

	default:
		err = wire.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
	participant := m.currentParticipant
	if participant == nil {
		return
	}

	for _, objectID := range participant.ObjectIDs() {
		if o, ok := m.currentSession.ObjectByID(objectID); !ok || !o.Persist {
			m.state.RemoveForParent(objectID)
		}
	}
}

func (m *Module) handleParticipantJoin(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	respond.Send(wire.AttachmentState{
		Type:        wire.MsgTypeAttachmentState,
		Timestamp:   wire.Now(),
		Attachments: m.state.Attachments(),
	})
	return nil
}

// handleObjectRemove drops the attachments of objects that are gone. It runs
// after the placement handler, so a still-present object means the removal
// was rejected.
func (m *Module) handleObjectRemove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.RemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, ok := m.currentSession.ObjectByID(req.ObjectID); !ok {
		m.state.RemoveForParent(req.ObjectID)
	}

	return nil
}

// handleObjectMove drops attachments the parent moved out from under: cells
// no longer inside the parent footprint cannot hold content.
func (m *Module) handleObjectMove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.MoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	parentCells := m.currentSession.CurrentState().CellsOf(req.ObjectID)
	if len(parentCells) == 0 {
		m.state.RemoveForParent(req.ObjectID)
		return nil
	}

	for _, a := range m.state.AttachmentsOf(req.ObjectID) {
		if !parentCells.ContainsAll(grid.NewFootprint(a.Cells...)) {
			m.state.RemoveAttachment(a.ID)
		}
	}

	return nil
}

// pruneDetachedParents re-checks every attachment against the live grid.
// Undo, redo and snapshot restores rewrite the state wholesale, so a parent
// can vanish or shrink without a remove or move request naming it.
func (m *Module) pruneDetachedParents() {
	state := m.currentSession.CurrentState()
	for _, a := range m.state.Attachments() {
		parentCells := state.CellsOf(a.ParentID)
		if !parentCells.ContainsAll(grid.NewFootprint(a.Cells...)) {
			m.state.RemoveAttachment(a.ID)
		}
	}
}

func (m *Module) handleAttach(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.AttachRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := m.currentSession
	participant := m.currentParticipant
	if session == nil || participant == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.ContentID == "" || len(req.Cells) == 0 {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeBadRequest,
		})
		return nil
	}

	parent, ok := session.ObjectByID(req.ParentID)
	if !ok {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
		})
		return nil
	}

	if parent.ParticipantID != participant.ID {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeUnauthorized,
		})
		return nil
	}

	child := grid.NewFootprint(req.Cells...)
	parentCells := session.CurrentState().CellsOf(req.ParentID)
	if err := grid.ValidateParentChild(child, parentCells); err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	attachment := wire.Attachment{
		ID:            uuid.New().String(),
		ParentID:      req.ParentID,
		ContentID:     req.ContentID,
		Cells:         child.Cells(),
		ParticipantID: participant.ID,
	}
	m.state.SetAttachment(attachment)

	now := wire.Now()
	respond.Send(wire.AttachResponse{
		Type:         wire.MsgTypeAttachResponse,
		Timestamp:    now,
		RequestID:    req.RequestID,
		AttachmentID: attachment.ID,
	})
	session.Broadcast(participant, wire.AttachBroadcast{
		Type:            wire.MsgTypeAttachBroadcast,
		Timestamp:       now,
		OriginTimestamp: req.Timestamp,
		Attachment:      attachment,
	})
	return nil
}

func (m *Module) handleDetach(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.DetachRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := m.currentSession
	participant := m.currentParticipant
	if session == nil || participant == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	attachment, ok := m.state.Attachment(req.AttachmentID)
	if !ok {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
		})
		return nil
	}

	if attachment.ParticipantID != participant.ID {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeUnauthorized,
		})
		return nil
	}

	m.state.RemoveAttachment(attachment.ID)

	now := wire.Now()
	respond.Send(wire.DetachResponse{
		Type:      wire.MsgTypeDetachResponse,
		Timestamp: now,
		RequestID: req.RequestID,
	})
	session.Broadcast(participant, wire.DetachBroadcast{
		Type:            wire.MsgTypeDetachBroadcast,
		Timestamp:       now,
		OriginTimestamp: req.Timestamp,
		AttachmentID:    attachment.ID,
		ParentID:        attachment.ParentID,
	})
	return nil
}

func (m *Module) handleAttachmentList(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.AttachmentListRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	var attachments []wire.Attachment
	if req.ParentID != "" {
		attachments = m.state.AttachmentsOf(req.ParentID)
	} else {
		attachments = m.state.Attachments()
	}

	respond.Send(wire.AttachmentListResponse{
		Type:        wire.MsgTypeAttachmentListResponse,
		Timestamp:   wire.Now(),
		RequestID:   req.RequestID,
		Attachments: attachments,
	})
	return nil
}
