package merki

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

// Module maintains string key/value tags on placed objects. Writes carry the
// client timestamp and lose against newer ones, so concurrent taggers
// converge on last-write-wins. Tags disappear with their object.
type Module struct {
	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "merki"
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

	case wire.MsgTypeTagSetRequest:
		err = m.handleTagSet(ctx, respond, msg)

	case wire.MsgTypeTagDeleteRequest:
		err = m.handleTagDelete(ctx, respond, msg)

	case wire.MsgTypeTagListRequest:
		err = m.handleTagList(ctx, respond, msg)

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
			m.state.RemoveObjectTags(objectID)
		}
	}
}

func (m *Module) handleParticipantJoin(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	respond.Send(wire.TagState{
		Type:      wire.MsgTypeTagState,
		Timestamp: wire.Now(),
		Tags:      m.state.Tags(),
	})
	return nil
}

// handleObjectRemove drops the tags of objects that are gone. It runs after
// the placement handler, so a still-present object means the removal was
// rejected.
func (m *Module) handleObjectRemove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.RemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, ok := m.currentSession.ObjectByID(req.ObjectID); !ok {
		m.state.RemoveObjectTags(req.ObjectID)
	}

	return nil
}

func (m *Module) handleTagSet(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.TagSetRequest
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

	tag := req.Tag
	if tag.Key == "" || tag.ObjectID == "" {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeBadRequest,
		})
		return nil
	}

	if _, ok := session.ObjectByID(tag.ObjectID); !ok {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
		})
		return nil
	}

	if current, ok := m.state.Tag(tag.ObjectID, tag.Key); ok && tag.SetAt < current.SetAt {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeConflict,
		})
		return nil
	}

	m.state.SetTag(tag)

	now := wire.Now()
	respond.Send(wire.TagSetResponse{
		Type:      wire.MsgTypeTagSetResponse,
		Timestamp: now,
		RequestID: req.RequestID,
	})
	session.Broadcast(participant, wire.TagSetBroadcast{
		Type:            wire.MsgTypeTagSetBroadcast,
		Timestamp:       now,
		OriginTimestamp: req.Timestamp,
		Tag:             tag,
	})
	return nil
}

func (m *Module) handleTagDelete(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.TagDeleteRequest
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

	current, ok := m.state.Tag(req.ObjectID, req.Key)
	if !ok {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
		})
		return nil
	}

	if req.SetAt < current.SetAt {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeConflict,
		})
		return nil
	}

	m.state.DeleteTag(req.ObjectID, req.Key)

	now := wire.Now()
	respond.Send(wire.TagDeleteResponse{
		Type:      wire.MsgTypeTagDeleteResponse,
		Timestamp: now,
		RequestID: req.RequestID,
	})
	session.Broadcast(participant, wire.TagDeleteBroadcast{
		Type:            wire.MsgTypeTagDeleteBroadcast,
		Timestamp:       now,
		OriginTimestamp: req.Timestamp,
		ObjectID:        req.ObjectID,
		Key:             req.Key,
	})
	return nil
}

func (m *Module) handleTagList(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.TagListRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if m.currentSession == nil {
		return errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	var tags []wire.Tag
	if req.ObjectID != "" {
		tags = m.state.TagsOf(req.ObjectID)
	} else {
		tags = m.state.Tags()
	}

	respond.Send(wire.TagListResponse{
		Type:      wire.MsgTypeTagListResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Tags:      tags,
	})
	return nil
}
