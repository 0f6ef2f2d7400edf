package websocket

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/toftlabs/toft/featureflag"
	"github.com/toftlabs/toft/grid"
	httpcmn "github.com/toftlabs/toft/http"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/modules"
	"github.com/toftlabs/toft/wire"
	"golang.org/x/net/websocket"
)

// SnapshotStore persists grid states across sessions. Stores report unknown
// snapshots with a grid.ErrTypeNotFound error so handlers can map them to a
// not found response.
type SnapshotStore interface {
	// Persists a state payload and returns its stored description.
	Save(ctx context.Context, sessionUUID string, revision uint64, stateHash string, payload []byte) (wire.SnapshotInfo, error)

	// Loads the payload stored for the given revision. Revision zero loads
	// the latest snapshot.
	Load(ctx context.Context, sessionUUID string, revision uint64) ([]byte, wire.SnapshotInfo, error)

	// Lists the snapshots stored for a session, oldest first.
	List(ctx context.Context, sessionUUID string) ([]wire.SnapshotInfo, error)
}

// RealtimeHandler represents a service that manages multiple client
// connections and relays their grid mutations in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	FrameDuration time.Duration

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The modules that expand Toft features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	// The key used to sign state checkpoints.
	PrivateKey *ecdsa.PrivateKey

	// Channel for forwarding signed checkpoints to the receipt worker.
	ReceiptChan chan wire.SignedCheckpoint

	// The store where session states are persisted. Nil disables the
	// snapshot operations.
	Snapshots SnapshotStore

	// EngineOptions configures the grid engine of newly created sessions.
	EngineOptions []grid.EngineOption

	// InitialState returns the state newly created sessions start from.
	// Nil starts sessions empty.
	InitialState func() *grid.State

	conn               *websocket.Conn
	currentSession     *models.Session
	currentParticipant *models.Participant

	stopFrameHandling func()

	clientID string
	appKey   string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()
	h.clientID = httpcmn.GetClientID(req)
	h.appKey = httpcmn.GetAppKey(req)

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(wire.Response{
		Type:      wire.MsgTypePingResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleParticipantJoin(ctx context.Context, handleFrame func(), respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.ParticipantJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession != nil && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeSessionAlreadyJoined,
		})
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveSession()
	}

	session, ok := h.Sessions.GetByGlobalID(req.SessionID)
	if !ok && req.SessionID != "" {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeNotFound,
		})
		return nil
	}

	if !ok {
		session = models.NewSession(h.Sessions.NewID(), h.FrameDuration, h.EngineOptions...)
		session.AppKey = h.appKey
		session.HeartbeatDisabled = h.FeatureFlags.IsSet(featureflag.FlagDisableSyncHeartbeat)

		if h.InitialState != nil {
			if seed := h.InitialState(); seed != nil && seed.Len() != 0 {
				session.LoadState(seed)
			}
		}

		if err := h.Sessions.Add(ctx, session); err != nil {
			respond.Send(wire.ErrorResponse{
				Type:      wire.MsgTypeErrorResponse,
				Timestamp: wire.Now(),
				RequestID: req.RequestID,
				Code:      wire.ErrCodeInternalServerError,
			})
			return nil
		}
		go session.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        session.NewParticipantID(),
		Responder: respond,
	}

	session.AddParticipant(participant)
	h.stopFrameHandling = session.HandleFrame(handleFrame)

	respond.Send(wire.ParticipantJoinResponse{
		Type:          wire.MsgTypeParticipantJoinResponse,
		Timestamp:     wire.Now(),
		RequestID:     req.RequestID,
		SessionID:     h.Sessions.GlobalSessionID(session.ID),
		SessionUUID:   session.SessionUUID,
		ParticipantID: participant.ID,
	})

	h.currentSession = session
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSessionState, func() {
		res, entries, objects := session.Snapshot()

		respond.Send(wire.SessionState{
			Type:         wire.MsgTypeSessionState,
			Timestamp:    wire.Now(),
			Participants: models.ParticipantIDs(session.GetParticipants()),
			Revision:     res.Revision,
			StateHash:    res.StateHash.Hex(),
			Entries:      entries,
			Objects:      objectInfos(objects),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		session.Broadcast(participant, wire.ParticipantJoinBroadcast{
			Type:            wire.MsgTypeParticipantJoinBroadcast,
			Timestamp:       wire.Now(),
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
		})
	})

	for _, m := range h.Modules {
		m.Init(session, participant)
	}

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveSession()
	}
}

func (h *RealtimeHandler) HandlePlace(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.PlaceRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	objectID := req.ObjectID
	if objectID == "" {
		objectID = grid.ObjectID(uuid.New().String())
	}

	res, err := session.PlaceObject(participant, objectID, grid.NewFootprint(req.Cells...), req.Persist, req.ExpectedHash)
	if err != nil {
		respond.Send(mutationErrorResponse(req.RequestID, err))
		return nil
	}

	now := wire.Now()

	respond.Send(wire.PlaceResponse{
		Type:      wire.MsgTypePlaceResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		ObjectID:  objectID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisablePlaceBroadcast, func() {
		session.Broadcast(participant, wire.PlaceBroadcast{
			Type:            wire.MsgTypePlaceBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			ObjectID:        objectID,
			Cells:           req.Cells,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleRemove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.RemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	res, err := session.RemoveObject(participant, req.ObjectID, req.ExpectedHash)
	if err != nil {
		respond.Send(mutationErrorResponse(req.RequestID, err))
		return nil
	}

	now := wire.Now()

	respond.Send(wire.RemoveResponse{
		Type:      wire.MsgTypeRemoveResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableRemoveBroadcast, func() {
		session.Broadcast(participant, wire.RemoveBroadcast{
			Type:            wire.MsgTypeRemoveBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			ObjectID:        req.ObjectID,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleMove(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.MoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	res, err := session.MoveObject(participant, req.ObjectID, grid.NewFootprint(req.Cells...), req.ExpectedHash)
	if err != nil {
		respond.Send(mutationErrorResponse(req.RequestID, err))
		return nil
	}

	now := wire.Now()

	respond.Send(wire.MoveResponse{
		Type:      wire.MsgTypeMoveResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableMoveBroadcast, func() {
		session.Broadcast(participant, wire.MoveBroadcast{
			Type:            wire.MsgTypeMoveBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			ObjectID:        req.ObjectID,
			Cells:           req.Cells,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandlePlaceBatch(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.PlaceBatchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	if len(req.Placements) == 0 {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeBadRequest,
		})
		return nil
	}

	placements := make([]wire.BatchPlacement, len(req.Placements))
	items := make([]models.BatchItem, len(req.Placements))
	objectIDs := make([]grid.ObjectID, len(req.Placements))
	for i, p := range req.Placements {
		if p.ObjectID == "" {
			p.ObjectID = grid.ObjectID(uuid.New().String())
		}
		placements[i] = p
		objectIDs[i] = p.ObjectID
		items[i] = models.BatchItem{
			ID:        p.ObjectID,
			Footprint: grid.NewFootprint(p.Cells...),
			Persist:   p.Persist,
		}
	}

	res, err := session.PlaceObjects(participant, items, req.ExpectedHash)
	if err != nil {
		respond.Send(mutationErrorResponse(req.RequestID, err))
		return nil
	}

	now := wire.Now()

	respond.Send(wire.PlaceBatchResponse{
		Type:      wire.MsgTypePlaceBatchResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		ObjectIDs: objectIDs,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisablePlaceBatchBroadcast, func() {
		session.Broadcast(participant, wire.PlaceBatchBroadcast{
			Type:            wire.MsgTypePlaceBatchBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			Placements:      placements,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleUndo(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	applied, res, entries := session.Undo()
	now := wire.Now()

	respond.Send(wire.UndoResponse{
		Type:      wire.MsgTypeUndoResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Applied:   applied,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	if !applied {
		return nil
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableUndoBroadcast, func() {
		session.Broadcast(participant, wire.UndoBroadcast{
			Type:            wire.MsgTypeUndoBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
			Entries:         entries,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleRedo(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	applied, res, entries := session.Redo()
	now := wire.Now()

	respond.Send(wire.RedoResponse{
		Type:      wire.MsgTypeRedoResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Applied:   applied,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})

	if !applied {
		return nil
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableUndoBroadcast, func() {
		session.Broadcast(participant, wire.RedoBroadcast{
			Type:            wire.MsgTypeRedoBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
			Revision:        res.Revision,
			StateHash:       res.StateHash.Hex(),
			Entries:         entries,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleStateHash(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	res := session.StateResult()

	respond.Send(wire.StateHashResponse{
		Type:      wire.MsgTypeStateHashResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
	})
	return nil
}

func (h *RealtimeHandler) HandleStateSnapshot(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	res, entries, _ := session.Snapshot()

	respond.Send(wire.StateSnapshotResponse{
		Type:      wire.MsgTypeStateSnapshotResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
		Entries:   entries,
	})
	return nil
}

func (h *RealtimeHandler) HandleStats(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	respond.Send(wire.StatsResponse{
		Type:      wire.MsgTypeStatsResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Stats:     session.EngineStats(),
	})
	return nil
}

func (h *RealtimeHandler) HandleCheckpoint(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	if h.PrivateKey == nil {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeInternalServerError,
		})
		return errors.New("checkpoint requested without a signing key")
	}

	res := session.StateResult()

	checkpoint, err := models.NewSignedCheckpoint(
		h.PrivateKey,
		h.Sessions.GlobalSessionID(session.ID),
		res.Revision,
		res.StateHash,
		wire.Now(),
	)
	if err != nil {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeInternalServerError,
		})
		return err
	}

	if h.ReceiptChan != nil {
		select {
		case h.ReceiptChan <- checkpoint:

		default:
			respond.Send(wire.ErrorResponse{
				Type:      wire.MsgTypeErrorResponse,
				Timestamp: wire.Now(),
				RequestID: req.RequestID,
				Code:      wire.ErrCodeServerTooBusy,
			})
			return errors.New("checkpoint backlog is full")
		}
	}

	respond.Send(wire.CheckpointResponse{
		Type:       wire.MsgTypeCheckpointResponse,
		Timestamp:  wire.Now(),
		RequestID:  req.RequestID,
		Checkpoint: checkpoint,
	})
	return nil
}

func (h *RealtimeHandler) HandleSnapshotSave(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	if h.Snapshots == nil {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeInternalServerError,
		})
		return nil
	}

	revision, state := session.RevisionState()
	hash := state.StableHash()

	info, err := h.Snapshots.Save(ctx, session.SessionUUID, revision, hash.Hex(), state.CanonicalBytes())
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	respond.Send(wire.SnapshotSaveResponse{
		Type:      wire.MsgTypeSnapshotSaveResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Revision:  info.Revision,
		StateHash: info.StateHash,
		Size:      info.Size,
	})
	return nil
}

func (h *RealtimeHandler) HandleSnapshotRestore(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.SnapshotRestoreRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	if h.Snapshots == nil {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeInternalServerError,
		})
		return nil
	}

	payload, _, err := h.Snapshots.Load(ctx, session.SessionUUID, req.Revision)
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	state, err := grid.ParseCanonicalBytes(payload)
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	res, entries := session.LoadState(state)
	now := wire.Now()

	respond.Send(wire.SnapshotRestoreResponse{
		Type:      wire.MsgTypeSnapshotRestoreResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Revision:  res.Revision,
		StateHash: res.StateHash.Hex(),
		CellCount: len(entries),
	})

	session.Broadcast(participant, wire.SnapshotRestoreBroadcast{
		Type:            wire.MsgTypeSnapshotRestoreBroadcast,
		Timestamp:       now,
		OriginTimestamp: req.Timestamp,
		ParticipantID:   participant.ID,
		Revision:        res.Revision,
		StateHash:       res.StateHash.Hex(),
		Entries:         entries,
	})
	return nil
}

func (h *RealtimeHandler) HandleSnapshotList(ctx context.Context, respond wire.ResponseSender, msg wire.Msg) error {
	var req wire.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	if h.Snapshots == nil {
		respond.Send(wire.ErrorResponse{
			Type:      wire.MsgTypeErrorResponse,
			Timestamp: wire.Now(),
			RequestID: req.RequestID,
			Code:      wire.ErrCodeInternalServerError,
		})
		return nil
	}

	snapshots, err := h.Snapshots.List(ctx, session.SessionUUID)
	if err != nil {
		respond.Send(wire.ErrorResponseFrom(req.RequestID, err))
		return nil
	}

	respond.Send(wire.SnapshotListResponse{
		Type:      wire.MsgTypeSnapshotListResponse,
		Timestamp: wire.Now(),
		RequestID: req.RequestID,
		Snapshots: snapshots,
	})
	return nil
}

func (h *RealtimeHandler) HandleCursorUpdate(ctx context.Context, msg wire.Msg) error {
	var update wire.CursorUpdate
	if err := msg.DataTo(&update); err != nil {
		return err
	}

	participant, session, err := h.joined(msg)
	if err != nil {
		return err
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableCursorBroadcast, func() {
		session.Broadcast(participant, wire.CursorBroadcast{
			Type:            wire.MsgTypeCursorBroadcast,
			Timestamp:       wire.Now(),
			OriginTimestamp: update.Timestamp,
			ParticipantID:   participant.ID,
			Cell:            update.Cell,
		})
	})
	return nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond wire.ResponseSender, msg wire.Msg) error {
	if h.CurrentParticipant() == nil || h.CurrentSession() == nil {
		return nil
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, wire.ErrTypeMsgSkip) {
		return nil
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond wire.ResponseSender) error {
	respond.Send(wire.SyncClock{
		Type:      wire.MsgTypeSyncClock,
		Timestamp: wire.Now(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() wire.Receiver {
	return func() (wire.Msg, int, error) {
		return wire.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() wire.Sender {
	return func(msg wire.Msg) (int, error) {
		return wire.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) joined(msg wire.Msg) (*models.Participant, *models.Session, error) {
	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return nil, nil, errors.New("session not joined").
			WithType(wire.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}
	return participant, session, nil
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	participant := h.currentParticipant

	if participant == nil || session == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	now := wire.Now()

	for _, id := range participant.ObjectIDs() {
		o, ok := session.ObjectByID(id)
		if !ok || o.Persist {
			continue
		}

		res, err := session.RemoveObject(participant, id, "")
		if err != nil {
			continue
		}

		h.FeatureFlags.IfNotSet(featureflag.FlagDisableRemoveBroadcast, func() {
			session.Broadcast(participant, wire.RemoveBroadcast{
				Type:            wire.MsgTypeRemoveBroadcast,
				Timestamp:       now,
				OriginTimestamp: now,
				ParticipantID:   participant.ID,
				ObjectID:        id,
				Revision:        res.Revision,
				StateHash:       res.StateHash.Hex(),
			})
		})
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
	}
	session.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		session.Broadcast(participant, wire.ParticipantLeaveBroadcast{
			Type:            wire.MsgTypeParticipantLeaveBroadcast,
			Timestamp:       now,
			OriginTimestamp: now,
			ParticipantID:   participant.ID,
		})
	})

	if session.ParticipantCount() == 0 {
		// context.Background so the session is removed from the discovery
		// service even when the connection context is gone.
		h.Sessions.Remove(context.Background(), session)
	}

	h.currentParticipant = nil
	h.currentSession = nil
}

// objectInfos converts live session objects to their wire description.
func objectInfos(objects []*models.Object) []wire.ObjectInfo {
	infos := make([]wire.ObjectInfo, len(objects))
	for i, o := range objects {
		infos[i] = wire.ObjectInfo{
			ID:            o.ID,
			ParticipantID: o.ParticipantID,
			Persist:       o.Persist,
		}
	}
	return infos
}

// mutationErrorResponse maps ownership and compare-and-set failures onto
// their protocol codes; engine errors keep the generic mapping.
func mutationErrorResponse(requestID uint32, err error) wire.ErrorResponse {
	resp := wire.ErrorResponseFrom(requestID, err)

	switch errors.Type(err) {
	case models.ErrTypeNotOwner:
		resp.Code = wire.ErrCodeUnauthorized
	case models.ErrTypeHashMismatch:
		resp.Code = wire.ErrCodeConflict
	}
	return resp
}
