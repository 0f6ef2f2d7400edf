// Package wire defines the JSON message protocol spoken between toft servers
// and clients, along with the small websocket plumbing shared by both sides.
//
// Every payload carries its own type tag so messages can be routed before
// they are fully decoded. Msg is the routed form: the type plus the raw
// encoded payload.
package wire

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// MsgType identifies a protocol message.
type MsgType string

const (
	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"
	MsgTypeSyncClock    MsgType = "sync_clock"

	MsgTypeErrorResponse MsgType = "error_response"

	MsgTypeParticipantJoinRequest    MsgType = "participant_join_request"
	MsgTypeParticipantJoinResponse   MsgType = "participant_join_response"
	MsgTypeParticipantJoinBroadcast  MsgType = "participant_join_broadcast"
	MsgTypeParticipantLeaveBroadcast MsgType = "participant_leave_broadcast"
	MsgTypeSessionState              MsgType = "session_state"
	MsgTypeSyncHeartbeat             MsgType = "sync_heartbeat"

	MsgTypeCursorUpdate    MsgType = "cursor_update"
	MsgTypeCursorBroadcast MsgType = "cursor_broadcast"

	MsgTypePlaceRequest        MsgType = "place_request"
	MsgTypePlaceResponse       MsgType = "place_response"
	MsgTypePlaceBroadcast      MsgType = "place_broadcast"
	MsgTypeRemoveRequest       MsgType = "remove_request"
	MsgTypeRemoveResponse      MsgType = "remove_response"
	MsgTypeRemoveBroadcast     MsgType = "remove_broadcast"
	MsgTypeMoveRequest         MsgType = "move_request"
	MsgTypeMoveResponse        MsgType = "move_response"
	MsgTypeMoveBroadcast       MsgType = "move_broadcast"
	MsgTypePlaceBatchRequest   MsgType = "place_batch_request"
	MsgTypePlaceBatchResponse  MsgType = "place_batch_response"
	MsgTypePlaceBatchBroadcast MsgType = "place_batch_broadcast"

	MsgTypeUndoRequest   MsgType = "undo_request"
	MsgTypeUndoResponse  MsgType = "undo_response"
	MsgTypeUndoBroadcast MsgType = "undo_broadcast"
	MsgTypeRedoRequest   MsgType = "redo_request"
	MsgTypeRedoResponse  MsgType = "redo_response"
	MsgTypeRedoBroadcast MsgType = "redo_broadcast"

	MsgTypeStateHashRequest      MsgType = "state_hash_request"
	MsgTypeStateHashResponse     MsgType = "state_hash_response"
	MsgTypeStateSnapshotRequest  MsgType = "state_snapshot_request"
	MsgTypeStateSnapshotResponse MsgType = "state_snapshot_response"
	MsgTypeStatsRequest          MsgType = "stats_request"
	MsgTypeStatsResponse         MsgType = "stats_response"

	MsgTypeCheckpointRequest  MsgType = "checkpoint_request"
	MsgTypeCheckpointResponse MsgType = "checkpoint_response"

	MsgTypeSnapshotSaveRequest      MsgType = "snapshot_save_request"
	MsgTypeSnapshotSaveResponse     MsgType = "snapshot_save_response"
	MsgTypeSnapshotRestoreRequest   MsgType = "snapshot_restore_request"
	MsgTypeSnapshotRestoreResponse  MsgType = "snapshot_restore_response"
	MsgTypeSnapshotRestoreBroadcast MsgType = "snapshot_restore_broadcast"
	MsgTypeSnapshotListRequest      MsgType = "snapshot_list_request"
	MsgTypeSnapshotListResponse     MsgType = "snapshot_list_response"

	MsgTypeRoomDetectRequest  MsgType = "room_detect_request"
	MsgTypeRoomDetectResponse MsgType = "room_detect_response"
	MsgTypeRoomAtRequest      MsgType = "room_at_request"
	MsgTypeRoomAtResponse     MsgType = "room_at_response"

	MsgTypeGraphNeighborsRequest   MsgType = "graph_neighbors_request"
	MsgTypeGraphNeighborsResponse  MsgType = "graph_neighbors_response"
	MsgTypeGraphComponentsRequest  MsgType = "graph_components_request"
	MsgTypeGraphComponentsResponse MsgType = "graph_components_response"
	MsgTypeGraphConnectedRequest   MsgType = "graph_connected_request"
	MsgTypeGraphConnectedResponse  MsgType = "graph_connected_response"
	MsgTypeGraphStatsRequest       MsgType = "graph_stats_request"
	MsgTypeGraphStatsResponse      MsgType = "graph_stats_response"

	MsgTypeAttachRequest          MsgType = "attach_request"
	MsgTypeAttachResponse         MsgType = "attach_response"
	MsgTypeAttachBroadcast        MsgType = "attach_broadcast"
	MsgTypeDetachRequest          MsgType = "detach_request"
	MsgTypeDetachResponse         MsgType = "detach_response"
	MsgTypeDetachBroadcast        MsgType = "detach_broadcast"
	MsgTypeAttachmentListRequest  MsgType = "attachment_list_request"
	MsgTypeAttachmentListResponse MsgType = "attachment_list_response"
	MsgTypeAttachmentState        MsgType = "attachment_state"

	MsgTypeTagSetRequest      MsgType = "tag_set_request"
	MsgTypeTagSetResponse     MsgType = "tag_set_response"
	MsgTypeTagSetBroadcast    MsgType = "tag_set_broadcast"
	MsgTypeTagDeleteRequest   MsgType = "tag_delete_request"
	MsgTypeTagDeleteResponse  MsgType = "tag_delete_response"
	MsgTypeTagDeleteBroadcast MsgType = "tag_delete_broadcast"
	MsgTypeTagListRequest     MsgType = "tag_list_request"
	MsgTypeTagListResponse    MsgType = "tag_list_response"
	MsgTypeTagState           MsgType = "tag_state"
)

// Msg is a routed protocol message: the type extracted from the payload and
// the payload itself, still encoded.
type Msg struct {
	Type MsgType
	Data []byte
}

// MsgFrom encodes a payload into a routable Msg. The payload must carry a
// non-empty "type" field.
func MsgFrom(v any) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message failed").Wrap(err)
	}

	var base baseMsg
	if err := json.Unmarshal(data, &base); err != nil {
		return Msg{}, errors.New("decoding message type failed").Wrap(err)
	}
	if base.Type == "" {
		return Msg{}, errors.New("message has no type")
	}

	return Msg{Type: base.Type, Data: data}, nil
}

// DataTo decodes the message payload into the given value.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeIs(types ...MsgType) bool {
	for _, t := range types {
		if m.Type == t {
			return true
		}
	}
	return false
}

// baseMsg routes otherwise unknown payloads by their type tag.
type baseMsg struct {
	Type MsgType `json:"type"`
}

// Now returns the current protocol timestamp in Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}
