package wire

import "github.com/toftlabs/toft/grid"

// Request is the generic request envelope, used when an operation needs no
// extra fields (ping, undo, state hash, ...).
type Request struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
}

// Response is the generic response envelope.
type Response struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
}

// ErrorResponse reports a failed request. Code is one of the ErrCode
// constants; Detail optionally narrows it down (e.g. the engine error kind).
type ErrorResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
	Code      string  `json:"code"`
	Detail    string  `json:"detail,omitempty"`
}

// SyncClock carries the server clock for client-side latency estimation.
type SyncClock struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

type ParticipantJoinRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Empty to create a fresh session, a global session id to join one.
	SessionID string `json:"session_id,omitempty"`
}

type ParticipantJoinResponse struct {
	Type          MsgType `json:"type"`
	Timestamp     int64   `json:"timestamp"`
	RequestID     uint32  `json:"request_id"`
	SessionID     string  `json:"session_id"`
	SessionUUID   string  `json:"session_uuid"`
	ParticipantID uint32  `json:"participant_id"`
}

type ParticipantJoinBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`
	ParticipantID   uint32  `json:"participant_id"`
}

type ParticipantLeaveBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`
	ParticipantID   uint32  `json:"participant_id"`
}

// ObjectInfo describes a placed object and its ownership.
type ObjectInfo struct {
	ID            grid.ObjectID `json:"id"`
	ParticipantID uint32        `json:"participant_id"`
	Persist       bool          `json:"persist,omitempty"`
}

// SessionState is sent to a participant right after joining: the full grid
// content plus ownership, so the client can render without further requests.
type SessionState struct {
	Type         MsgType      `json:"type"`
	Timestamp    int64        `json:"timestamp"`
	Participants []uint32     `json:"participants"`
	Revision     uint64       `json:"revision"`
	StateHash    string       `json:"state_hash"`
	Entries      []grid.Entry `json:"entries"`
	Objects      []ObjectInfo `json:"objects"`
}

// SyncHeartbeat is broadcast on session frames whose revision advanced, so
// idle clients can detect divergence cheaply.
type SyncHeartbeat struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

// CursorUpdate streams the cell a participant is pointing at. Unacknowledged
// and frame-coalesced: only the latest one per frame survives.
type CursorUpdate struct {
	Type      MsgType   `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Cell      grid.Cell `json:"cell"`
}

type CursorBroadcast struct {
	Type            MsgType   `json:"type"`
	Timestamp       int64     `json:"timestamp"`
	OriginTimestamp int64     `json:"origin_timestamp"`
	ParticipantID   uint32    `json:"participant_id"`
	Cell            grid.Cell `json:"cell"`
}

type PlaceRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Empty to let the server assign an id.
	ObjectID grid.ObjectID `json:"object_id,omitempty"`
	Cells    []grid.Cell   `json:"cells"`
	Persist  bool          `json:"persist,omitempty"`

	// When set, the request only applies if the current state hash matches.
	ExpectedHash string `json:"expected_hash,omitempty"`
}

type PlaceResponse struct {
	Type      MsgType       `json:"type"`
	Timestamp int64         `json:"timestamp"`
	RequestID uint32        `json:"request_id"`
	ObjectID  grid.ObjectID `json:"object_id"`
	Revision  uint64        `json:"revision"`
	StateHash string        `json:"state_hash"`
}

type PlaceBroadcast struct {
	Type            MsgType       `json:"type"`
	Timestamp       int64         `json:"timestamp"`
	OriginTimestamp int64         `json:"origin_timestamp"`
	ParticipantID   uint32        `json:"participant_id"`
	ObjectID        grid.ObjectID `json:"object_id"`
	Cells           []grid.Cell   `json:"cells"`
	Revision        uint64        `json:"revision"`
	StateHash       string        `json:"state_hash"`
}

type RemoveRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ObjectID     grid.ObjectID `json:"object_id"`
	ExpectedHash string        `json:"expected_hash,omitempty"`
}

type RemoveResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

type RemoveBroadcast struct {
	Type            MsgType       `json:"type"`
	Timestamp       int64         `json:"timestamp"`
	OriginTimestamp int64         `json:"origin_timestamp"`
	ParticipantID   uint32        `json:"participant_id"`
	ObjectID        grid.ObjectID `json:"object_id"`
	Revision        uint64        `json:"revision"`
	StateHash       string        `json:"state_hash"`
}

type MoveRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ObjectID     grid.ObjectID `json:"object_id"`
	Cells        []grid.Cell   `json:"cells"`
	ExpectedHash string        `json:"expected_hash,omitempty"`
}

type MoveResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

type MoveBroadcast struct {
	Type            MsgType       `json:"type"`
	Timestamp       int64         `json:"timestamp"`
	OriginTimestamp int64         `json:"origin_timestamp"`
	ParticipantID   uint32        `json:"participant_id"`
	ObjectID        grid.ObjectID `json:"object_id"`
	Cells           []grid.Cell   `json:"cells"`
	Revision        uint64        `json:"revision"`
	StateHash       string        `json:"state_hash"`
}

// BatchPlacement is one step of an atomic batch.
type BatchPlacement struct {
	ObjectID grid.ObjectID `json:"object_id,omitempty"`
	Cells    []grid.Cell   `json:"cells"`
	Persist  bool          `json:"persist,omitempty"`
}

type PlaceBatchRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	Placements   []BatchPlacement `json:"placements"`
	ExpectedHash string           `json:"expected_hash,omitempty"`
}

type PlaceBatchResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Object ids in placement order, including server-assigned ones.
	ObjectIDs []grid.ObjectID `json:"object_ids"`
	Revision  uint64          `json:"revision"`
	StateHash string          `json:"state_hash"`
}

type PlaceBatchBroadcast struct {
	Type            MsgType          `json:"type"`
	Timestamp       int64            `json:"timestamp"`
	OriginTimestamp int64            `json:"origin_timestamp"`
	ParticipantID   uint32           `json:"participant_id"`
	Placements      []BatchPlacement `json:"placements"`
	Revision        uint64           `json:"revision"`
	StateHash       string           `json:"state_hash"`
}

// UndoResponse reports whether a step was undone. Applied is false at the
// history origin; that is not an error.
type UndoResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Applied   bool    `json:"applied"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

type UndoBroadcast struct {
	Type            MsgType      `json:"type"`
	Timestamp       int64        `json:"timestamp"`
	OriginTimestamp int64        `json:"origin_timestamp"`
	ParticipantID   uint32       `json:"participant_id"`
	Revision        uint64       `json:"revision"`
	StateHash       string       `json:"state_hash"`
	Entries         []grid.Entry `json:"entries"`
}

type RedoResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Applied   bool    `json:"applied"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

type RedoBroadcast struct {
	Type            MsgType      `json:"type"`
	Timestamp       int64        `json:"timestamp"`
	OriginTimestamp int64        `json:"origin_timestamp"`
	ParticipantID   uint32       `json:"participant_id"`
	Revision        uint64       `json:"revision"`
	StateHash       string       `json:"state_hash"`
	Entries         []grid.Entry `json:"entries"`
}

type StateHashResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
}

type StateSnapshotResponse struct {
	Type      MsgType      `json:"type"`
	Timestamp int64        `json:"timestamp"`
	RequestID uint32       `json:"request_id"`
	Revision  uint64       `json:"revision"`
	StateHash string       `json:"state_hash"`
	Entries   []grid.Entry `json:"entries"`
}

type StatsResponse struct {
	Type      MsgType    `json:"type"`
	Timestamp int64      `json:"timestamp"`
	RequestID uint32     `json:"request_id"`
	Stats     grid.Stats `json:"stats"`
}

// SignedCheckpoint attests a session state: the server signs the Keccak-256
// hash of (session id, revision, state hash, timestamp) with its ECDSA key.
type SignedCheckpoint struct {
	SessionID string `json:"session_id"`
	Revision  uint64 `json:"revision"`
	StateHash string `json:"state_hash"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

type CheckpointResponse struct {
	Type       MsgType          `json:"type"`
	Timestamp  int64            `json:"timestamp"`
	RequestID  uint32           `json:"request_id"`
	Checkpoint SignedCheckpoint `json:"checkpoint"`
}

type SnapshotSaveResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
	Size      int     `json:"size"`
}

type SnapshotRestoreRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Zero restores the latest snapshot.
	Revision uint64 `json:"revision,omitempty"`
}

type SnapshotRestoreResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Revision  uint64  `json:"revision"`
	StateHash string  `json:"state_hash"`
	CellCount int     `json:"cell_count"`
}

type SnapshotRestoreBroadcast struct {
	Type            MsgType      `json:"type"`
	Timestamp       int64        `json:"timestamp"`
	OriginTimestamp int64        `json:"origin_timestamp"`
	ParticipantID   uint32       `json:"participant_id"`
	Revision        uint64       `json:"revision"`
	StateHash       string       `json:"state_hash"`
	Entries         []grid.Entry `json:"entries"`
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	Revision  uint64 `json:"revision"`
	StateHash string `json:"state_hash"`
	TakenAt   int64  `json:"taken_at"`
	Size      int    `json:"size"`
}

type SnapshotListResponse struct {
	Type      MsgType        `json:"type"`
	Timestamp int64          `json:"timestamp"`
	RequestID uint32         `json:"request_id"`
	Snapshots []SnapshotInfo `json:"snapshots"`
}

type RoomDetectRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ZLevel                  int        `json:"z_level,omitempty"`
	Bounds                  *grid.Rect `json:"bounds,omitempty"`
	MinSize                 int        `json:"min_size,omitempty"`
	ExcludeBoundaryTouching bool       `json:"exclude_boundary_touching,omitempty"`
}

type RoomDetectResponse struct {
	Type      MsgType        `json:"type"`
	Timestamp int64          `json:"timestamp"`
	RequestID uint32         `json:"request_id"`
	Rooms     [][]grid.Cell  `json:"rooms"`
	Stats     grid.RoomStats `json:"stats"`
}

type RoomAtRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	Cell                    grid.Cell  `json:"cell"`
	Bounds                  *grid.Rect `json:"bounds,omitempty"`
	MinSize                 int        `json:"min_size,omitempty"`
	ExcludeBoundaryTouching bool       `json:"exclude_boundary_touching,omitempty"`
}

type RoomAtResponse struct {
	Type      MsgType     `json:"type"`
	Timestamp int64       `json:"timestamp"`
	RequestID uint32      `json:"request_id"`
	Found     bool        `json:"found"`
	Room      []grid.Cell `json:"room,omitempty"`
}

type GraphNeighborsRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ObjectID grid.ObjectID `json:"object_id"`
}

type GraphNeighborsResponse struct {
	Type      MsgType         `json:"type"`
	Timestamp int64           `json:"timestamp"`
	RequestID uint32          `json:"request_id"`
	Neighbors []grid.ObjectID `json:"neighbors"`
	Degree    int             `json:"degree"`
}

type GraphComponentsResponse struct {
	Type       MsgType           `json:"type"`
	Timestamp  int64             `json:"timestamp"`
	RequestID  uint32            `json:"request_id"`
	Components [][]grid.ObjectID `json:"components"`
}

type GraphConnectedRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ObjectA grid.ObjectID `json:"object_a"`
	ObjectB grid.ObjectID `json:"object_b"`
}

type GraphConnectedResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Connected bool    `json:"connected"`
}

type GraphStatsResponse struct {
	Type      MsgType         `json:"type"`
	Timestamp int64           `json:"timestamp"`
	RequestID uint32          `json:"request_id"`
	Stats     grid.GraphStats `json:"stats"`
}

// Attachment is child content carved into a parent object's footprint, e.g.
// a window in a wall. The content id stays opaque to the server.
type Attachment struct {
	ID            string        `json:"id"`
	ParentID      grid.ObjectID `json:"parent_id"`
	ContentID     string        `json:"content_id"`
	Cells         []grid.Cell   `json:"cells"`
	ParticipantID uint32        `json:"participant_id"`
}

type AttachRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ParentID  grid.ObjectID `json:"parent_id"`
	ContentID string        `json:"content_id"`
	Cells     []grid.Cell   `json:"cells"`
}

type AttachResponse struct {
	Type         MsgType `json:"type"`
	Timestamp    int64   `json:"timestamp"`
	RequestID    uint32  `json:"request_id"`
	AttachmentID string  `json:"attachment_id"`
}

type AttachBroadcast struct {
	Type            MsgType    `json:"type"`
	Timestamp       int64      `json:"timestamp"`
	OriginTimestamp int64      `json:"origin_timestamp"`
	Attachment      Attachment `json:"attachment"`
}

type DetachRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	AttachmentID string `json:"attachment_id"`
}

type DetachResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
}

type DetachBroadcast struct {
	Type            MsgType       `json:"type"`
	Timestamp       int64         `json:"timestamp"`
	OriginTimestamp int64         `json:"origin_timestamp"`
	AttachmentID    string        `json:"attachment_id"`
	ParentID        grid.ObjectID `json:"parent_id"`
}

type AttachmentListRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Empty lists all attachments in the session.
	ParentID grid.ObjectID `json:"parent_id,omitempty"`
}

type AttachmentListResponse struct {
	Type        MsgType      `json:"type"`
	Timestamp   int64        `json:"timestamp"`
	RequestID   uint32       `json:"request_id"`
	Attachments []Attachment `json:"attachments"`
}

type AttachmentState struct {
	Type        MsgType      `json:"type"`
	Timestamp   int64        `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
}

// Tag is a string key/value attached to a placed object. SetAt orders
// concurrent writers: stale writes lose.
type Tag struct {
	ObjectID grid.ObjectID `json:"object_id"`
	Key      string        `json:"key"`
	Value    string        `json:"value"`
	SetAt    int64         `json:"set_at"`
}

type TagSetRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	Tag Tag `json:"tag"`
}

type TagSetResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
}

type TagSetBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`
	Tag             Tag     `json:"tag"`
}

type TagDeleteRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	ObjectID grid.ObjectID `json:"object_id"`
	Key      string        `json:"key"`
	SetAt    int64         `json:"set_at"`
}

type TagDeleteResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
}

type TagDeleteBroadcast struct {
	Type            MsgType       `json:"type"`
	Timestamp       int64         `json:"timestamp"`
	OriginTimestamp int64         `json:"origin_timestamp"`
	ObjectID        grid.ObjectID `json:"object_id"`
	Key             string        `json:"key"`
}

type TagListRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`

	// Empty lists tags for all objects.
	ObjectID grid.ObjectID `json:"object_id,omitempty"`
}

type TagListResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id"`
	Tags      []Tag   `json:"tags"`
}

type TagState struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Tags      []Tag   `json:"tags"`
}
