package featureflag

type Flag string

const (
	FlagDisableSessionState              Flag = "DISABLE_SESSION_STATE"
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisablePlaceBroadcast            Flag = "DISABLE_PLACE_BROADCAST"
	FlagDisableRemoveBroadcast           Flag = "DISABLE_REMOVE_BROADCAST"
	FlagDisableMoveBroadcast             Flag = "DISABLE_MOVE_BROADCAST"
	FlagDisablePlaceBatchBroadcast       Flag = "DISABLE_PLACE_BATCH_BROADCAST"
	FlagDisableUndoBroadcast             Flag = "DISABLE_UNDO_BROADCAST"
	FlagDisableCursorBroadcast           Flag = "DISABLE_CURSOR_BROADCAST"
	FlagDisableSyncHeartbeat             Flag = "DISABLE_SYNC_HEARTBEAT"
	FlagDisableAnalysisCache             Flag = "DISABLE_ANALYSIS_CACHE"
)
