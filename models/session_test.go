package models

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

func TestSessionNewParticipantID(t *testing.T) {
	session := NewSession(42, time.Second)
	require.NotZero(t, session.NewParticipantID())
}

func TestSessionAddParticipant(t *testing.T) {
	participant := &Participant{ID: 777}
	session := NewSession(42, time.Second)

	session.AddParticipant(participant)
	require.Len(t, session.participants, 1)
	require.Equal(t, participant, session.participants[777])
}

func TestSessionRemoveParticipant(t *testing.T) {
	participant := &Participant{ID: 777}
	session := NewSession(42, time.Second)

	session.AddParticipant(participant)
	require.Len(t, session.participants, 1)

	session.RemoveParticipant(participant)
	require.Empty(t, session.participants)
}

func TestSessionGetParticipants(t *testing.T) {
	participant := &Participant{ID: 777}
	session := NewSession(42, time.Second)

	session.AddParticipant(participant)

	participants := session.GetParticipants()
	require.Len(t, participants, 1)
	require.Equal(t, participant, participants[0])
}

func TestSessionGetParticipantsByIDs(t *testing.T) {
	session := NewSession(42, time.Second)

	for i := 1; i <= 10; i++ {
		session.AddParticipant(&Participant{ID: uint32(i)})
	}

	participants := session.GetParticipantsByIDs(3, 7)
	require.Len(t, participants, 2)

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})

	require.Equal(t, uint32(3), participants[0].ID)
	require.Equal(t, uint32(7), participants[1].ID)
}

func TestSessionPlaceObject(t *testing.T) {
	t.Run("object is placed and owned", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		res, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), true, "")
		require.NoError(t, err)
		require.Equal(t, uint64(1), res.Revision)

		o, ok := session.ObjectByID("pillar-a")
		require.True(t, ok)
		require.Equal(t, uint32(1), o.ParticipantID)
		require.True(t, o.Persist)
		require.Equal(t, []grid.ObjectID{"pillar-a"}, p.ObjectIDs())
	})

	t.Run("live id is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		_, err = session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 5, Y: 5}), false, "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, grid.ErrTypeCollisionDetected))
	})

	t.Run("colliding footprint is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		_, err = session.PlaceObject(p, "wall-b", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, grid.ErrTypeCollisionDetected))
		require.Equal(t, uint64(1), session.StateResult().Revision)
	})

	t.Run("stale expected hash is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "0xstale")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeHashMismatch))
	})

	t.Run("current expected hash passes", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		current := session.StateResult().StateHash.Hex()
		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, current)
		require.NoError(t, err)
	})
}

func TestSessionRemoveObject(t *testing.T) {
	t.Run("object is removed", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		res, err := session.RemoveObject(p, "pillar-a", "")
		require.NoError(t, err)
		require.Equal(t, uint64(2), res.Revision)

		_, ok := session.ObjectByID("pillar-a")
		require.False(t, ok)
		require.Empty(t, p.ObjectIDs())
	})

	t.Run("unknown object is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.RemoveObject(p, "ghost", "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, grid.ErrTypeNotFound))
	})

	t.Run("foreign object is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		owner := newTestParticipant(1)
		other := newTestParticipant(2)
		session.AddParticipant(owner)
		session.AddParticipant(other)

		_, err := session.PlaceObject(owner, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		_, err = session.RemoveObject(other, "pillar-a", "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeNotOwner))
	})
}

func TestSessionMoveObject(t *testing.T) {
	t.Run("object is moved", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		res, err := session.MoveObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 5, Y: 5}), "")
		require.NoError(t, err)
		require.Equal(t, uint64(2), res.Revision)

		state := session.CurrentState()
		require.True(t, state.IsOccupied(grid.Cell{X: 5, Y: 5}))
		require.False(t, state.IsOccupied(grid.Cell{X: 1, Y: 1}))
	})

	t.Run("unknown object is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.MoveObject(p, "ghost", grid.NewFootprint(grid.Cell{X: 5, Y: 5}), "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, grid.ErrTypeNotFound))
	})

	t.Run("foreign object is rejected", func(t *testing.T) {
		session := NewSession(42, time.Second)
		owner := newTestParticipant(1)
		other := newTestParticipant(2)
		session.AddParticipant(owner)
		session.AddParticipant(other)

		_, err := session.PlaceObject(owner, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		_, err = session.MoveObject(other, "pillar-a", grid.NewFootprint(grid.Cell{X: 5, Y: 5}), "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeNotOwner))
	})
}

func TestSessionPlaceObjects(t *testing.T) {
	t.Run("batch lands in one revision", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		res, err := session.PlaceObjects(p, []BatchItem{
			{ID: "pillar-a", Footprint: grid.NewFootprint(grid.Cell{X: 1, Y: 1})},
			{ID: "wall-b", Footprint: grid.NewFootprint(grid.Cell{X: 2, Y: 1}, grid.Cell{X: 3, Y: 1}), Persist: true},
		}, "")
		require.NoError(t, err)
		require.Equal(t, uint64(1), res.Revision)

		stats := session.EngineStats()
		require.Equal(t, 2, stats.Objects)
		require.Equal(t, 3, stats.Cells)
		require.Equal(t, []grid.ObjectID{"pillar-a", "wall-b"}, p.ObjectIDs())
	})

	t.Run("failing batch leaves no trace", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObjects(p, []BatchItem{
			{ID: "pillar-a", Footprint: grid.NewFootprint(grid.Cell{X: 1, Y: 1})},
			{ID: "wall-b", Footprint: grid.NewFootprint(grid.Cell{X: 1, Y: 1})},
		}, "")
		require.Error(t, err)
		require.True(t, errors.IsType(err, grid.ErrTypeCollisionDetected))
		require.Equal(t, uint64(0), session.StateResult().Revision)
		require.Empty(t, p.ObjectIDs())

		_, ok := session.ObjectByID("pillar-a")
		require.False(t, ok)
	})
}

func TestSessionUndoRedo(t *testing.T) {
	t.Run("undo reverts the last commit", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(1)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)
		_, err = session.PlaceObject(p, "wall-b", grid.NewFootprint(grid.Cell{X: 2, Y: 1}), false, "")
		require.NoError(t, err)

		applied, res, entries := session.Undo()
		require.True(t, applied)
		require.Equal(t, uint64(3), res.Revision)
		require.Len(t, entries, 1)
		require.Equal(t, grid.ObjectID("pillar-a"), entries[0].Object)
	})

	t.Run("undo at origin does not apply", func(t *testing.T) {
		session := NewSession(42, time.Second)

		applied, res, entries := session.Undo()
		require.False(t, applied)
		require.Equal(t, uint64(0), res.Revision)
		require.Nil(t, entries)
	})

	t.Run("ownership survives undo and redo", func(t *testing.T) {
		session := NewSession(42, time.Second)
		p := newTestParticipant(7)
		session.AddParticipant(p)

		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), true, "")
		require.NoError(t, err)

		applied, _, _ := session.Undo()
		require.True(t, applied)
		_, ok := session.ObjectByID("pillar-a")
		require.False(t, ok)

		applied, _, entries := session.Redo()
		require.True(t, applied)
		require.Len(t, entries, 1)

		o, ok := session.ObjectByID("pillar-a")
		require.True(t, ok)
		require.Equal(t, uint32(7), o.ParticipantID)
		require.True(t, o.Persist)
	})

	t.Run("dead id may be reclaimed", func(t *testing.T) {
		session := NewSession(42, time.Second)
		first := newTestParticipant(1)
		second := newTestParticipant(2)
		session.AddParticipant(first)
		session.AddParticipant(second)

		_, err := session.PlaceObject(first, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		applied, _, _ := session.Undo()
		require.True(t, applied)

		_, err = session.PlaceObject(second, "pillar-a", grid.NewFootprint(grid.Cell{X: 3, Y: 3}), false, "")
		require.NoError(t, err)

		o, ok := session.ObjectByID("pillar-a")
		require.True(t, ok)
		require.Equal(t, uint32(2), o.ParticipantID)

		applied, _, _ = session.Redo()
		require.False(t, applied)
	})
}

func TestSessionLoadState(t *testing.T) {
	session := NewSession(42, time.Second)

	state := grid.FromCells(map[grid.Cell]grid.ObjectID{
		{X: 0, Y: 0}: "restored-a",
		{X: 1, Y: 0}: "restored-b",
	})

	res, entries := session.LoadState(state)
	require.Equal(t, uint64(1), res.Revision)
	require.Len(t, entries, 2)

	o, ok := session.ObjectByID("restored-a")
	require.True(t, ok)
	require.Zero(t, o.ParticipantID)
	require.True(t, o.Persist)
}

func TestSessionSnapshot(t *testing.T) {
	session := NewSession(42, time.Second)
	a := newTestParticipant(1)
	b := newTestParticipant(2)
	session.AddParticipant(a)
	session.AddParticipant(b)

	_, err := session.PlaceObject(a, "wall-b", grid.NewFootprint(grid.Cell{X: 2, Y: 0}), false, "")
	require.NoError(t, err)
	_, err = session.PlaceObject(b, "pillar-a", grid.NewFootprint(grid.Cell{X: 0, Y: 0}), false, "")
	require.NoError(t, err)

	res, entries, objects := session.Snapshot()
	require.Equal(t, uint64(2), res.Revision)

	require.Len(t, entries, 2)
	require.Equal(t, grid.Cell{X: 0, Y: 0}, entries[0].Cell)
	require.Equal(t, grid.Cell{X: 2, Y: 0}, entries[1].Cell)

	require.Len(t, objects, 2)
	require.Equal(t, grid.ObjectID("pillar-a"), objects[0].ID)
	require.Equal(t, grid.ObjectID("wall-b"), objects[1].ID)
}

func TestSessionModuleState(t *testing.T) {
	t.Run("module state is found", func(t *testing.T) {
		s := NewSession(42, time.Second)

		stateA := 42
		s.SetModuleState("testModule", stateA)

		stateB, ok := s.ModuleState("testModule")
		require.True(t, ok)
		require.Equal(t, stateA, stateB)
	})

	t.Run("module state is not found", func(t *testing.T) {
		s := NewSession(42, time.Second)

		state, ok := s.ModuleState("testModule")
		require.False(t, ok)
		require.Nil(t, state)
	})
}

func TestSessionBroadcast(t *testing.T) {
	t.Run("msg from participant A is broadcasted to participant B", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendACalled = true
				},
				send: func(_ any) {},
			},
		}

		var sendBCalled bool
		participantB := &Participant{
			ID: 2,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendBCalled = true
				},
				send: func(_ any) {},
			},
		}

		session := NewSession(42, time.Second)
		session.AddParticipant(participantA)
		session.AddParticipant(participantB)

		session.Broadcast(participantA, wire.ParticipantLeaveBroadcast{
			Type:          wire.MsgTypeParticipantLeaveBroadcast,
			Timestamp:     wire.Now(),
			ParticipantID: participantA.ID,
		})
		require.False(t, sendACalled)
		require.True(t, sendBCalled)
	})
}

func TestBroadcastTo(t *testing.T) {
	leaveBroadcast := func(id uint32) wire.ParticipantLeaveBroadcast {
		return wire.ParticipantLeaveBroadcast{
			Type:          wire.MsgTypeParticipantLeaveBroadcast,
			Timestamp:     wire.Now(),
			ParticipantID: id,
		}
	}

	t.Run("message is not broadcasted to sender", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendACalled = true
				},
				send: func(_ any) {},
			},
		}

		session := NewSession(42, time.Second)
		session.AddParticipant(participantA)

		session.BroadcastTo(participantA, leaveBroadcast(1), participantA.ID)
		require.False(t, sendACalled)
	})

	t.Run("message is broadcasted to participant B", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendACalled = true
				},
				send: func(_ any) {},
			},
		}

		var sendBCalled bool
		participantB := &Participant{
			ID: 2,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendBCalled = true
				},
				send: func(_ any) {},
			},
		}

		session := NewSession(42, time.Second)
		session.AddParticipant(participantA)
		session.AddParticipant(participantB)

		session.BroadcastTo(participantA, leaveBroadcast(1), participantB.ID)
		require.False(t, sendACalled)
		require.True(t, sendBCalled)
	})

	t.Run("message is broadcasted to participant B once", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendACalled = true
				},
				send: func(_ any) {},
			},
		}

		var sendBCalls int
		participantB := &Participant{
			ID: 2,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendBCalls++
				},
				send: func(_ any) {},
			},
		}

		session := NewSession(42, time.Second)
		session.AddParticipant(participantA)
		session.AddParticipant(participantB)

		session.BroadcastTo(participantA, leaveBroadcast(1),
			participantB.ID,
			participantB.ID,
			participantB.ID,
			participantB.ID,
		)
		require.False(t, sendACalled)
		require.Equal(t, 1, sendBCalls)
	})

	t.Run("message to unknown participant is skipped", func(t *testing.T) {
		var sendACalled bool
		participantA := &Participant{
			ID: 1,
			Responder: testResponseSender{
				sendMsg: func(_ wire.Msg) {
					sendACalled = true
				},
				send: func(_ any) {},
			},
		}

		session := NewSession(42, time.Second)
		session.AddParticipant(participantA)

		session.BroadcastTo(participantA, leaveBroadcast(1), 42)
		require.False(t, sendACalled)
	})
}

func TestSessionHeartbeat(t *testing.T) {
	t.Run("heartbeat is broadcast after a commit", func(t *testing.T) {
		session := NewSession(42, time.Millisecond*5)
		defer session.Close()

		beats := make(chan wire.Msg, 8)
		session.AddParticipant(&Participant{
			ID: 1,
			Responder: testResponseSender{
				send: func(_ any) {},
				sendMsg: func(msg wire.Msg) {
					if msg.TypeIs(wire.MsgTypeSyncHeartbeat) {
						select {
						case beats <- msg:
						default:
						}
					}
				},
			},
		})

		go session.StartDispatchFrames()

		p := newTestParticipant(2)
		session.AddParticipant(p)
		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		select {
		case msg := <-beats:
			var beat wire.SyncHeartbeat
			require.NoError(t, msg.DataTo(&beat))
			require.Equal(t, uint64(1), beat.Revision)
			require.NotEmpty(t, beat.StateHash)
		case <-time.After(time.Second):
			t.Fatal("no heartbeat received")
		}
	})

	t.Run("heartbeat can be disabled", func(t *testing.T) {
		session := NewSession(42, time.Millisecond*5)
		session.HeartbeatDisabled = true
		defer session.Close()

		beats := make(chan wire.Msg, 8)
		session.AddParticipant(&Participant{
			ID: 1,
			Responder: testResponseSender{
				send: func(_ any) {},
				sendMsg: func(msg wire.Msg) {
					if msg.TypeIs(wire.MsgTypeSyncHeartbeat) {
						select {
						case beats <- msg:
						default:
						}
					}
				},
			},
		})

		go session.StartDispatchFrames()

		p := newTestParticipant(2)
		session.AddParticipant(p)
		_, err := session.PlaceObject(p, "pillar-a", grid.NewFootprint(grid.Cell{X: 1, Y: 1}), false, "")
		require.NoError(t, err)

		select {
		case <-beats:
			t.Fatal("unexpected heartbeat")
		case <-time.After(time.Millisecond * 50):
		}
	})
}

func TestSessionStoreNewID(t *testing.T) {
	sessions := SessionStore{}
	require.NotZero(t, sessions.NewID())
}

func TestSessionStoreAdd(t *testing.T) {
	t.Run("session is successfully added", func(t *testing.T) {
		var sessions SessionStore

		session := NewSession(42, time.Second)

		err := sessions.Add(context.Background(), session)
		require.NoError(t, err)
		require.Equal(t, session, sessions.sessions[sessions.GlobalSessionID(session.ID)])
	})
}

func TestSessionStoreRemove(t *testing.T) {
	t.Run("session is successfully removed", func(t *testing.T) {
		var sessions SessionStore

		ctx := context.Background()

		session := NewSession(42, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)
		require.Len(t, sessions.sessions, 1)

		sessions.Remove(ctx, session)
		require.Empty(t, sessions.sessions)
	})

	t.Run("session id is reused", func(t *testing.T) {
		var sessions SessionStore

		ctx := context.Background()

		sessionID := sessions.NewID()
		session := NewSession(sessionID, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)
		require.Len(t, sessions.sessions, 1)

		sessions.Remove(ctx, session)
		require.Empty(t, sessions.sessions)

		nextSessionID := sessions.NewID()
		require.Equal(t, sessionID, nextSessionID)
	})
}

func TestSessionStoreGetByGlobalID(t *testing.T) {
	var sessions SessionStore
	ctx := context.Background()

	t.Run("session is retrieved", func(t *testing.T) {
		session := NewSession(42, time.Second)
		err := sessions.Add(ctx, session)
		require.NoError(t, err)

		res, ok := sessions.GetByGlobalID(sessions.GlobalSessionID(session.ID))
		require.True(t, ok)
		require.Equal(t, session, res)
	})

	t.Run("session is not retrieved", func(t *testing.T) {
		session := &Session{ID: 84}
		res, ok := sessions.GetByGlobalID(sessions.GlobalSessionID(session.ID))
		require.False(t, ok)
		require.Nil(t, res)
	})
}

func TestSessionStoreGlobalSessionID(t *testing.T) {
	var sessions SessionStore
	sessions.initOnce.Do(sessions.init)

	require.Equal(t, "egilx2a", sessions.GlobalSessionID(42))
}

func TestSessionHandleFrame(t *testing.T) {
	session := NewSession(42, time.Millisecond*5)

	cancel := session.HandleFrame(func() {})
	require.Len(t, session.frameHandlers, 1)
	defer cancel()

	cancel()
	require.Empty(t, session.frameHandlers)
}

func TestSessionStartDispatchFrame(t *testing.T) {
	session := NewSession(42, time.Millisecond*5)

	var wg sync.WaitGroup
	wg.Add(1)

	go session.StartDispatchFrames()

	var once sync.Once
	session.HandleFrame(func() {
		once.Do(wg.Done)
	})

	wg.Wait()
	session.Close()
}

func newTestParticipant(id uint32) *Participant {
	return &Participant{
		ID: id,
		Responder: testResponseSender{
			send:    func(_ any) {},
			sendMsg: func(_ wire.Msg) {},
		},
	}
}

type testResponseSender struct {
	send    func(any)
	sendMsg func(wire.Msg)
}

func (r testResponseSender) Send(v any) {
	r.send(v)
}

func (r testResponseSender) SendMsg(msg wire.Msg) {
	r.sendMsg(msg)
}
