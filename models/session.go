package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

const (
	// ErrTypeNotOwner is returned when a participant mutates an object
	// placed by another participant.
	ErrTypeNotOwner = "models_not_object_owner"

	// ErrTypeHashMismatch is returned when a guarded mutation names a state
	// hash that is no longer current.
	ErrTypeHashMismatch = "models_state_hash_mismatch"
)

// Session represents a building session: the authoritative grid engine, the
// objects placed on it and the participants who mutate and observe them.
type Session struct {
	ID          uint32
	SessionUUID string

	AppKey string

	// HeartbeatDisabled suppresses the periodic revision broadcast sent when
	// the grid changed since the last frame.
	HeartbeatDisabled bool

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	// stateMutex serializes engine mutations so commit order, revision
	// numbers and broadcast order agree. Objects and participant ownership
	// sets are mutated under it as well.
	stateMutex            sync.Mutex
	engine                *grid.Engine
	objects               map[grid.ObjectID]*Object
	lastHeartbeatRevision uint64

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewSession(id uint32, frameDuration time.Duration, engineOpts ...grid.EngineOption) *Session {
	return &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		participants:   make(map[uint32]*Participant),
		engine:         grid.NewEngine(engineOpts...),
		objects:        make(map[grid.ObjectID]*Object),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Session) NewParticipantID() uint32 {
	return s.participantIDs.New()
}

func (s *Session) AddParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	s.participants[p.ID] = p
}

func (s *Session) RemoveParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	delete(s.participants, p.ID)
}

func (s *Session) GetParticipants() []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	return participants
}

func (s *Session) GetParticipantsByIDs(ids ...uint32) []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(ids))
	for _, id := range ids {
		p, ok := s.participants[id]
		if ok {
			participants = append(participants, p)
		}
	}
	return participants
}

func (s *Session) ParticipantCount() int {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	return len(s.participants)
}

// StateResult reports the commit produced by a successful mutation.
type StateResult struct {
	Revision  uint64
	StateHash common.Hash
}

// PlaceObject commits a placement and registers its ownership. Object ids
// are single-use while they hold cells: re-placing a live id fails with a
// collision.
func (s *Session) PlaceObject(p *Participant, id grid.ObjectID, fp grid.Footprint, persist bool, expectedHash string) (StateResult, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if err := s.checkExpectedHash(expectedHash); err != nil {
		return StateResult{}, err
	}
	if s.isLive(id) {
		return StateResult{}, errors.New("object id is already placed").
			WithType(grid.ErrTypeCollisionDetected).
			WithTag("object_id", id)
	}
	if err := s.engine.Place(id, fp); err != nil {
		return StateResult{}, err
	}

	o := &Object{ID: id, ParticipantID: p.ID, Persist: persist}
	s.objects[id] = o
	p.AddObject(o)
	return s.result(), nil
}

// RemoveObject deletes one of p's objects from the grid. Unknown ids are an
// error at the session level even though grid removal is content-idempotent:
// the caller named an object it believes exists.
func (s *Session) RemoveObject(p *Participant, id grid.ObjectID, expectedHash string) (StateResult, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if err := s.checkExpectedHash(expectedHash); err != nil {
		return StateResult{}, err
	}
	o, err := s.ownedObject(p, id)
	if err != nil {
		return StateResult{}, err
	}

	s.engine.Remove(id)
	delete(s.objects, id)
	p.RemoveObject(o)
	return s.result(), nil
}

// MoveObject relocates one of p's objects onto a new footprint.
func (s *Session) MoveObject(p *Participant, id grid.ObjectID, fp grid.Footprint, expectedHash string) (StateResult, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if err := s.checkExpectedHash(expectedHash); err != nil {
		return StateResult{}, err
	}
	if _, err := s.ownedObject(p, id); err != nil {
		return StateResult{}, err
	}
	if err := s.engine.Move(id, fp); err != nil {
		return StateResult{}, err
	}
	return s.result(), nil
}

// BatchItem is one placement within an atomic batch.
type BatchItem struct {
	ID        grid.ObjectID
	Footprint grid.Footprint
	Persist   bool
}

// PlaceObjects commits every item in one revision, or none of them.
func (s *Session) PlaceObjects(p *Participant, items []BatchItem, expectedHash string) (StateResult, error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if err := s.checkExpectedHash(expectedHash); err != nil {
		return StateResult{}, err
	}

	placements := make([]grid.Placement, len(items))
	for i, item := range items {
		if s.isLive(item.ID) {
			return StateResult{}, errors.New("object id is already placed").
				WithType(grid.ErrTypeCollisionDetected).
				WithTag("object_id", item.ID)
		}
		placements[i] = grid.Placement{Object: item.ID, Footprint: item.Footprint}
	}
	if err := s.engine.PlaceMultiple(placements); err != nil {
		return StateResult{}, err
	}

	for _, item := range items {
		o := &Object{ID: item.ID, ParticipantID: p.ID, Persist: item.Persist}
		s.objects[item.ID] = o
		p.AddObject(o)
	}
	return s.result(), nil
}

// Undo steps the grid back one commit. It reports whether a step was taken;
// when it was, the returned entries are the full listing of the restored
// state so observers can resynchronize.
func (s *Session) Undo() (bool, StateResult, []grid.Entry) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.engine.Undo() {
		return false, s.result(), nil
	}
	return true, s.result(), s.engine.Current().Entries()
}

// Redo re-applies the last undone commit.
func (s *Session) Redo() (bool, StateResult, []grid.Entry) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.engine.Redo() {
		return false, s.result(), nil
	}
	return true, s.result(), s.engine.Current().Entries()
}

// LoadState replaces the grid with the given snapshot, dropping history.
// Objects present in the snapshot but unknown to the session are registered
// without an owner and marked persistent, since whoever placed them is not
// connected anymore.
func (s *Session) LoadState(state *grid.State) (StateResult, []grid.Entry) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	s.engine.LoadState(state)
	for _, id := range s.engine.Current().ObjectIDs() {
		if _, ok := s.objects[id]; !ok {
			s.objects[id] = &Object{ID: id, Persist: true}
		}
	}
	return s.result(), s.engine.Current().Entries()
}

// CurrentState returns the live snapshot. The snapshot itself is immutable
// and safe to read without further locking.
func (s *Session) CurrentState() *grid.State {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	return s.engine.Current()
}

// RevisionState returns the current revision together with its snapshot in
// one consistent read, for revision-keyed analysis caches.
func (s *Session) RevisionState() (uint64, *grid.State) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	return s.engine.Revision(), s.engine.Current()
}

func (s *Session) StateResult() StateResult {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	return s.result()
}

func (s *Session) EngineStats() grid.Stats {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	return s.engine.Stats()
}

// ObjectByID returns the registered object currently holding cells under id.
func (s *Session) ObjectByID(id grid.ObjectID) (*Object, bool) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.isLive(id) {
		return nil, false
	}
	o, ok := s.objects[id]
	return o, ok
}

// Objects returns every object currently holding cells, sorted by id.
func (s *Session) Objects() []*Object {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	objects := make([]*Object, 0, len(s.objects))
	for id, o := range s.objects {
		if s.isLive(id) {
			objects = append(objects, o)
		}
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID < objects[j].ID
	})
	return objects
}

// Snapshot returns the commit marker, the canonical cell listing and the
// live objects in one consistent read, for session state payloads.
func (s *Session) Snapshot() (StateResult, []grid.Entry, []*Object) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	objects := make([]*Object, 0, len(s.objects))
	for id, o := range s.objects {
		if s.isLive(id) {
			objects = append(objects, o)
		}
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID < objects[j].ID
	})
	return s.result(), s.engine.Current().Entries(), objects
}

// isLive reports whether id owns cells in the current state. Liveness is
// derived from the grid rather than tracked, so undo and redo cannot desync
// it from the registry.
func (s *Session) isLive(id grid.ObjectID) bool {
	return len(s.engine.Current().CellsOf(id)) != 0
}

func (s *Session) result() StateResult {
	return StateResult{
		Revision:  s.engine.Revision(),
		StateHash: s.engine.StableHash(),
	}
}

// checkExpectedHash guards compare-and-set mutations. An empty expectation
// always passes.
func (s *Session) checkExpectedHash(expected string) error {
	if expected == "" {
		return nil
	}
	if current := s.engine.StableHash().Hex(); current != expected {
		return errors.New("state hash expectation failed").
			WithType(ErrTypeHashMismatch).
			WithTag("expected_hash", expected).
			WithTag("current_hash", current)
	}
	return nil
}

func (s *Session) ownedObject(p *Participant, id grid.ObjectID) (*Object, error) {
	if !s.isLive(id) {
		return nil, errors.New("object not found").
			WithType(grid.ErrTypeNotFound).
			WithTag("object_id", id)
	}
	o := s.objects[id]
	if o.ParticipantID != p.ID {
		return nil, errors.New("object belongs to another participant").
			WithType(ErrTypeNotOwner).
			WithTag("object_id", id).
			WithTag("owner_id", o.ParticipantID)
	}
	return o, nil
}

func (s *Session) Broadcast(sender *Participant, v any) {
	msg, err := wire.MsgFrom(v)
	if err != nil {
		logs.WithTag("message", v).Debug(err)
		return
	}

	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	for _, p := range s.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

func (s *Session) BroadcastTo(sender *Participant, v any, participantIDs ...uint32) {
	participants := s.GetParticipantsByIDs(participantIDs...)
	isParticipantHandled := make(map[uint32]struct{}, len(participantIDs))

	msg, err := wire.MsgFrom(v)
	if err != nil {
		logs.WithTag("message", v).Debug(err)
		return
	}

	for _, p := range participants {
		if p == sender {
			continue
		}

		if _, ok := isParticipantHandled[p.ID]; ok {
			continue
		}
		isParticipantHandled[p.ID] = struct{}{}

		p.Responder.SendMsg(msg)
	}
}

func (s *Session) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Session) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

func (s *Session) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()

				s.dispatchHeartbeat()
			}
		}
	})
}

// dispatchHeartbeat broadcasts the current revision and hash when the grid
// changed since the previous frame, letting idle clients detect drift
// without polling.
func (s *Session) dispatchHeartbeat() {
	if s.HeartbeatDisabled {
		return
	}

	s.stateMutex.Lock()
	rev := s.engine.Revision()
	if rev == s.lastHeartbeatRevision {
		s.stateMutex.Unlock()
		return
	}
	s.lastHeartbeatRevision = rev
	hash := s.engine.StableHash()
	s.stateMutex.Unlock()

	s.Broadcast(nil, wire.SyncHeartbeat{
		Type:      wire.MsgTypeSyncHeartbeat,
		Timestamp: wire.Now(),
		Revision:  rev,
		StateHash: hash.Hex(),
	})
}

type SessionStore struct {
	// The session discovery service where sessions are registered.
	DiscoveryService SessionDiscoveryService

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.DiscoveryService == nil {
		s.DiscoveryService = defaultSessionDiscoveryService{}
	}
}

func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SessionStore) Add(ctx context.Context, session *Session) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[s.GlobalSessionID(session.ID)] = session

	instrumentIncreaseSessionGauge(session.AppKey)
	instrumentCountSession(session.AppKey)
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, s.GlobalSessionID(session.ID))
	session.Close()

	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge(session.AppKey)
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	return fmt.Sprintf("%sx%x", s.DiscoveryService.ServerID(), sessionID)
}

// SessionDiscoveryService is the interface to the registry that attributes
// this server its public id.
type SessionDiscoveryService interface {
	// Returns the id attributed to the current server.
	ServerID() string
}

type defaultSessionDiscoveryService struct{}

func (s defaultSessionDiscoveryService) ServerID() string {
	return "egil"
}
