// Package rooms is the room state machine: the single writer that turns
// client intents into validated store mutations plus exactly one broadcast
// per successful transition.
package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"eigencore-server/internal/registry"
	"eigencore-server/internal/store"
)

type Service struct {
	store *store.RoomStore
	reg   *registry.Registry

	gracePeriod   time.Duration
	sweepInterval time.Duration

	mu    sync.Mutex
	rooms map[string]*roomState
}

// roomState is the in-memory side of one active room: its serialization
// lock, its event sequence and the host-liveness clock for the sweeper.
type roomState struct {
	mu  sync.Mutex
	seq uint64
	// hostGoneSince is nonzero while the host has no live connection; the
	// sweeper closes waiting rooms whose clock exceeds the grace period.
	hostGoneSince time.Time
}

func NewService(st *store.RoomStore, reg *registry.Registry, gracePeriod, sweepInterval time.Duration) *Service {
	return &Service{
		store:         st,
		reg:           reg,
		gracePeriod:   gracePeriod,
		sweepInterval: sweepInterval,
		rooms:         make(map[string]*roomState),
	}
}

// Create makes a new room with the caller as host. Any active room the
// caller already belongs to is left first.
func (s *Service) Create(ctx context.Context, hostUserID uuid.UUID, gameID string, maxPlayers int, settings []byte) (store.Snapshot, error) {
	s.leavePrior(ctx, hostUserID, "")

	snap, err := s.store.CreateRoom(ctx, hostUserID, gameID, maxPlayers, settings)
	if err != nil {
		return store.Snapshot{}, err
	}

	rs := s.ensure(snap.Code)
	rs.mu.Lock()
	// The host has not opened a channel yet; start the grace clock so an
	// abandoned room is still reclaimed.
	rs.hostGoneSince = time.Now()
	s.emitLocked(rs, snap.Code, EventRoomUpdate, &snap, uuid.Nil, nil)
	rs.mu.Unlock()

	return snap, nil
}

// Join adds the caller to the room as a guest. Idempotent for members;
// leaves any other active room first.
func (s *Service) Join(ctx context.Context, code string, userID uuid.UUID) (store.Snapshot, error) {
	s.leavePrior(ctx, userID, normalize(code))

	rs := s.ensure(code)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	snap, joined, err := s.store.JoinRoom(ctx, code, userID)
	if err != nil {
		s.dropIfGone(code, err)
		return store.Snapshot{}, err
	}
	if joined {
		s.emitLocked(rs, snap.Code, EventRoomUpdate, &snap, uuid.Nil, nil)
	}
	return snap, nil
}

// Start transitions the room to in_progress. Host only.
func (s *Service) Start(ctx context.Context, code string, userID uuid.UUID) (store.Snapshot, error) {
	rs := s.ensure(code)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	snap, err := s.store.StartRoom(ctx, code, userID)
	if err != nil {
		s.dropIfGone(code, err)
		return store.Snapshot{}, err
	}
	s.emitLocked(rs, snap.Code, EventGameStarted, &snap, uuid.Nil, nil)
	return snap, nil
}

// Leave removes the caller from the room. A host leaving closes the room.
func (s *Service) Leave(ctx context.Context, code string, userID uuid.UUID) (store.Snapshot, bool, error) {
	rs := s.ensure(code)
	rs.mu.Lock()

	snap, closed, err := s.store.LeaveRoom(ctx, code, userID)
	if err != nil {
		rs.mu.Unlock()
		s.dropIfGone(code, err)
		return store.Snapshot{}, false, err
	}
	if closed {
		s.emitLocked(rs, snap.Code, EventRoomClosed, &snap, uuid.Nil, nil)
	} else {
		s.emitLocked(rs, snap.Code, EventRoomUpdate, &snap, uuid.Nil, nil)
	}
	rs.mu.Unlock()

	if closed {
		s.forget(snap.Code)
	}
	return snap, closed, nil
}

// Close transitions the room to closed. Idempotent.
func (s *Service) Close(ctx context.Context, code string) error {
	rs := s.ensure(code)
	rs.mu.Lock()

	snap, transitioned, err := s.store.CloseRoom(ctx, code)
	if err != nil {
		rs.mu.Unlock()
		s.dropIfGone(code, err)
		return err
	}
	if transitioned {
		s.emitLocked(rs, snap.Code, EventRoomClosed, &snap, uuid.Nil, nil)
	}
	rs.mu.Unlock()

	s.forget(snap.Code)
	return nil
}

// Get returns the room snapshot. Read-only, no event.
func (s *Service) Get(ctx context.Context, code string) (store.Snapshot, error) {
	return s.store.GetRoom(ctx, code)
}

// IsMember reports durable membership, the admission check for the
// real-time channel.
func (s *Service) IsMember(ctx context.Context, code string, userID uuid.UUID) (bool, error) {
	return s.store.IsMember(ctx, code, userID)
}

// Relay fans a member's opaque game-sync payload out to the rest of the
// room. The server never looks inside data.
func (s *Service) Relay(code string, fromUserID uuid.UUID, data json.RawMessage) {
	rs := s.ensure(code)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	s.emitLocked(rs, code, EventMessage, nil, fromUserID, data)
}

// Sync pushes the current room snapshot to one member's channel so a fresh
// connection starts from a known sequence point instead of waiting for the
// next transition.
func (s *Service) Sync(ctx context.Context, code string, userID uuid.UUID) error {
	code = normalize(code)
	snap, err := s.store.GetRoom(ctx, code)
	if err != nil {
		s.dropIfGone(code, err)
		return err
	}

	rs := s.ensure(code)
	rs.mu.Lock()
	payload, err := json.Marshal(Event{Type: EventRoomUpdate, Seq: rs.seq, Room: &snap})
	rs.mu.Unlock()
	if err != nil {
		return err
	}
	s.reg.SendTo(code, userID, payload)
	return nil
}

// HostConnected and HostDisconnected keep the grace clock in step with the
// host's real-time channel. Guest channels never touch room state. Both are
// no-ops for codes without in-memory state so a late disconnect after room
// close cannot resurrect an entry.
func (s *Service) HostConnected(code string) {
	rs, ok := s.lookup(code)
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.hostGoneSince = time.Time{}
	rs.mu.Unlock()
}

func (s *Service) HostDisconnected(code string) {
	rs, ok := s.lookup(code)
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.hostGoneSince = time.Now()
	rs.mu.Unlock()
}

// RunSweeper closes waiting rooms whose host has been unreachable longer
// than the grace period. Blocks until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single host-grace pass. Exported so tests can trigger it
// without waiting for the ticker.
func (s *Service) SweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.gracePeriod)
	codes, err := s.store.StaleWaitingRooms(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("sweep: listing stale rooms failed")
		return
	}

	for _, code := range codes {
		snap, err := s.store.GetRoom(ctx, code)
		if err != nil {
			continue
		}
		if s.reg.Connected(code, snap.HostUserID) {
			s.HostConnected(code)
			continue
		}

		rs := s.ensure(code)
		rs.mu.Lock()
		gone := rs.hostGoneSince
		rs.mu.Unlock()
		if gone.IsZero() {
			// Host liveness unknown (e.g. after a restart); start the
			// clock now rather than closing instantly.
			s.HostDisconnected(code)
			continue
		}
		if time.Since(gone) < s.gracePeriod {
			continue
		}

		log.Info().Str("code", code).Msg("sweep: closing host-abandoned room")
		if err := s.Close(ctx, code); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("sweep: close failed")
		}
	}
}

// emitLocked assigns the next sequence number and broadcasts one event.
// Callers hold the room lock, which is what makes seq strictly increasing
// per room.
func (s *Service) emitLocked(rs *roomState, code, eventType string, snap *store.Snapshot, from uuid.UUID, data json.RawMessage) {
	rs.seq++
	ev := Event{Type: eventType, Seq: rs.seq, Room: snap, Data: data}
	if from != uuid.Nil {
		ev.From = from.String()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("event marshal failed")
		return
	}
	s.reg.Broadcast(code, payload, from)
}

// ensure returns the in-memory state for a code, creating it on first
// touch. Codes are normalized here so "abc" and "ABC" share one lock.
func (s *Service) ensure(code string) *roomState {
	code = normalize(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[code]
	if !ok {
		rs = &roomState{}
		s.rooms[code] = rs
	}
	return rs
}

// lookup returns the in-memory state for a code without creating it.
func (s *Service) lookup(code string) (*roomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[normalize(code)]
	return rs, ok
}

func (s *Service) forget(code string) {
	s.mu.Lock()
	delete(s.rooms, normalize(code))
	s.mu.Unlock()
}

// dropIfGone releases the in-memory entry that ensure created when the store
// reports no such active room, so probing bogus codes cannot grow s.rooms.
func (s *Service) dropIfGone(code string, err error) {
	if errors.Is(err, store.ErrRoomNotFound) {
		s.forget(code)
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// leavePrior drops the caller out of any active room other than keep, so a
// user never holds two active memberships.
func (s *Service) leavePrior(ctx context.Context, userID uuid.UUID, keep string) {
	prior, err := s.store.ActiveRoomCodeOf(ctx, userID)
	if err != nil || prior == "" || prior == keep {
		return
	}
	if _, _, err := s.Leave(ctx, prior, userID); err != nil {
		log.Warn().Err(err).Str("code", prior).Msg("implicit leave failed")
	}
}
