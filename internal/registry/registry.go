// Package registry tracks which room members are currently reachable over a
// live real-time channel. It is purely in-memory and rebuilds itself from
// nothing as clients reconnect; durable membership lives in the room store.
package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
)

// Sender is the send side of one client's real-time channel. The websocket
// layer adapts gorilla connections to it; tests inject fakes.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Close()
}

// Conn is one live connection. Fields are exported for memdb's field
// indexers.
type Conn struct {
	Code        string
	UserID      string
	Handle      Sender
	ConnectedAt time.Time
}

// Registry indexes live connections by room code. Backed by go-memdb: reads
// (broadcast iteration) run on lock-free MVCC snapshots, so fan-out in one
// room never contends with fan-out or registration in another.
type Registry struct {
	db          *memdb.MemDB
	sendTimeout time.Duration
	dropped     atomic.Int64
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"connection": {
				Name: "connection",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Code"},
								&memdb.StringFieldIndex{Field: "UserID"},
							},
						},
					},
					"room": {
						Name:    "room",
						Indexer: &memdb.StringFieldIndex{Field: "Code"},
					},
				},
			},
		},
	}
}

func New(sendTimeout time.Duration) *Registry {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		// The schema is static; this only fires on a programming error.
		panic(err)
	}
	return &Registry{db: db, sendTimeout: sendTimeout}
}

// Register adds a connection for (code, user). A prior live connection for
// the same pair is closed and replaced, so no client ever receives an event
// twice through two channels.
func (r *Registry) Register(code string, userID uuid.UUID, handle Sender) {
	conn := &Conn{
		Code:        code,
		UserID:      userID.String(),
		Handle:      handle,
		ConnectedAt: time.Now(),
	}

	txn := r.db.Txn(true)
	raw, err := txn.First("connection", "id", code, conn.UserID)
	if err == nil && raw != nil {
		prior := raw.(*Conn)
		prior.Handle.Close()
		_ = txn.Delete("connection", prior)
		log.Debug().Str("code", code).Str("user", conn.UserID).Msg("evicted prior connection")
	}
	if err := txn.Insert("connection", conn); err != nil {
		txn.Abort()
		log.Error().Err(err).Str("code", code).Msg("register failed")
		return
	}
	txn.Commit()
}

// Unregister removes the connection for (code, user). No-op if absent or if
// the registered handle is not the one given (a newer connection already
// replaced it).
func (r *Registry) Unregister(code string, userID uuid.UUID, handle Sender) {
	txn := r.db.Txn(true)
	raw, err := txn.First("connection", "id", code, userID.String())
	if err != nil || raw == nil {
		txn.Abort()
		return
	}
	conn := raw.(*Conn)
	if handle != nil && conn.Handle != handle {
		txn.Abort()
		return
	}
	_ = txn.Delete("connection", conn)
	txn.Commit()
}

// Broadcast delivers payload to every connection in the room except
// excludeUser (uuid.Nil excludes nobody). Deliveries run in parallel, each
// bounded by the send timeout; a failed send evicts that connection and
// never blocks or aborts delivery to the rest.
func (r *Registry) Broadcast(code string, payload []byte, excludeUser uuid.UUID) {
	conns := r.roomConns(code)
	if len(conns) == 0 {
		return
	}

	exclude := ""
	if excludeUser != uuid.Nil {
		exclude = excludeUser.String()
	}

	iter.ForEach(conns, func(c **Conn) {
		conn := *c
		if conn.UserID == exclude {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
		defer cancel()
		if err := conn.Handle.Send(ctx, payload); err != nil {
			log.Debug().Err(err).Str("code", code).Str("user", conn.UserID).
				Msg("send failed, dropping connection")
			r.dropped.Add(1)
			conn.Handle.Close()
			r.Unregister(code, uuid.MustParse(conn.UserID), conn.Handle)
		}
	})
}

// SendTo delivers payload to one member's connection, if reachable.
func (r *Registry) SendTo(code string, userID uuid.UUID, payload []byte) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First("connection", "id", code, userID.String())
	if err != nil || raw == nil {
		return
	}
	conn := raw.(*Conn)
	ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
	defer cancel()
	if err := conn.Handle.Send(ctx, payload); err != nil {
		conn.Handle.Close()
		r.Unregister(code, userID, conn.Handle)
	}
}

// RoomSize reports how many connections a room currently has. Diagnostics
// only; capacity checks run against durable membership.
func (r *Registry) RoomSize(code string) int {
	return len(r.roomConns(code))
}

// Connected reports whether userID has a live connection in the room.
func (r *Registry) Connected(code string, userID uuid.UUID) bool {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First("connection", "id", code, userID.String())
	return err == nil && raw != nil
}

// DroppedCount reports connections evicted due to failed sends, for
// diagnostics.
func (r *Registry) DroppedCount() int64 {
	return r.dropped.Load()
}

func (r *Registry) roomConns(code string) []*Conn {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get("connection", "room", code)
	if err != nil {
		return nil
	}
	var conns []*Conn
	for raw := it.Next(); raw != nil; raw = it.Next() {
		conns = append(conns, raw.(*Conn))
	}
	return conns
}
