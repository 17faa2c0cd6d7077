// Package session keeps the server-side bookkeeping for live connections:
// the transport channel of every connection, its authentication session and
// the bidirectional connection/account mapping.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/secure"
	"github.com/dtroode/srplogin/internal/srp"
)

var (
	ErrUnknownConnection   = errors.New("session: unknown connection")
	ErrAlreadyBootstrapped = errors.New("session: encryption already attached")
	ErrAccountInUse        = errors.New("session: account in use on another connection")
	ErrPhase               = errors.New("session: account cannot be started in current phase")
)

// AuthSession is the SRP state of one connection.
type AuthSession struct {
	AccountName  string
	ClientPublic []byte
	Salt         []byte
	Verifier     []byte
	AccessLevel  model.AccessLevel
	Server       srp.Ephemeral
	Session      srp.Session
}

func (a *AuthSession) wipe() {
	a.Server.Wipe()
	a.Session.Wipe()
	secure.Wipe(a.Verifier)
	a.Verifier = nil
}

// Ended describes a connection removed from the store.
type Ended struct {
	Connection       model.ConnectionHandle
	AccountName      string
	WasAuthenticated bool

	disconnect func()
}

// Found reports whether anything was removed.
func (e Ended) Found() bool {
	return !e.Connection.IsZero()
}

// Disconnect closes the removed connection's transport, if it had one.
func (e Ended) Disconnect() {
	if e.disconnect != nil {
		e.disconnect()
	}
}

// entry is one connection. mu serializes operations on the connection and
// guards channel and auth; the remaining fields are guarded by Store.mu and
// written only while holding both locks.
type entry struct {
	mu         sync.Mutex
	channel    *secure.Channel
	auth       *AuthSession
	disconnect func()

	account string
	phase   model.Phase
	since   time.Time
	ended   bool
}

// Store is the connection session store. Store.mu is never held while
// acquiring an entry lock.
type Store struct {
	mu            sync.Mutex
	byConn        map[model.ConnectionHandle]*entry
	byAccount     map[string]model.ConnectionHandle
	authenticated int
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byConn:    make(map[model.ConnectionHandle]*entry),
		byAccount: make(map[string]model.ConnectionHandle),
		now:       time.Now,
	}
}

func (s *Store) get(conn model.ConnectionHandle) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byConn[conn]
}

// Open registers a freshly connected peer. disconnect is invoked when the
// store force-ends the connection and must not block.
func (s *Store) Open(conn model.ConnectionHandle, disconnect func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byConn[conn]; ok {
		return ErrAlreadyBootstrapped
	}
	s.byConn[conn] = &entry{
		disconnect: disconnect,
		since:      s.now(),
	}
	return nil
}

// AttachEncryption stores the transport channel of conn. A connection is
// bootstrapped exactly once.
func (s *Store) AttachEncryption(conn model.ConnectionHandle, ch *secure.Channel) error {
	e := s.get(conn)
	if e == nil {
		return ErrUnknownConnection
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel != nil {
		return ErrAlreadyBootstrapped
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ended {
		return ErrUnknownConnection
	}
	e.channel = ch
	return nil
}

// Encryption returns the transport channel of conn.
func (s *Store) Encryption(conn model.ConnectionHandle) (*secure.Channel, bool) {
	e := s.get(conn)
	if e == nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.channel == nil {
		return nil, false
	}
	return e.channel, true
}

// BeginAccount installs auth as the session of conn and moves it to
// PhaseAwaitingVerify. A connection begins an account at most once; later
// calls return ErrPhase. The account is mapped to the most recent connection
// that began it. ErrAccountInUse is returned only when the account is
// authenticated on another connection; competing handshakes are settled by
// the authenticating TryAdvance.
func (s *Store) BeginAccount(conn model.ConnectionHandle, auth AuthSession) error {
	e := s.get(conn)
	if e == nil {
		return ErrUnknownConnection
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.mapAccount(conn, e, auth.AccountName); err != nil {
		return err
	}
	e.auth = &auth
	return nil
}

func (s *Store) mapAccount(conn model.ConnectionHandle, e *entry, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ended {
		return ErrUnknownConnection
	}
	if e.phase != model.PhaseNone {
		return ErrPhase
	}
	if s.authenticatedElsewhere(conn, name) {
		return ErrAccountInUse
	}

	s.byAccount[name] = conn
	e.account = name
	e.phase = model.PhaseAwaitingVerify
	e.since = s.now()
	return nil
}

// authenticatedElsewhere reports whether name is authenticated on a
// connection other than conn. Callers hold s.mu.
func (s *Store) authenticatedElsewhere(conn model.ConnectionHandle, name string) bool {
	other, ok := s.byAccount[name]
	if !ok || other == conn {
		return false
	}
	oe := s.byConn[other]
	return oe != nil && oe.phase == model.PhaseAuthenticated
}

// TryAdvance moves conn from required to next and runs onSuccess while the
// connection is locked. Only adjacent transitions are accepted. Advancing to
// PhaseAuthenticated fails, leaving the phase unchanged, while the account is
// authenticated on another connection; on success the account is mapped
// back to conn. If onSuccess returns false the session becomes
// PhaseRejected. TryAdvance is atomic with respect to EndConnection.
func (s *Store) TryAdvance(conn model.ConnectionHandle, required, next model.Phase, onSuccess func(*AuthSession) bool) bool {
	if required.Next() != next || next == model.PhaseRejected {
		return false
	}

	e := s.get(conn)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !s.commit(conn, e, required, next) {
		return false
	}

	if onSuccess != nil && !onSuccess(e.auth) {
		s.reject(e)
		return false
	}
	return true
}

func (s *Store) commit(conn model.ConnectionHandle, e *entry, required, next model.Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ended || e.auth == nil || e.phase != required {
		return false
	}
	if next == model.PhaseAuthenticated {
		if s.authenticatedElsewhere(conn, e.account) {
			return false
		}
		s.byAccount[e.account] = conn
		s.authenticated++
	}

	e.phase = next
	e.since = s.now()
	return true
}

func (s *Store) reject(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.phase == model.PhaseAuthenticated {
		s.authenticated--
	}
	e.phase = model.PhaseRejected
}

// Reject moves a connection that has not authenticated to the terminal
// PhaseRejected. Authenticated connections are left to EndConnection.
func (s *Store) Reject(conn model.ConnectionHandle) {
	e := s.get(conn)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.phase != model.PhaseAuthenticated {
		e.phase = model.PhaseRejected
	}
}

// EndConnection removes conn and its account mapping and wipes its secrets.
// It is idempotent.
func (s *Store) EndConnection(conn model.ConnectionHandle) Ended {
	return s.end(conn, nil)
}

func (s *Store) end(conn model.ConnectionHandle, cond func(*entry) bool) Ended {
	e := s.get(conn)
	if e == nil {
		return Ended{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ended, ok := s.remove(conn, e, cond)
	if !ok {
		return Ended{}
	}

	if e.channel != nil {
		e.channel.Close()
	}
	if e.auth != nil {
		e.auth.wipe()
		e.auth = nil
	}
	return ended
}

func (s *Store) remove(conn model.ConnectionHandle, e *entry, cond func(*entry) bool) (Ended, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ended || (cond != nil && !cond(e)) {
		return Ended{}, false
	}
	e.ended = true

	if s.byConn[conn] == e {
		delete(s.byConn, conn)
	}
	if e.account != "" && s.byAccount[e.account] == conn {
		delete(s.byAccount, e.account)
	}

	wasAuthenticated := e.phase == model.PhaseAuthenticated
	if wasAuthenticated {
		s.authenticated--
	}
	e.phase = model.PhaseRejected

	return Ended{
		Connection:       conn,
		AccountName:      e.account,
		WasAuthenticated: wasAuthenticated,
		disconnect:       e.disconnect,
	}, true
}

// EndAccount ends the connection currently mapped to name. It is idempotent.
func (s *Store) EndAccount(name string) Ended {
	s.mu.Lock()
	conn, ok := s.byAccount[name]
	s.mu.Unlock()

	if !ok {
		return Ended{}
	}
	return s.EndConnection(conn)
}

// AccountByConnection returns the account mapped to conn.
func (s *Store) AccountByConnection(conn model.ConnectionHandle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byConn[conn]
	if !ok || e.account == "" || s.byAccount[e.account] != conn {
		return "", false
	}
	return e.account, true
}

// ConnectionByAccount returns the connection mapped to name.
func (s *Store) ConnectionByAccount(name string) (model.ConnectionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.byAccount[name]
	return conn, ok
}

// Phase returns the phase of conn, PhaseNone for unknown connections.
func (s *Store) Phase(conn model.ConnectionHandle) model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byConn[conn]
	if !ok {
		return model.PhaseNone
	}
	return e.phase
}

// IsAuthenticated reports whether conn is in PhaseAuthenticated.
func (s *Store) IsAuthenticated(conn model.ConnectionHandle) bool {
	return s.Phase(conn) == model.PhaseAuthenticated
}

// AuthenticatedCount returns the number of authenticated connections. A
// connection inside the onSuccess callback of its final TryAdvance is
// already counted.
func (s *Store) AuthenticatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Len returns the number of open connections.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byConn)
}

// Reap ends every connection that is not authenticated and has stayed in
// its current phase for longer than limit, disconnecting it. The time in a
// phase runs from Open or the last forward transition; messages that do not
// advance the phase do not extend it. It returns the reaped handles.
func (s *Store) Reap(now time.Time, limit time.Duration) []model.ConnectionHandle {
	isStale := func(e *entry) bool {
		return e.phase != model.PhaseAuthenticated && now.Sub(e.since) > limit
	}

	s.mu.Lock()
	var stale []model.ConnectionHandle
	for conn, e := range s.byConn {
		if isStale(e) {
			stale = append(stale, conn)
		}
	}
	s.mu.Unlock()

	reaped := stale[:0]
	for _, conn := range stale {
		ended := s.end(conn, isStale)
		if !ended.Found() {
			continue
		}
		ended.Disconnect()
		reaped = append(reaped, conn)
	}
	return reaped
}
