package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/srplogin/internal/mocks"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
	"github.com/dtroode/srplogin/internal/repository/memory"
	"github.com/dtroode/srplogin/internal/secure"
	"github.com/dtroode/srplogin/internal/session"
	"github.com/dtroode/srplogin/internal/srp"
	"github.com/dtroode/srplogin/internal/testutil"
)

const (
	testAccount  = "alice"
	testPassword = "correct-horse"
)

type fakeConn struct {
	id           model.ConnectionHandle
	mu           sync.Mutex
	sent         []protocol.Message
	disconnected atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: model.NewConnectionHandle()}
}

func (c *fakeConn) ID() model.ConnectionHandle { return c.id }

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Disconnect() { c.disconnected.Add(1) }

func (c *fakeConn) last() protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) results() []*protocol.AuthResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*protocol.AuthResult
	for _, m := range c.sent {
		if r, ok := m.(*protocol.AuthResult); ok {
			out = append(out, r)
		}
	}
	return out
}

// peer drives the client side of the handshake by hand.
type peer struct {
	t       *testing.T
	login   *Login
	conn    *fakeConn
	channel *secure.Channel
	eph     srp.Ephemeral
	name    string
}

func newPeer(t *testing.T, l *Login) *peer {
	t.Helper()

	p := &peer{t: t, login: l, conn: newFakeConn()}
	require.NoError(t, l.Connected(p.conn))
	return p
}

func (p *peer) handle(msg protocol.Message) error {
	return p.login.Handle(context.Background(), p.conn, msg)
}

func (p *peer) seal(b []byte) []byte {
	p.t.Helper()
	out, err := p.channel.Seal(b)
	require.NoError(p.t, err)
	return out
}

func (p *peer) open(b []byte) []byte {
	p.t.Helper()
	out, err := p.channel.Open(b)
	require.NoError(p.t, err)
	return out
}

func (p *peer) hello() {
	p.t.Helper()

	kp, err := secure.GenerateKeyPair()
	require.NoError(p.t, err)
	require.NoError(p.t, p.handle(&protocol.ClientHello{PublicKey: kp.Public()}))

	reply, ok := p.conn.last().(*protocol.ServerHello)
	require.True(p.t, ok)
	material, err := secure.Unwrap(kp, secure.WrappedMaterial{Key: reply.EncryptedKey, IV: reply.EncryptedIV})
	require.NoError(p.t, err)
	p.channel, err = secure.NewChannel(material, secure.RoleClient)
	require.NoError(p.t, err)
}

func (p *peer) verify(name string) error {
	p.t.Helper()

	eph, err := srp.ClientGenerateEphemeral()
	require.NoError(p.t, err)
	p.eph = eph
	p.name = name
	return p.handle(&protocol.VerifyRequest{
		AccountName:           p.seal([]byte(name)),
		ClientPublicEphemeral: p.seal(eph.Public),
	})
}

func (p *peer) proof(password string) error {
	p.t.Helper()

	challenge, ok := p.conn.last().(*protocol.VerifyChallenge)
	require.True(p.t, ok)
	salt := p.open(challenge.Salt)
	serverPublic := p.open(challenge.ServerPublicEphemeral)

	sess, err := srp.ClientDeriveSession(p.eph.Secret, serverPublic, salt, p.name, password)
	require.NoError(p.t, err)
	err = p.handle(&protocol.ProofRequest{ClientProof: p.seal(sess.Proof)})
	if err != nil {
		return err
	}

	reply, ok := p.conn.last().(*protocol.ProofReply)
	require.True(p.t, ok)
	require.True(p.t, srp.VerifySession(p.eph.Public, sess, p.open(reply.ServerProof)))
	return nil
}

func (p *peer) ack() error {
	return p.handle(&protocol.SuccessAck{Confirmation: p.seal(nil)})
}

func (p *peer) register(name, password string) error {
	p.t.Helper()

	salt, verifier, err := srp.DeriveSaltAndVerifier(name, password)
	require.NoError(p.t, err)
	return p.handle(&protocol.CreateAccountRequest{
		AccountName: p.seal([]byte(name)),
		Salt:        p.seal(salt),
		Verifier:    p.seal(verifier),
	})
}

func (p *peer) result() model.ResultCode {
	p.t.Helper()
	r, ok := p.conn.last().(*protocol.AuthResult)
	require.True(p.t, ok, "last message is %T", p.conn.last())
	return r.Result
}

func testAccountRecord(t *testing.T) model.Account {
	t.Helper()
	salt, verifier, err := srp.DeriveSaltAndVerifier(testAccount, testPassword)
	require.NoError(t, err)
	return model.Account{Name: testAccount, Salt: salt, Verifier: verifier, AccessLevel: model.AccessLevelGuardian}
}

func TestLogin_Success(t *testing.T) {
	store := session.NewStore()
	accounts := mocks.NewAccountStore(t)
	tickets := mocks.NewTicketIssuer(t)
	observer := mocks.NewAuthenticationObserver(t)
	l := NewLogin(store, accounts, tickets, observer, nil, LoginConfig{}, testutil.MakeNoopLogger())

	account := testAccountRecord(t)
	p := newPeer(t, l)

	accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
	accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Twice()
	tickets.On("Issue", testAccount, model.AccessLevelGuardian, p.conn.id).Return("ticket", nil).Once()
	accounts.On("MarkOnline", mock.Anything, testAccount, p.conn.id).Return(nil).Once()
	observer.On("OnConnectionAuthenticated", p.conn.id, testAccount, true).Return().Once()

	p.hello()
	require.NoError(t, p.verify(testAccount))
	assert.Equal(t, model.PhaseAwaitingVerify, store.Phase(p.conn.id))
	require.NoError(t, p.proof(testPassword))
	assert.Equal(t, model.PhaseAwaitingProof, store.Phase(p.conn.id))
	require.NoError(t, p.ack())

	res, ok := p.conn.last().(*protocol.AuthResult)
	require.True(t, ok)
	assert.Equal(t, &protocol.AuthResult{Result: model.ResultSuccess, Ticket: "ticket"}, res)
	assert.True(t, store.IsAuthenticated(p.conn.id))
	assert.Equal(t, 1, store.AuthenticatedCount())

	// A second attempt on an authenticated connection is a violation.
	err := p.verify(testAccount)
	assert.ErrorIs(t, err, ErrProtocolViolation)

	accounts.On("MarkOffline", mock.Anything, testAccount).Return(nil).Once()
	l.Disconnected(context.Background(), p.conn.id)
	assert.Equal(t, 0, store.AuthenticatedCount())
	assert.Equal(t, 0, store.Len())
}

func TestLogin_VerifyRejections(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name    string
		account string
		setup   func(accounts *mocks.AccountStore)
		want    model.ResultCode
	}{
		{
			name:    "invalid name",
			account: "a!",
			want:    model.ResultInvalidUsernameOrPassword,
		},
		{
			name:    "already online",
			account: testAccount,
			setup: func(accounts *mocks.AccountStore) {
				accounts.On("IsOnline", mock.Anything, testAccount).Return(true, nil).Once()
			},
			want: model.ResultAlreadyOnline,
		},
		{
			name:    "online check fails",
			account: testAccount,
			setup: func(accounts *mocks.AccountStore) {
				accounts.On("IsOnline", mock.Anything, testAccount).Return(false, storeErr).Once()
			},
			want: model.ResultServerFull,
		},
		{
			name:    "unknown account",
			account: testAccount,
			setup: func(accounts *mocks.AccountStore) {
				accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
				accounts.On("Lookup", mock.Anything, testAccount).Return(model.Account{}, model.ErrNotFound).Once()
			},
			want: model.ResultInvalidUsernameOrPassword,
		},
		{
			name:    "lookup fails",
			account: testAccount,
			setup: func(accounts *mocks.AccountStore) {
				accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
				accounts.On("Lookup", mock.Anything, testAccount).Return(model.Account{}, storeErr).Once()
			},
			want: model.ResultServerFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := mocks.NewAccountStore(t)
			if tt.setup != nil {
				tt.setup(accounts)
			}
			store := session.NewStore()
			l := NewLogin(store, accounts, mocks.NewTicketIssuer(t), nil, nil, LoginConfig{}, testutil.MakeNoopLogger())

			p := newPeer(t, l)
			p.hello()
			err := p.verify(tt.account)

			assert.ErrorIs(t, err, ErrRejected)
			assert.ErrorIs(t, err, ErrFinished)
			assert.Equal(t, tt.want, p.result())
			assert.Equal(t, model.PhaseRejected, store.Phase(p.conn.id))
		})
	}
}

func TestLogin_FinalStepRejections(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name  string
		setup func(accounts *mocks.AccountStore, tickets *mocks.TicketIssuer, account model.Account)
		want  model.ResultCode
	}{
		{
			name: "banned during handshake",
			setup: func(accounts *mocks.AccountStore, _ *mocks.TicketIssuer, account model.Account) {
				account.Banned = true
				accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Once()
			},
			want: model.ResultBanned,
		},
		{
			name: "re-fetch fails",
			setup: func(accounts *mocks.AccountStore, _ *mocks.TicketIssuer, _ model.Account) {
				accounts.On("Lookup", mock.Anything, testAccount).Return(model.Account{}, storeErr).Once()
			},
			want: model.ResultServerFull,
		},
		{
			name: "ticket fails",
			setup: func(accounts *mocks.AccountStore, tickets *mocks.TicketIssuer, account model.Account) {
				accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Once()
				tickets.On("Issue", testAccount, mock.Anything, mock.Anything).Return("", storeErr).Once()
			},
			want: model.ResultServerFull,
		},
		{
			name: "online elsewhere",
			setup: func(accounts *mocks.AccountStore, tickets *mocks.TicketIssuer, account model.Account) {
				accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Once()
				tickets.On("Issue", testAccount, mock.Anything, mock.Anything).Return("ticket", nil).Once()
				accounts.On("MarkOnline", mock.Anything, testAccount, mock.Anything).Return(model.ErrAlreadyOnline).Once()
			},
			want: model.ResultAlreadyOnline,
		},
		{
			name: "mark online fails",
			setup: func(accounts *mocks.AccountStore, tickets *mocks.TicketIssuer, account model.Account) {
				accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Once()
				tickets.On("Issue", testAccount, mock.Anything, mock.Anything).Return("ticket", nil).Once()
				accounts.On("MarkOnline", mock.Anything, testAccount, mock.Anything).Return(storeErr).Once()
			},
			want: model.ResultServerFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := testAccountRecord(t)
			accounts := mocks.NewAccountStore(t)
			tickets := mocks.NewTicketIssuer(t)
			observer := mocks.NewAuthenticationObserver(t)
			store := session.NewStore()
			l := NewLogin(store, accounts, tickets, observer, nil, LoginConfig{}, testutil.MakeNoopLogger())

			accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
			accounts.On("Lookup", mock.Anything, testAccount).Return(account, nil).Once()

			p := newPeer(t, l)
			p.hello()
			require.NoError(t, p.verify(testAccount))
			require.NoError(t, p.proof(testPassword))

			tt.setup(accounts, tickets, account)
			observer.On("OnConnectionAuthenticated", p.conn.id, testAccount, false).Return().Once()

			err := p.ack()
			assert.ErrorIs(t, err, ErrRejected)
			assert.Equal(t, &protocol.AuthResult{Result: tt.want}, p.conn.last())
			assert.Equal(t, model.PhaseRejected, store.Phase(p.conn.id))
			assert.Equal(t, 0, store.AuthenticatedCount())

			// No MarkOffline for a connection that never authenticated.
			l.Disconnected(context.Background(), p.conn.id)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	accounts := mocks.NewAccountStore(t)
	observer := mocks.NewAuthenticationObserver(t)
	store := session.NewStore()
	l := NewLogin(store, accounts, mocks.NewTicketIssuer(t), observer, nil, LoginConfig{}, testutil.MakeNoopLogger())

	accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
	accounts.On("Lookup", mock.Anything, testAccount).Return(testAccountRecord(t), nil).Once()

	p := newPeer(t, l)
	p.hello()
	require.NoError(t, p.verify(testAccount))

	err := p.proof("wrong-horse")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, model.ResultInvalidUsernameOrPassword, p.result())
	assert.Equal(t, model.PhaseRejected, store.Phase(p.conn.id))

	// A retry on the same connection is not accepted.
	err = p.ack()
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestLogin_ProtocolViolations(t *testing.T) {
	newLogin := func(t *testing.T) *Login {
		return NewLogin(session.NewStore(), mocks.NewAccountStore(t), mocks.NewTicketIssuer(t), nil, nil, LoginConfig{}, testutil.MakeNoopLogger())
	}

	t.Run("proof before verify", func(t *testing.T) {
		p := newPeer(t, newLogin(t))
		p.hello()

		err := p.handle(&protocol.ProofRequest{ClientProof: p.seal([]byte("proof"))})
		assert.ErrorIs(t, err, ErrProtocolViolation)
		assert.Empty(t, p.conn.results())
	})

	t.Run("encrypted message before bootstrap", func(t *testing.T) {
		p := newPeer(t, newLogin(t))

		err := p.handle(&protocol.VerifyRequest{AccountName: []byte("x"), ClientPublicEphemeral: []byte("y")})
		assert.ErrorIs(t, err, ErrProtocolViolation)
		assert.Empty(t, p.conn.sent)
	})

	t.Run("repeated hello", func(t *testing.T) {
		p := newPeer(t, newLogin(t))
		p.hello()

		kp, err := secure.GenerateKeyPair()
		require.NoError(t, err)
		err = p.handle(&protocol.ClientHello{PublicKey: kp.Public()})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("invalid public key", func(t *testing.T) {
		p := newPeer(t, newLogin(t))

		err := p.handle(&protocol.ClientHello{PublicKey: []byte{1, 2, 3}})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		p := newPeer(t, newLogin(t))
		p.hello()

		name := p.seal([]byte(testAccount))
		name[0] ^= 0xff
		err := p.handle(&protocol.VerifyRequest{AccountName: name, ClientPublicEphemeral: p.seal([]byte{1})})
		assert.ErrorIs(t, err, ErrProtocolViolation)
		assert.Empty(t, p.conn.results())
	})

	t.Run("server message from client", func(t *testing.T) {
		p := newPeer(t, newLogin(t))

		err := p.handle(&protocol.AuthResult{Result: model.ResultSuccess})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("ack before proof", func(t *testing.T) {
		p := newPeer(t, newLogin(t))
		p.hello()

		err := p.ack()
		assert.ErrorIs(t, err, ErrProtocolViolation)
		assert.Empty(t, p.conn.results())
	})
}

func TestLogin_DegenerateClientEphemeral(t *testing.T) {
	accounts := mocks.NewAccountStore(t)
	l := NewLogin(session.NewStore(), accounts, mocks.NewTicketIssuer(t), nil, nil, LoginConfig{}, testutil.MakeNoopLogger())

	accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
	accounts.On("Lookup", mock.Anything, testAccount).Return(testAccountRecord(t), nil).Once()

	p := newPeer(t, l)
	p.hello()
	require.NoError(t, p.handle(&protocol.VerifyRequest{
		AccountName:           p.seal([]byte(testAccount)),
		ClientPublicEphemeral: p.seal(make([]byte, 256)),
	}))

	err := p.handle(&protocol.ProofRequest{ClientProof: p.seal(make([]byte, 64))})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Empty(t, p.conn.results())
}

func TestLogin_Registration(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		account string
		prepare func(t *testing.T, repo *memory.AccountRepository)
		want    model.ResultCode
	}{
		{name: "created", enabled: true, account: testAccount, want: model.ResultAccountCreated},
		{name: "disabled", enabled: false, account: testAccount, want: model.ResultInvalidUsernameOrPassword},
		{name: "invalid name", enabled: true, account: "no spaces", want: model.ResultInvalidUsernameOrPassword},
		{
			name:    "taken",
			enabled: true,
			account: testAccount,
			prepare: func(t *testing.T, repo *memory.AccountRepository) {
				require.NoError(t, repo.Create(context.Background(), testAccountRecord(t)))
			},
			want: model.ResultInvalidUsernameOrPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewAccountRepository()
			if tt.prepare != nil {
				tt.prepare(t, repo)
			}
			l := NewLogin(session.NewStore(), repo, mocks.NewTicketIssuer(t), nil, nil,
				LoginConfig{RegistrationEnabled: tt.enabled}, testutil.MakeNoopLogger())

			p := newPeer(t, l)
			p.hello()
			err := p.register(tt.account, testPassword)

			assert.ErrorIs(t, err, ErrFinished)
			assert.Equal(t, tt.want, p.result())
		})
	}
}

func TestLogin_RegistrationRejectsBadVerifier(t *testing.T) {
	repo := memory.NewAccountRepository()
	l := NewLogin(session.NewStore(), repo, mocks.NewTicketIssuer(t), nil, nil,
		LoginConfig{RegistrationEnabled: true}, testutil.MakeNoopLogger())

	p := newPeer(t, l)
	p.hello()
	err := p.handle(&protocol.CreateAccountRequest{
		AccountName: p.seal([]byte(testAccount)),
		Salt:        p.seal(make([]byte, srp.SaltSize)),
		Verifier:    p.seal(make([]byte, 256)),
	})

	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, model.ResultInvalidUsernameOrPassword, p.result())
	_, err = repo.Lookup(context.Background(), testAccount)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLogin_RegisterThenLoginTwice(t *testing.T) {
	repo := memory.NewAccountRepository()
	tickets := mocks.NewTicketIssuer(t)
	store := session.NewStore()
	l := NewLogin(store, repo, tickets, nil, nil, LoginConfig{RegistrationEnabled: true}, testutil.MakeNoopLogger())

	reg := newPeer(t, l)
	reg.hello()
	assert.ErrorIs(t, reg.register(testAccount, testPassword), ErrFinished)
	assert.Equal(t, model.ResultAccountCreated, reg.result())
	l.Disconnected(context.Background(), reg.conn.id)

	first := newPeer(t, l)
	second := newPeer(t, l)
	tickets.On("Issue", testAccount, model.AccessLevelPlayer, first.conn.id).Return("ticket", nil).Once()

	first.hello()
	second.hello()

	// Both handshakes run; the first to authenticate wins.
	require.NoError(t, first.verify(testAccount))
	require.NoError(t, second.verify(testAccount))
	require.NoError(t, first.proof(testPassword))
	require.NoError(t, second.proof(testPassword))

	require.NoError(t, first.ack())
	assert.Equal(t, model.ResultSuccess, first.result())

	err := second.ack()
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, model.ResultAlreadyOnline, second.result())
	assert.Equal(t, model.PhaseRejected, store.Phase(second.conn.id))
	assert.Equal(t, 1, store.AuthenticatedCount())

	// Ending the losing connection keeps the winner's mapping.
	l.Disconnected(context.Background(), second.conn.id)
	got, ok := store.ConnectionByAccount(testAccount)
	require.True(t, ok)
	assert.Equal(t, first.conn.id, got)

	third := newPeer(t, l)
	third.hello()
	err = third.verify(testAccount)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, model.ResultAlreadyOnline, third.result())

	online, err := repo.IsOnline(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, online)

	l.Disconnected(context.Background(), first.conn.id)
	online, err = repo.IsOnline(context.Background(), testAccount)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestLogin_RepeatedVerify(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *peer)
		phase model.Phase
	}{
		{
			name:  "awaiting verify",
			setup: func(*peer) {},
			phase: model.PhaseAwaitingVerify,
		},
		{
			name: "awaiting proof",
			setup: func(p *peer) {
				require.NoError(p.t, p.proof(testPassword))
			},
			phase: model.PhaseAwaitingProof,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Each store call is expected once; a repeated verify that reached
			// the account store would fail the mock.
			accounts := mocks.NewAccountStore(t)
			accounts.On("IsOnline", mock.Anything, testAccount).Return(false, nil).Once()
			accounts.On("Lookup", mock.Anything, testAccount).Return(testAccountRecord(t), nil).Once()
			store := session.NewStore()
			l := NewLogin(store, accounts, mocks.NewTicketIssuer(t), nil, nil, LoginConfig{}, testutil.MakeNoopLogger())

			p := newPeer(t, l)
			p.hello()
			require.NoError(t, p.verify(testAccount))
			tt.setup(p)
			sent := len(p.conn.sent)

			err := p.verify(testAccount)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			assert.Len(t, p.conn.sent, sent)
			assert.Empty(t, p.conn.results())
			assert.Equal(t, tt.phase, store.Phase(p.conn.id))
		})
	}
}

func TestLogin_StalledHandshakeDoesNotLockAccount(t *testing.T) {
	repo := memory.NewAccountRepository()
	require.NoError(t, repo.Create(context.Background(), testAccountRecord(t)))
	tickets := mocks.NewTicketIssuer(t)
	store := session.NewStore()
	l := NewLogin(store, repo, tickets, nil, nil, LoginConfig{}, testutil.MakeNoopLogger())

	stalled := newPeer(t, l)
	stalled.hello()
	require.NoError(t, stalled.verify(testAccount))

	// Re-sending verify does not restart the handshake.
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, stalled.verify(testAccount), ErrProtocolViolation)
	}
	assert.Equal(t, model.PhaseAwaitingVerify, store.Phase(stalled.conn.id))

	legit := newPeer(t, l)
	tickets.On("Issue", testAccount, model.AccessLevelGuardian, legit.conn.id).Return("ticket", nil).Once()
	legit.hello()
	require.NoError(t, legit.verify(testAccount))
	require.NoError(t, legit.proof(testPassword))
	require.NoError(t, legit.ack())
	assert.Equal(t, model.ResultSuccess, legit.result())

	// The stalled handshake is bounded by when it began, not by its traffic.
	reaped := store.Reap(time.Now().Add(time.Minute), 30*time.Second)
	assert.Equal(t, []model.ConnectionHandle{stalled.conn.id}, reaped)
	assert.Equal(t, int32(1), stalled.conn.disconnected.Load())
	assert.Equal(t, int32(0), legit.conn.disconnected.Load())
	assert.True(t, store.IsAuthenticated(legit.conn.id))

	online, err := repo.IsOnline(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestLogin_ServerFull(t *testing.T) {
	repo := memory.NewAccountRepository()
	tickets := mocks.NewTicketIssuer(t)
	store := session.NewStore()
	l := NewLogin(store, repo, tickets, nil, nil, LoginConfig{MaxAuthenticated: 1}, testutil.MakeNoopLogger())

	for _, name := range []string{"alice", "bob"} {
		salt, verifier, err := srp.DeriveSaltAndVerifier(name, testPassword)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), model.Account{Name: name, Salt: salt, Verifier: verifier}))
	}
	tickets.On("Issue", mock.Anything, mock.Anything, mock.Anything).Return("ticket", nil).Once()

	alice := newPeer(t, l)
	alice.hello()
	require.NoError(t, alice.verify("alice"))
	require.NoError(t, alice.proof(testPassword))
	require.NoError(t, alice.ack())

	bob := newPeer(t, l)
	bob.hello()
	require.NoError(t, bob.verify("bob"))
	require.NoError(t, bob.proof(testPassword))
	assert.ErrorIs(t, bob.ack(), ErrRejected)
	assert.Equal(t, model.ResultServerFull, bob.result())
	assert.Equal(t, 1, store.AuthenticatedCount())
}

func TestLogin_Kick(t *testing.T) {
	repo := memory.NewAccountRepository()
	tickets := mocks.NewTicketIssuer(t)
	store := session.NewStore()
	l := NewLogin(store, repo, tickets, nil, nil, LoginConfig{}, testutil.MakeNoopLogger())
	require.NoError(t, repo.Create(context.Background(), testAccountRecord(t)))
	tickets.On("Issue", mock.Anything, mock.Anything, mock.Anything).Return("ticket", nil).Once()

	p := newPeer(t, l)
	p.hello()
	require.NoError(t, p.verify(testAccount))
	require.NoError(t, p.proof(testPassword))
	require.NoError(t, p.ack())

	assert.True(t, l.Kick(context.Background(), testAccount))
	assert.Equal(t, int32(1), p.conn.disconnected.Load())
	assert.Equal(t, 0, store.AuthenticatedCount())

	online, err := repo.IsOnline(context.Background(), testAccount)
	require.NoError(t, err)
	assert.False(t, online)

	assert.False(t, l.Kick(context.Background(), testAccount))
	l.Disconnected(context.Background(), p.conn.id)
}
