package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/protocol"
	"github.com/dtroode/srplogin/internal/secure"
	"github.com/dtroode/srplogin/internal/session"
	"github.com/dtroode/srplogin/internal/srp"
)

var (
	// ErrFinished means a final AuthResult was sent and the connection
	// should be closed normally.
	ErrFinished = errors.New("handshake finished")
	// ErrRejected means the handshake failed with an AuthResult sent to the
	// client.
	ErrRejected = fmt.Errorf("authentication rejected: %w", ErrFinished)
	// ErrProtocolViolation means the peer misbehaved; no result is sent.
	ErrProtocolViolation = errors.New("protocol violation")
)

const offlineTimeout = 5 * time.Second

// Conn is the transport side of one client connection.
type Conn interface {
	ID() model.ConnectionHandle
	Send(msg protocol.Message) error
	// Disconnect closes the connection. It must not block.
	Disconnect()
}

// Recorder receives handshake metrics.
type Recorder interface {
	ObserveResult(code model.ResultCode)
	ObserveViolation(kind string)
	ObserveStep(kind string, d time.Duration)
}

// LoginConfig tunes the login handshake.
type LoginConfig struct {
	RegistrationEnabled bool
	// MaxAuthenticated caps concurrently authenticated connections; zero
	// disables the cap.
	MaxAuthenticated int
}

// Login runs the server side of the handshake for every connection.
type Login struct {
	store    *session.Store
	accounts model.AccountStore
	tickets  model.TicketIssuer
	observer model.AuthenticationObserver
	recorder Recorder
	cfg      LoginConfig
	logger   *logger.Logger
	now      func() time.Time
}

// NewLogin creates the login service. observer and recorder may be nil.
func NewLogin(
	store *session.Store,
	accounts model.AccountStore,
	tickets model.TicketIssuer,
	observer model.AuthenticationObserver,
	recorder Recorder,
	cfg LoginConfig,
	logger *logger.Logger,
) *Login {
	if observer == nil {
		observer = noopObserver{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Login{
		store:    store,
		accounts: accounts,
		tickets:  tickets,
		observer: observer,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Connected registers a new connection.
func (l *Login) Connected(conn Conn) error {
	if err := l.store.Open(conn.ID(), conn.Disconnect); err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	l.logger.Debug("Login service: connection opened", "conn", conn.ID())
	return nil
}

// Handle processes one client message. A nil error keeps the connection
// open; any error means the connection must be closed.
func (l *Login) Handle(ctx context.Context, conn Conn, msg protocol.Message) error {
	if msg == nil {
		return violation("empty message")
	}

	kind := msg.Kind().String()
	start := time.Now()
	defer func() {
		l.recorder.ObserveStep(kind, time.Since(start))
	}()

	var err error
	switch m := msg.(type) {
	case *protocol.ClientHello:
		err = l.handleHello(conn, m)
	case *protocol.VerifyRequest:
		err = l.handleVerify(ctx, conn, m)
	case *protocol.CreateAccountRequest:
		err = l.handleCreateAccount(ctx, conn, m)
	case *protocol.ProofRequest:
		err = l.handleProof(conn, m)
	case *protocol.SuccessAck:
		err = l.handleAck(ctx, conn, m)
	default:
		err = violation("unexpected " + kind)
	}

	if errors.Is(err, ErrProtocolViolation) {
		l.recorder.ObserveViolation(kind)
		l.logger.Warn("Login service: protocol violation",
			"conn", conn.ID(),
			"kind", kind,
			"error", err.Error())
	}
	return err
}

// Disconnected releases everything held for the connection.
func (l *Login) Disconnected(ctx context.Context, conn model.ConnectionHandle) {
	ended := l.store.EndConnection(conn)
	if !ended.Found() {
		return
	}
	l.logger.Debug("Login service: connection closed",
		"conn", conn,
		"account", ended.AccountName,
		"authenticated", ended.WasAuthenticated)

	if ended.WasAuthenticated {
		l.markOffline(ctx, ended.AccountName)
	}
}

// Kick ends the connection of an account and disconnects it. It reports
// whether a connection was found.
func (l *Login) Kick(ctx context.Context, accountName string) bool {
	ended := l.store.EndAccount(accountName)
	if !ended.Found() {
		return false
	}
	if ended.WasAuthenticated {
		l.markOffline(ctx, accountName)
	}
	ended.Disconnect()

	l.logger.Info("Login service: account kicked",
		"account", accountName,
		"conn", ended.Connection)
	return true
}

func (l *Login) markOffline(ctx context.Context, accountName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), offlineTimeout)
	defer cancel()

	if err := l.accounts.MarkOffline(ctx, accountName); err != nil {
		l.logger.Error("Login service: failed to mark account offline",
			"account", accountName,
			"error", err.Error())
	}
}

func (l *Login) handleHello(conn Conn, m *protocol.ClientHello) error {
	if _, ok := l.store.Encryption(conn.ID()); ok {
		return violation("repeated client hello")
	}

	material, err := secure.NewMaterial()
	if err != nil {
		return fmt.Errorf("failed to generate transport material: %w", err)
	}
	defer material.Wipe()

	wrapped, err := secure.Wrap(m.PublicKey, material)
	if err != nil {
		if errors.Is(err, secure.ErrInvalidPublicKey) {
			return violation("invalid client public key")
		}
		return fmt.Errorf("failed to wrap transport material: %w", err)
	}

	ch, err := secure.NewChannel(material, secure.RoleServer)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := l.store.AttachEncryption(conn.ID(), ch); err != nil {
		ch.Close()
		return violation("bootstrap: " + err.Error())
	}

	return conn.Send(&protocol.ServerHello{
		EncryptedKey: wrapped.Key,
		EncryptedIV:  wrapped.IV,
	})
}

func (l *Login) handleVerify(ctx context.Context, conn Conn, m *protocol.VerifyRequest) error {
	id := conn.ID()

	ch, err := l.channel(id)
	if err != nil {
		return err
	}
	name, err := open(ch, m.AccountName)
	if err != nil {
		return err
	}
	clientPublic, err := open(ch, m.ClientPublicEphemeral)
	if err != nil {
		return err
	}

	if phase := l.store.Phase(id); phase != model.PhaseNone {
		return violation("verify in phase " + phase.String())
	}

	accountName := string(name)
	if !model.IsAllowedAccountName(accountName) {
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	}

	if other, ok := l.store.ConnectionByAccount(accountName); ok && other != id && l.store.IsAuthenticated(other) {
		return l.reject(conn, model.ResultAlreadyOnline)
	}

	online, err := l.accounts.IsOnline(ctx, accountName)
	if err != nil {
		l.logger.Error("Login service: failed to check online state",
			"account", accountName,
			"error", err.Error())
		return l.reject(conn, model.ResultServerFull)
	}
	if online {
		l.logger.Info("Login service: account already online", "account", accountName)
		return l.reject(conn, model.ResultAlreadyOnline)
	}

	account, err := l.accounts.Lookup(ctx, accountName)
	if errors.Is(err, model.ErrNotFound) {
		l.logger.Info("Login service: unknown account", "account", accountName)
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	}
	if err != nil {
		l.logger.Error("Login service: failed to look up account",
			"account", accountName,
			"error", err.Error())
		return l.reject(conn, model.ResultServerFull)
	}

	ephemeral, err := srp.ServerGenerateEphemeral(account.Verifier)
	if err != nil {
		l.logger.Error("Login service: failed to generate server ephemeral",
			"account", accountName,
			"error", err.Error())
		return l.reject(conn, model.ResultServerFull)
	}
	serverPublic := ephemeral.Public

	err = l.store.BeginAccount(id, session.AuthSession{
		AccountName:  accountName,
		ClientPublic: clientPublic,
		Salt:         account.Salt,
		Verifier:     account.Verifier,
		AccessLevel:  account.AccessLevel,
		Server:       ephemeral,
	})
	if errors.Is(err, session.ErrAccountInUse) {
		ephemeral.Wipe()
		return l.reject(conn, model.ResultAlreadyOnline)
	}
	if err != nil {
		ephemeral.Wipe()
		return violation("begin account: " + err.Error())
	}

	salt, err := ch.Seal(account.Salt)
	if err != nil {
		return fmt.Errorf("failed to seal salt: %w", err)
	}
	public, err := ch.Seal(serverPublic)
	if err != nil {
		return fmt.Errorf("failed to seal server ephemeral: %w", err)
	}

	l.logger.Debug("Login service: challenge sent", "conn", id, "account", accountName)
	return conn.Send(&protocol.VerifyChallenge{
		Salt:                  salt,
		ServerPublicEphemeral: public,
	})
}

func (l *Login) handleCreateAccount(ctx context.Context, conn Conn, m *protocol.CreateAccountRequest) error {
	id := conn.ID()

	ch, err := l.channel(id)
	if err != nil {
		return err
	}
	name, err := open(ch, m.AccountName)
	if err != nil {
		return err
	}
	salt, err := open(ch, m.Salt)
	if err != nil {
		return err
	}
	verifier, err := open(ch, m.Verifier)
	if err != nil {
		return err
	}

	if phase := l.store.Phase(id); phase != model.PhaseNone {
		return violation("registration in phase " + phase.String())
	}

	accountName := string(name)
	if !l.cfg.RegistrationEnabled {
		l.logger.Info("Login service: registration disabled", "account", accountName)
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	}
	if !model.IsAllowedAccountName(accountName) || len(salt) != srp.SaltSize || srp.ValidateVerifier(verifier) != nil {
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	}

	err = l.accounts.Create(ctx, model.Account{
		Name:        accountName,
		Salt:        salt,
		Verifier:    verifier,
		AccessLevel: model.AccessLevelPlayer,
		CreatedAt:   l.now(),
	})
	if errors.Is(err, model.ErrAccountExists) {
		l.logger.Info("Login service: account name taken", "account", accountName)
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	}
	if err != nil {
		l.logger.Error("Login service: failed to create account",
			"account", accountName,
			"error", err.Error())
		return l.reject(conn, model.ResultServerFull)
	}

	l.logger.Info("Login service: account created", "account", accountName)
	if err := l.sendResult(conn, model.ResultAccountCreated, ""); err != nil {
		return err
	}
	return ErrFinished
}

func (l *Login) handleProof(conn Conn, m *protocol.ProofRequest) error {
	id := conn.ID()

	ch, err := l.channel(id)
	if err != nil {
		return err
	}
	clientProof, err := open(ch, m.ClientProof)
	if err != nil {
		return err
	}

	var (
		deriveErr   error
		serverProof []byte
		accountName string
	)
	ok := l.store.TryAdvance(id, model.PhaseAwaitingVerify, model.PhaseAwaitingProof, func(a *session.AuthSession) bool {
		accountName = a.AccountName
		a.Session, deriveErr = srp.ServerDeriveSession(a.Server.Secret, a.ClientPublic, a.Salt, a.AccountName, a.Verifier, clientProof)
		if deriveErr != nil {
			return false
		}
		a.Server.Wipe()
		serverProof = append([]byte(nil), a.Session.Proof...)
		return true
	})

	switch {
	case errors.Is(deriveErr, srp.ErrInvalidProof):
		l.logger.Info("Login service: invalid proof", "conn", id, "account", accountName)
		return l.reject(conn, model.ResultInvalidUsernameOrPassword)
	case deriveErr != nil:
		return violation("client ephemeral rejected")
	case !ok:
		return violation("proof outside verify phase")
	}

	sealed, err := ch.Seal(serverProof)
	secure.Wipe(serverProof)
	if err != nil {
		return fmt.Errorf("failed to seal server proof: %w", err)
	}
	return conn.Send(&protocol.ProofReply{ServerProof: sealed})
}

func (l *Login) handleAck(ctx context.Context, conn Conn, m *protocol.SuccessAck) error {
	id := conn.ID()

	ch, err := l.channel(id)
	if err != nil {
		return err
	}
	if _, err := open(ch, m.Confirmation); err != nil {
		return err
	}

	var (
		called      bool
		accountName string
		result      model.ResultCode
		ticket      string
	)
	ok := l.store.TryAdvance(id, model.PhaseAwaitingProof, model.PhaseAuthenticated, func(a *session.AuthSession) bool {
		called = true
		accountName = a.AccountName
		result, ticket = l.admit(ctx, id, a)
		return result == model.ResultSuccess
	})
	if !called {
		// The phase only survives a refused advance when another connection
		// authenticated the account first.
		if l.store.Phase(id) == model.PhaseAwaitingProof {
			l.logger.Info("Login service: account authenticated elsewhere", "conn", id)
			return l.reject(conn, model.ResultAlreadyOnline)
		}
		return violation("acknowledgement outside proof phase")
	}

	if err := l.sendResult(conn, result, ticket); err != nil {
		return err
	}
	l.observer.OnConnectionAuthenticated(id, accountName, ok)

	if !ok {
		l.logger.Info("Login service: login refused",
			"conn", id,
			"account", accountName,
			"result", result.String())
		return fmt.Errorf("%w: %s", ErrRejected, result)
	}

	l.logger.Info("Login service: account authenticated",
		"conn", id,
		"account", accountName)
	return nil
}

// admit runs the final checks while the connection is locked in its
// authenticating transition. MarkOnline is the last fallible step.
func (l *Login) admit(ctx context.Context, id model.ConnectionHandle, a *session.AuthSession) (model.ResultCode, string) {
	account, err := l.accounts.Lookup(ctx, a.AccountName)
	if err != nil {
		l.logger.Error("Login service: failed to re-fetch account",
			"account", a.AccountName,
			"error", err.Error())
		return model.ResultServerFull, ""
	}
	if account.Banned {
		return model.ResultBanned, ""
	}
	if l.cfg.MaxAuthenticated > 0 && l.store.AuthenticatedCount() > l.cfg.MaxAuthenticated {
		return model.ResultServerFull, ""
	}

	ticket, err := l.tickets.Issue(account.Name, account.AccessLevel, id)
	if err != nil {
		l.logger.Error("Login service: failed to issue ticket",
			"account", a.AccountName,
			"error", err.Error())
		return model.ResultServerFull, ""
	}

	err = l.accounts.MarkOnline(ctx, a.AccountName, id)
	if errors.Is(err, model.ErrAlreadyOnline) {
		return model.ResultAlreadyOnline, ""
	}
	if err != nil {
		l.logger.Error("Login service: failed to mark account online",
			"account", a.AccountName,
			"error", err.Error())
		return model.ResultServerFull, ""
	}

	a.AccessLevel = account.AccessLevel
	return model.ResultSuccess, ticket
}

// reject sends a failing result and ends the handshake.
func (l *Login) reject(conn Conn, code model.ResultCode) error {
	l.store.Reject(conn.ID())
	if err := l.sendResult(conn, code, ""); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrRejected, code)
}

func (l *Login) sendResult(conn Conn, code model.ResultCode, ticket string) error {
	l.recorder.ObserveResult(code)
	if err := conn.Send(&protocol.AuthResult{Result: code, Ticket: ticket}); err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}
	return nil
}

func (l *Login) channel(id model.ConnectionHandle) (*secure.Channel, error) {
	ch, ok := l.store.Encryption(id)
	if !ok {
		return nil, violation("encrypted message before bootstrap")
	}
	return ch, nil
}

func open(ch *secure.Channel, ciphertext []byte) ([]byte, error) {
	plaintext, err := ch.Open(ciphertext)
	if err != nil {
		return nil, violation("decrypt: " + err.Error())
	}
	return plaintext, nil
}

func violation(reason string) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, reason)
}

type noopObserver struct{}

func (noopObserver) OnConnectionAuthenticated(model.ConnectionHandle, string, bool) {}

type noopRecorder struct{}

func (noopRecorder) ObserveResult(model.ResultCode)    {}
func (noopRecorder) ObserveViolation(string)           {}
func (noopRecorder) ObserveStep(string, time.Duration) {}
