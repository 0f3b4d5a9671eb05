package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/notify"
)

// Notifier is the slice of the notification registry the manager needs.
type Notifier interface {
	Notify(clientID, eventType string, payload map[string]any)
	NotifyAdmins(eventType string, payload map[string]any)
}

// terminalRetention is how long completed/expired sessions are kept
// before the sweep purges them.
const terminalRetention = 24 * time.Hour

// Manager drives the pairing session state machine.
type Manager struct {
	repo             Repository
	clients          client.Store
	tokens           *client.TokenService
	notifier         Notifier
	sessionTTL       time.Duration
	completionWindow time.Duration
	sweepInterval    time.Duration
	logger           *slog.Logger
}

// ManagerOptions configures a Manager.
type ManagerOptions struct { //nolint:revive // pairing.ManagerOptions reads fine at call sites
	Repo             Repository
	Clients          client.Store
	Tokens           *client.TokenService
	Notifier         Notifier
	SessionTTL       time.Duration // pending lifetime (PIN validity)
	CompletionWindow time.Duration // verified lifetime before expiry
	SweepInterval    time.Duration
	Logger           *slog.Logger
}

// NewManager creates a pairing manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if opts.Clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if opts.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be positive")
	}
	if opts.CompletionWindow <= 0 {
		return nil, fmt.Errorf("completion window must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		repo:             opts.Repo,
		clients:          opts.Clients,
		tokens:           opts.Tokens,
		notifier:         opts.Notifier,
		sessionTTL:       opts.SessionTTL,
		completionWindow: opts.CompletionWindow,
		sweepInterval:    opts.SweepInterval,
		logger:           opts.Logger,
	}, nil
}

// CreateSession starts a new pairing session with a fresh random PIN.
//
// The returned session carries the PIN — it is shown to the admin this
// one time and never serialised again.
func (m *Manager) CreateSession(ctx context.Context) (*Session, error) {
	pin, err := GeneratePIN()
	if err != nil {
		return nil, err
	}

	session := &Session{
		PIN:       pin,
		ExpiresAt: time.Now().UTC().Add(m.sessionTTL),
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("pairing session created",
		"session_id", session.ID,
		"expires_at", session.ExpiresAt.Format(time.RFC3339),
	)

	return session, nil
}

// VerifyPIN transitions a session to verified if the PIN matches and the
// session is still pending and unexpired.
//
// This call is unauthenticated — it is made by the device being paired.
// A malformed PIN fails fast with ErrInvalidPIN; every other failure
// (wrong PIN, unknown session, expired, already verified) collapses to
// ErrVerificationFailed so the caller learns nothing about which check
// failed.
func (m *Manager) VerifyPIN(ctx context.Context, sessionID, pin, deviceName string, deviceType client.DeviceType) (*Session, error) {
	if !IsValidPIN(pin) {
		return nil, ErrInvalidPIN
	}
	if deviceName == "" || len(deviceName) > 100 {
		return nil, ErrInvalidDeviceName
	}
	if deviceType == "" {
		deviceType = client.DeviceTypeOther
	}
	if err := client.ValidateDeviceType(deviceType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDeviceName, err)
	}

	verified, err := m.repo.MarkVerified(ctx, sessionID, pin, deviceName, deviceType)
	if err != nil {
		return nil, err
	}
	if !verified {
		m.logger.Info("pairing PIN verification failed", "session_id", sessionID)
		return nil, ErrVerificationFailed
	}

	session, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("pairing PIN verified",
		"session_id", sessionID,
		"device_name", deviceName,
		"device_type", deviceType,
	)

	if m.notifier != nil {
		m.notifier.NotifyAdmins(notify.EventPairingVerified, map[string]any{
			"session_id":  session.ID,
			"device_name": session.DeviceName,
			"device_type": string(session.DeviceType),
		})
	}

	return session, nil
}

// CompletePairing finishes a verified session: it creates the client
// record, mints its credential, and marks the session completed.
//
// The plaintext credential is returned to the caller exactly once. If
// the freshly paired device already holds a live connection (rare — it
// would have had to connect with some other credential), the credential
// is also pushed to it as a pairing_completed event; otherwise delivery
// is out of band via the admin.
func (m *Manager) CompletePairing(ctx context.Context, sessionID, clientName string, areas []string) (string, *client.Client, error) {
	if err := client.ValidateName(clientName); err != nil {
		return "", nil, err
	}
	if err := client.ValidateAreas(areas); err != nil {
		return "", nil, err
	}

	session, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	if session.Status != StatusVerified {
		return "", nil, fmt.Errorf("%w: status is %s", ErrNotVerified, session.Status)
	}

	c := &client.Client{
		Name:          clientName,
		DeviceType:    session.DeviceType,
		AssignedAreas: areas,
		IsActive:      true,
	}
	if err := m.clients.CreateClient(ctx, c); err != nil {
		return "", nil, err
	}

	plaintext, token, err := m.tokens.Issue(ctx, c.ID, areas)
	if err != nil {
		// The client row without a credential is unusable; best effort
		// to avoid leaving it behind.
		if delErr := m.clients.DeleteClient(ctx, c.ID); delErr != nil {
			m.logger.Error("cleaning up client after failed issuance",
				"client_id", c.ID, "error", delErr)
		}
		return "", nil, err
	}

	completed, err := m.repo.MarkCompleted(ctx, sessionID, c.ID, areas)
	if err != nil {
		return "", nil, err
	}
	if !completed {
		// The sweep (or a concurrent complete) won the race. Revoke the
		// credential we just minted and report the conflict.
		if _, revErr := m.tokens.Revoke(ctx, token.ID, "pairing completion lost race"); revErr != nil {
			m.logger.Error("revoking orphaned credential", "token_id", token.ID, "error", revErr)
		}
		if delErr := m.clients.DeleteClient(ctx, c.ID); delErr != nil {
			m.logger.Error("cleaning up client after lost completion race",
				"client_id", c.ID, "error", delErr)
		}
		return "", nil, fmt.Errorf("%w: session changed state during completion", ErrNotVerified)
	}

	m.logger.Info("pairing completed",
		"session_id", sessionID,
		"client_id", c.ID,
		"token_id", token.ID,
		"areas", len(areas),
	)

	if m.notifier != nil {
		m.notifier.Notify(c.ID, notify.EventPairingCompleted, map[string]any{
			"session_id": sessionID,
			"client_id":  c.ID,
			"credential": plaintext,
		})
	}

	return plaintext, c, nil
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	return m.repo.GetByID(ctx, sessionID)
}

// List returns all sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	return m.repo.List(ctx)
}

// Cancel removes a session regardless of state (admin action).
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	if err := m.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Info("pairing session cancelled", "session_id", sessionID)
	return nil
}

// Sweep expires overdue sessions and purges old terminal ones.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	expired, err := m.repo.ExpireStale(ctx, m.completionWindow)
	if err != nil {
		return 0, err
	}

	purged, err := m.repo.DeleteTerminal(ctx, terminalRetention)
	if err != nil {
		return expired, err
	}
	if purged > 0 {
		m.logger.Debug("terminal pairing sessions purged", "count", purged)
	}

	return expired, nil
}

// Run executes the periodic sweep until the context is cancelled.
// Sweep failures are logged and retried on the next tick — nothing here
// is fatal to the process.
func (m *Manager) Run(ctx context.Context) {
	if m.sweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := m.Sweep(ctx)
			if err != nil {
				m.logger.Error("pairing session sweep failed", "error", err)
				continue
			}
			if count > 0 {
				m.logger.Info("pairing sessions expired", "count", count)
			}
		}
	}
}
