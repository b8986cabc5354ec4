// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syncspace/spacesync/internal/crypto"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/internal/store"
	"github.com/syncspace/spacesync/models"
)

const (
	defaultReaskAfter  = 15 * time.Second
	defaultReportEvery = time.Second
)

// Config carries the per-engine knobs supplied by the owning process.
type Config struct {
	// CreatorID is the caller's identity. When set it must match the
	// creator recorded in the space store; Start fails otherwise.
	CreatorID string

	// DeviceToken and DeviceType, when set, are announced to the remote
	// after a successful handshake.
	DeviceToken string
	DeviceType  string

	// ReaskAfter is the idle interval after which a fresh ask is issued
	// even without evidence of new remote data. Defaults to 15s.
	ReaskAfter time.Duration

	// ReportEvery throttles unforced progress reports. Defaults to 1s.
	ReportEvery time.Duration
}

// Engine is the sync protocol state machine for one space. It is driven by
// its owner: Start opens the session, HandleMessage processes one inbound
// message, IdleTick runs between messages. All methods must be called from
// a single goroutine.
type Engine struct {
	cfg    Config
	store  BlobStore
	sender Sender
	report Reporter
	logger *logger.Logger

	now func() time.Time

	// identity, loaded from the store at Start
	spaceID    string
	creatorID  string
	instanceID string
	secret     string

	// session state, reset on restart; remotePos is the only value that
	// survives, via the instance record in the store
	authenticated  bool
	terminated     bool
	working        bool
	asking         bool
	remoteInstance string
	remotePos      int64
	maxRemotePos   int64
	pushablePos    int64
	pushPending    bool
	pullable       []models.BlobRef
	pushable       []models.BlobRef
	pulled         int64
	pushed         int64
	lastAskAt      time.Time
	lastReportAt   time.Time
	lastSynced     time.Time
}

// New constructs an engine over an opened space store and an established
// send channel. report may be nil when the owner does not track progress.
func New(cfg Config, bs BlobStore, sender Sender, report Reporter, log *logger.Logger) *Engine {
	if cfg.ReaskAfter <= 0 {
		cfg.ReaskAfter = defaultReaskAfter
	}
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = defaultReportEvery
	}
	if report == nil {
		report = func(models.SyncStatus) {}
	}
	return &Engine{
		cfg:    cfg,
		store:  bs,
		sender: sender,
		report: report,
		logger: log,
		now:    time.Now,
	}
}

// Start loads the space identity from the store, verifies the caller's
// identity against the recorded creator and opens the session with a hello.
// The shared secret never crosses the wire; only its digest does.
func (e *Engine) Start(ctx context.Context) error {
	if e.terminated {
		return ErrSessionClosed
	}

	var err error
	if e.spaceID, err = e.store.GetSetting(ctx, store.SettingSpaceID); err != nil {
		return fmt.Errorf("read space id: %w", err)
	}
	if e.creatorID, err = e.store.GetSetting(ctx, store.SettingCreatorID); err != nil {
		return fmt.Errorf("read creator id: %w", err)
	}
	if e.instanceID, err = e.store.GetSetting(ctx, store.SettingInstanceID); err != nil {
		return fmt.Errorf("read instance id: %w", err)
	}
	if e.secret, err = e.store.GetSetting(ctx, store.SettingSharedSecret); err != nil {
		return fmt.Errorf("read shared secret: %w", err)
	}

	if e.cfg.CreatorID != "" && e.cfg.CreatorID != e.creatorID {
		e.terminated = true
		return fmt.Errorf("%w: store records creator %s", ErrIdentityMismatch, e.creatorID)
	}

	e.logger.Info().
		Str("space", e.spaceID).
		Str("instance", e.instanceID).
		Msg("opening sync session")

	return e.sender.Send(models.Hello{
		SpaceID:    e.spaceID,
		InstanceID: e.instanceID,
		SecretHash: crypto.SecretHash(e.secret),
	})
}

// HandleMessage processes one inbound protocol message. A returned error
// wrapping ErrProtocolViolation, ErrUnknownMessage or ErrRemoteClosed means
// the session has terminated; the engine is restartable from the last
// persisted watermark.
func (e *Engine) HandleMessage(ctx context.Context, msg models.Message) error {
	if e.terminated {
		return ErrSessionClosed
	}

	switch m := msg.(type) {
	case models.Welcome:
		return e.handleWelcome(ctx, m)
	case models.DidAsk:
		return e.handleDidAsk(ctx, m)
	case models.DidPull:
		return e.handleDidPull(ctx, m)
	case models.Pull:
		return e.handlePull(ctx, m)
	case models.Push:
		return e.handlePush(ctx, m)
	case models.Update:
		return e.handleUpdate(ctx, m)
	case models.KeepAlive:
		return nil
	case models.Bye:
		e.terminated = true
		if m.Reason != "" {
			return fmt.Errorf("%w: %s", ErrRemoteClosed, m.Reason)
		}
		e.logger.Info().Str("space", e.spaceID).Msg("remote said bye")
		return nil
	default:
		return e.fatal(fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Kind()))
	}
}

func (e *Engine) handleWelcome(ctx context.Context, m models.Welcome) error {
	if e.authenticated {
		return e.fatal(fmt.Errorf("%w: welcome on an authenticated session", ErrProtocolViolation))
	}

	inst, err := e.store.GetInstance(ctx, e.creatorID, m.InstanceID)
	if errors.Is(err, store.ErrInstanceNotFound) {
		inst, err = e.store.RegisterInstance(ctx, e.creatorID, m.InstanceID, e.now().UTC())
	}
	if err != nil {
		return fmt.Errorf("resolve remote instance: %w", err)
	}

	e.remoteInstance = inst.InstanceID
	e.remotePos = inst.RemotePos
	e.authenticated = true
	e.working = true

	e.logger.Info().
		Str("space", e.spaceID).
		Str("remote_instance", e.remoteInstance).
		Int64("pos", e.remotePos).
		Msg("sync session authenticated")

	if e.cfg.DeviceToken != "" {
		if err := e.sender.Send(models.DeviceInfo{Token: e.cfg.DeviceToken, Type: e.cfg.DeviceType}); err != nil {
			return err
		}
	}
	return e.sendAsk(ctx)
}

// handleUpdate adopts the remote's advertised position. Arriving while a
// push offer is outstanding it also acknowledges the offer: the remote
// already holds everything offered, so the queue clears and a fresh ask
// continues convergence, mirroring the post-terminator pull path.
func (e *Engine) handleUpdate(ctx context.Context, m models.Update) error {
	if !e.authenticated {
		return e.fatal(fmt.Errorf("%w: update before welcome", ErrProtocolViolation))
	}
	if m.Pos > e.maxRemotePos {
		e.maxRemotePos = m.Pos
	}

	if len(e.pushable) == 0 {
		return nil
	}
	e.pushable = nil
	if m.Pos > e.pushablePos {
		e.pushablePos = m.Pos
	}
	return e.sendAsk(ctx)
}

func (e *Engine) handleDidAsk(ctx context.Context, m models.DidAsk) error {
	if !e.authenticated {
		return e.fatal(fmt.Errorf("%w: did-ask before welcome", ErrProtocolViolation))
	}
	if len(e.pullable) > 0 {
		return e.fatal(fmt.Errorf("%w: did-ask with %d blobs still pullable", ErrProtocolViolation, len(e.pullable)))
	}
	if m.Pos != e.remotePos {
		return e.fatal(fmt.Errorf("%w: did-ask pos %d, cursor at %d", ErrProtocolViolation, m.Pos, e.remotePos))
	}

	e.asking = false
	e.maxRemotePos = m.MaxPos
	e.pushablePos = m.LastPos
	e.pushPending = true

	// Items already present locally advance the already-have watermark
	// but never enter the pull queue. An explicit flag tracks whether the
	// watermark was actually observed, so an empty reply leaves the
	// cursor untouched.
	var gotMax int64
	sawExisting := false
	lastID := e.remotePos
	for _, item := range m.Items {
		if item.ID <= lastID {
			return e.fatal(fmt.Errorf("%w: did-ask item %d not past %d", ErrProtocolViolation, item.ID, lastID))
		}
		lastID = item.ID

		has, err := e.store.HasBlob(ctx, item.Hash)
		if err != nil {
			return fmt.Errorf("check blob %s: %w", item.Hash, err)
		}
		if has {
			sawExisting = true
			gotMax = item.ID
		} else {
			e.pullable = append(e.pullable, item)
		}
	}

	if len(e.pullable) > 0 {
		return e.sender.Send(models.Pull{Items: e.pullable})
	}

	if sawExisting {
		// Everything offered is already here: adopt the watermark and
		// ask again right away, the remote may hold more beyond it.
		e.remotePos = gotMax
		if err := e.persistPos(ctx); err != nil {
			return err
		}
		e.reportProgress(false)
		return e.sendAsk(ctx)
	}

	// Nothing new at all. The idle tick decides whether to re-ask or go
	// idle.
	e.reportProgress(false)
	return nil
}

func (e *Engine) handleDidPull(ctx context.Context, m models.DidPull) error {
	if !e.authenticated {
		return e.fatal(fmt.Errorf("%w: did-pull before welcome", ErrProtocolViolation))
	}
	if len(e.pullable) == 0 {
		return e.fatal(fmt.Errorf("%w: did-pull with nothing outstanding", ErrProtocolViolation))
	}

	if m.Terminator() {
		e.pullable = nil
		if err := e.persistPos(ctx); err != nil {
			return err
		}
		e.reportProgress(false)
		return e.sendAsk(ctx)
	}

	blob := *m.Blob
	if blob.ID <= e.remotePos {
		return e.fatal(fmt.Errorf("%w: pulled blob %d behind cursor %d", ErrProtocolViolation, blob.ID, e.remotePos))
	}

	if _, err := e.store.AppendBlobFromRemote(ctx, blob, e.remoteInstance); err != nil {
		return fmt.Errorf("append pulled blob %s: %w", blob.Hash, err)
	}

	// Pulls arrive in the requested ascending order, so adopting each id
	// keeps the cursor monotonic. The queue stays non-empty until the
	// terminator clears it, marking the batch as outstanding.
	e.remotePos = blob.ID
	e.pulled++
	e.reportProgress(false)
	return nil
}

// handlePull answers the remote's pull of previously offered local blobs:
// the push path with roles reversed.
func (e *Engine) handlePull(ctx context.Context, m models.Pull) error {
	if !e.authenticated {
		return e.fatal(fmt.Errorf("%w: pull before welcome", ErrProtocolViolation))
	}
	for _, item := range m.Items {
		blob, err := e.store.FindBlob(ctx, item.Hash)
		if errors.Is(err, store.ErrBlobNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load blob %s for push: %w", item.Hash, err)
		}
		if err := e.sender.Send(models.DidPull{Blob: &blob}); err != nil {
			return err
		}
		e.pushed++
		e.reportProgress(false)
	}
	if err := e.sender.Send(models.DidPull{Blob: nil}); err != nil {
		return err
	}

	// Pushing may have advanced the remote's position; ask again.
	e.pushable = nil
	return e.sendAsk(ctx)
}

// handlePush takes the remote's offer of new blobs: pull the ones missing
// locally, or tell the remote where our log already stands.
func (e *Engine) handlePush(ctx context.Context, m models.Push) error {
	if !e.authenticated {
		return e.fatal(fmt.Errorf("%w: push before welcome", ErrProtocolViolation))
	}
	if len(e.pullable) > 0 {
		return e.fatal(fmt.Errorf("%w: push with %d blobs still pullable", ErrProtocolViolation, len(e.pullable)))
	}

	lastID := int64(0)
	for _, item := range m.Items {
		if item.ID <= lastID {
			return e.fatal(fmt.Errorf("%w: push item %d not past %d", ErrProtocolViolation, item.ID, lastID))
		}
		lastID = item.ID

		has, err := e.store.HasBlob(ctx, item.Hash)
		if err != nil {
			return fmt.Errorf("check blob %s: %w", item.Hash, err)
		}
		if !has {
			e.pullable = append(e.pullable, item)
		}
	}

	if len(e.pullable) > 0 {
		return e.sender.Send(models.Pull{Items: e.pullable})
	}

	maxLocal, err := e.store.MaxLocalBlobID(ctx)
	if err != nil {
		return fmt.Errorf("read max blob id: %w", err)
	}
	return e.sender.Send(models.Update{Pos: maxLocal})
}

// IdleTick runs the between-messages work: push discovery, convergence
// polling and the transition to idle. The owner calls it on every scheduler
// pass; it is a no-op while a request is outstanding or a queue is busy.
func (e *Engine) IdleTick(ctx context.Context) error {
	if e.terminated {
		return ErrSessionClosed
	}
	if !e.authenticated || e.asking || len(e.pullable) > 0 || len(e.pushable) > 0 {
		return nil
	}

	if e.pushPending {
		e.pushPending = false
		refs, err := e.store.ListPushableSince(ctx, e.pushablePos, e.remoteInstance)
		if err != nil {
			return fmt.Errorf("list pushable blobs: %w", err)
		}
		if len(refs) > 0 {
			e.pushable = refs
			e.working = true
			return e.sender.Send(models.Push{Pos: e.pushablePos, Items: refs})
		}
	}

	if e.remotePos < e.maxRemotePos || e.now().Sub(e.lastAskAt) > e.cfg.ReaskAfter {
		return e.sendAsk(ctx)
	}

	if e.working {
		e.working = false
		e.lastSynced = e.now().UTC()
		if err := e.store.SetSetting(ctx, store.SettingLastSyncedPrefix+e.remoteInstance,
			e.lastSynced.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record last synced: %w", err)
		}
		e.reportProgress(true)
		e.pulled, e.pushed = 0, 0
	}
	return nil
}

// StartSync forces a new convergence round on behalf of the owner.
func (e *Engine) StartSync(ctx context.Context) error {
	if e.terminated {
		return ErrSessionClosed
	}
	if !e.authenticated || e.working || e.asking {
		return nil
	}
	e.working = true
	e.reportProgress(true)
	return e.sendAsk(ctx)
}

// UpdateDeviceInfo records new device metadata and re-announces it.
func (e *Engine) UpdateDeviceInfo(ctx context.Context, token, deviceType string) error {
	if e.terminated {
		return ErrSessionClosed
	}
	e.cfg.DeviceToken, e.cfg.DeviceType = token, deviceType
	if err := e.store.SetSetting(ctx, store.SettingDeviceToken, token); err != nil {
		return fmt.Errorf("save device token: %w", err)
	}
	if err := e.store.SetSetting(ctx, store.SettingDeviceType, deviceType); err != nil {
		return fmt.Errorf("save device type: %w", err)
	}
	if !e.authenticated {
		return nil
	}
	return e.sender.Send(models.DeviceInfo{Token: token, Type: deviceType})
}

// Stop announces departure and terminates the session. It does not wait for
// the remote's acknowledgment.
func (e *Engine) Stop() error {
	if e.terminated {
		return nil
	}
	e.terminated = true
	return e.sender.Send(models.Bye{})
}

// Terminated reports whether the session has ended, by Stop, a bye from the
// remote, or a fatal protocol error.
func (e *Engine) Terminated() bool { return e.terminated }

// Status returns the current progress snapshot.
func (e *Engine) Status() models.SyncStatus {
	return models.SyncStatus{
		Working:    e.working,
		Pulled:     e.pulled,
		Pushed:     e.pushed,
		LastSynced: e.lastSynced,
		Pos:        e.remotePos,
		MaxPos:     e.maxRemotePos,
	}
}

func (e *Engine) sendAsk(ctx context.Context) error {
	maxLocal, err := e.store.MaxLocalBlobID(ctx)
	if err != nil {
		return fmt.Errorf("read max blob id: %w", err)
	}
	e.asking = true
	e.working = true
	e.lastAskAt = e.now()
	return e.sender.Send(models.Ask{Pos: e.remotePos, MaxLocalID: maxLocal})
}

func (e *Engine) persistPos(ctx context.Context) error {
	if err := e.store.SaveInstancePosition(ctx, e.remotePos, e.creatorID, e.remoteInstance); err != nil {
		return fmt.Errorf("persist watermark: %w", err)
	}
	return nil
}

// reportProgress emits a status snapshot, throttled to one per ReportEvery
// unless forced.
func (e *Engine) reportProgress(forced bool) {
	now := e.now()
	if !forced && now.Sub(e.lastReportAt) < e.cfg.ReportEvery {
		return
	}
	e.lastReportAt = now
	e.report(e.Status())
}

func (e *Engine) fatal(err error) error {
	e.terminated = true
	e.logger.Error().Err(err).Str("space", e.spaceID).Msg("sync session terminated")
	return err
}
