package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncspace/spacesync/internal/crypto"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/internal/store"
	"github.com/syncspace/spacesync/models"
)

type fakeStore struct {
	settings  map[string]string
	blobs     map[string]models.Blob
	nextID    int64
	instances map[string]models.Instance
	savedPos  []int64
	pushable  []models.BlobRef
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: map[string]string{
			store.SettingSpaceID:      "space-1",
			store.SettingCreatorID:    "creator-1",
			store.SettingInstanceID:   "local-instance",
			store.SettingSharedSecret: "hunter2",
		},
		blobs:     map[string]models.Blob{},
		instances: map[string]models.Instance{},
	}
}

func (s *fakeStore) seed(hash string) {
	s.nextID++
	s.blobs[hash] = models.Blob{ID: s.nextID, Hash: hash}
}

func (s *fakeStore) HasBlob(_ context.Context, hash string) (bool, error) {
	_, ok := s.blobs[hash]
	return ok, nil
}

func (s *fakeStore) FindBlob(_ context.Context, hash string) (models.Blob, error) {
	blob, ok := s.blobs[hash]
	if !ok {
		return models.Blob{}, store.ErrBlobNotFound
	}
	return blob, nil
}

func (s *fakeStore) AppendBlobFromRemote(_ context.Context, blob models.Blob, source string) (int64, error) {
	if existing, ok := s.blobs[blob.Hash]; ok {
		return existing.ID, nil
	}
	s.nextID++
	blob.ID = s.nextID
	blob.SourceInstance = source
	s.blobs[blob.Hash] = blob
	return blob.ID, nil
}

func (s *fakeStore) ListPushableSince(_ context.Context, pos int64, _ string) ([]models.BlobRef, error) {
	var refs []models.BlobRef
	for _, ref := range s.pushable {
		if ref.ID > pos {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (s *fakeStore) MaxLocalBlobID(_ context.Context) (int64, error) {
	return s.nextID, nil
}

func (s *fakeStore) GetInstance(_ context.Context, creatorID, instanceID string) (models.Instance, error) {
	inst, ok := s.instances[creatorID+"/"+instanceID]
	if !ok {
		return models.Instance{}, store.ErrInstanceNotFound
	}
	return inst, nil
}

func (s *fakeStore) RegisterInstance(_ context.Context, creatorID, instanceID string, ts time.Time) (models.Instance, error) {
	inst := models.Instance{CreatorID: creatorID, InstanceID: instanceID, RegisteredAt: ts}
	s.instances[creatorID+"/"+instanceID] = inst
	return inst, nil
}

func (s *fakeStore) SaveInstancePosition(_ context.Context, pos int64, creatorID, instanceID string) error {
	inst, ok := s.instances[creatorID+"/"+instanceID]
	if !ok {
		return store.ErrInstanceNotFound
	}
	inst.RemotePos = pos
	s.instances[creatorID+"/"+instanceID] = inst
	s.savedPos = append(s.savedPos, pos)
	return nil
}

func (s *fakeStore) GetSetting(_ context.Context, key string) (string, error) {
	value, ok := s.settings[key]
	if !ok {
		return "", store.ErrSettingNotFound
	}
	return value, nil
}

func (s *fakeStore) SetSetting(_ context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}

type fakeSender struct {
	sent []models.Message
}

func (f *fakeSender) Send(msg models.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) last() models.Message {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// unknownMsg stands in for a message outside the protocol's closed set.
type unknownMsg struct{}

func (unknownMsg) Kind() models.MessageKind { return "gossip" }

func newTestEngine(cfg Config, fs *fakeStore, report Reporter) (*Engine, *fakeSender, *time.Time) {
	sender := &fakeSender{}
	e := New(cfg, fs, sender, report, logger.Nop())
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, sender, &now
}

func authenticate(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.HandleMessage(ctx, models.Welcome{InstanceID: "remote-1"}))
}

func TestStart_SendsSecretDigestNotSecret(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)

	require.NoError(t, e.Start(context.Background()))

	require.Len(t, sender.sent, 1)
	hello, ok := sender.sent[0].(models.Hello)
	require.True(t, ok)
	assert.Equal(t, "space-1", hello.SpaceID)
	assert.Equal(t, "local-instance", hello.InstanceID)
	assert.Equal(t, crypto.SecretHash("hunter2"), hello.SecretHash)
	assert.NotContains(t, hello.SecretHash, "hunter2")
}

func TestStart_CreatorMismatchIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{CreatorID: "somebody-else"}, fs, nil)

	err := e.Start(context.Background())
	assert.ErrorIs(t, err, ErrIdentityMismatch)
	assert.True(t, e.Terminated())
	assert.Empty(t, sender.sent)
}

func TestWelcome_AdoptsPersistedWatermarkAndAsks(t *testing.T) {
	fs := newFakeStore()
	fs.instances["creator-1/remote-1"] = models.Instance{
		CreatorID: "creator-1", InstanceID: "remote-1", RemotePos: 12,
	}
	e, sender, _ := newTestEngine(Config{DeviceToken: "tok", DeviceType: "desktop"}, fs, nil)

	authenticate(t, e)

	// hello, device-info, ask
	require.Len(t, sender.sent, 3)
	info, ok := sender.sent[1].(models.DeviceInfo)
	require.True(t, ok)
	assert.Equal(t, "tok", info.Token)
	ask, ok := sender.sent[2].(models.Ask)
	require.True(t, ok)
	assert.Equal(t, int64(12), ask.Pos)
}

func TestWelcome_RegistersUnknownInstance(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)

	authenticate(t, e)

	_, ok := fs.instances["creator-1/remote-1"]
	assert.True(t, ok)
	ask, ok := sender.last().(models.Ask)
	require.True(t, ok)
	assert.Zero(t, ask.Pos, "fresh instance starts at position zero")
}

func TestDidAsk_PosMismatchIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	err := e.HandleMessage(context.Background(), models.DidAsk{Pos: 5, MaxPos: 5})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.True(t, e.Terminated())
	assert.Zero(t, e.Status().Pos, "cursor must not move on a mismatch")
	assert.Empty(t, fs.savedPos)
}

func TestDidAsk_NonMonotonicItemsAreFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	err := e.HandleMessage(context.Background(), models.DidAsk{
		Pos:    0,
		MaxPos: 3,
		Items:  []models.BlobRef{{ID: 2, Hash: "b"}, {ID: 1, Hash: "a"}},
	})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.True(t, e.Terminated())
}

func TestDidAsk_MissingItemsArePulled(t *testing.T) {
	fs := newFakeStore()
	fs.seed("known")
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.HandleMessage(context.Background(), models.DidAsk{
		Pos:    0,
		MaxPos: 3,
		Items:  []models.BlobRef{{ID: 2, Hash: "known"}, {ID: 3, Hash: "missing"}},
	}))

	pull, ok := sender.last().(models.Pull)
	require.True(t, ok)
	require.Len(t, pull.Items, 1, "already-present content never enters the pull queue")
	assert.Equal(t, "missing", pull.Items[0].Hash)
}

func TestDidAsk_AllKnownAdvancesWatermarkAndReasks(t *testing.T) {
	fs := newFakeStore()
	fs.seed("a")
	fs.seed("b")
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.HandleMessage(context.Background(), models.DidAsk{
		Pos:    0,
		MaxPos: 9,
		Items:  []models.BlobRef{{ID: 4, Hash: "a"}, {ID: 7, Hash: "b"}},
	}))

	assert.Equal(t, int64(7), e.Status().Pos)
	assert.Equal(t, []int64{7}, fs.savedPos, "watermark persisted before re-asking")
	ask, ok := sender.last().(models.Ask)
	require.True(t, ok)
	assert.Equal(t, int64(7), ask.Pos)
}

func TestDidAsk_EmptyReplyLeavesCursorAndDoesNotReask(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	asksBefore := len(sender.sent)

	require.NoError(t, e.HandleMessage(context.Background(), models.DidAsk{Pos: 0, MaxPos: 0}))

	assert.Zero(t, e.Status().Pos)
	assert.Empty(t, fs.savedPos)
	assert.Len(t, sender.sent, asksBefore, "an empty reply defers to the idle tick")
}

func TestDidPull_AdvancesCursorPerBlobAndPersistsOnTerminator(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{
		Pos:    0,
		MaxPos: 2,
		Items:  []models.BlobRef{{ID: 1, Hash: "a"}, {ID: 2, Hash: "b"}},
	}))

	require.NoError(t, e.HandleMessage(ctx, models.DidPull{
		Blob: &models.Blob{ID: 1, Hash: "a", Payload: []byte("a")},
	}))
	assert.Equal(t, int64(1), e.Status().Pos)
	assert.Empty(t, fs.savedPos, "cursor is durable only at batch end")

	require.NoError(t, e.HandleMessage(ctx, models.DidPull{
		Blob: &models.Blob{ID: 2, Hash: "b", Payload: []byte("b")},
	}))
	assert.Equal(t, int64(2), e.Status().Pos)
	assert.Equal(t, int64(2), e.Status().Pulled)

	require.NoError(t, e.HandleMessage(ctx, models.DidPull{Blob: nil}))
	assert.Equal(t, []int64{2}, fs.savedPos)
	_, ok := sender.last().(models.Ask)
	assert.True(t, ok, "terminator triggers the next ask")
}

func TestDidPull_WithNothingOutstandingIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	err := e.HandleMessage(context.Background(), models.DidPull{Blob: nil})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.True(t, e.Terminated())
}

func TestDidPull_DecreasingPositionIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{
		Pos: 0, MaxPos: 2,
		Items: []models.BlobRef{{ID: 1, Hash: "a"}, {ID: 2, Hash: "b"}},
	}))
	require.NoError(t, e.HandleMessage(ctx, models.DidPull{
		Blob: &models.Blob{ID: 2, Hash: "b", Payload: []byte("b")},
	}))

	err := e.HandleMessage(ctx, models.DidPull{
		Blob: &models.Blob{ID: 1, Hash: "a", Payload: []byte("a")},
	})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestPull_AnswersWithBlobsAndTerminator(t *testing.T) {
	fs := newFakeStore()
	fs.seed("a")
	fs.seed("b")
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	before := len(sender.sent)

	require.NoError(t, e.HandleMessage(context.Background(), models.Pull{
		Items: []models.BlobRef{{ID: 1, Hash: "a"}, {ID: 5, Hash: "gone"}, {ID: 2, Hash: "b"}},
	}))

	replies := sender.sent[before:]
	// blob a, blob b (missing hash skipped), terminator, fresh ask
	require.Len(t, replies, 4)
	first, ok := replies[0].(models.DidPull)
	require.True(t, ok)
	assert.Equal(t, "a", first.Blob.Hash)
	second := replies[1].(models.DidPull)
	assert.Equal(t, "b", second.Blob.Hash)
	assert.True(t, replies[2].(models.DidPull).Terminator())
	_, ok = replies[3].(models.Ask)
	assert.True(t, ok)
	assert.Equal(t, int64(2), e.Status().Pushed)
}

func TestPush_PullsOnlyMissingItems(t *testing.T) {
	fs := newFakeStore()
	fs.seed("have")
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.HandleMessage(context.Background(), models.Push{
		Pos:   0,
		Items: []models.BlobRef{{ID: 3, Hash: "have"}, {ID: 4, Hash: "want"}},
	}))

	pull, ok := sender.last().(models.Pull)
	require.True(t, ok)
	require.Len(t, pull.Items, 1)
	assert.Equal(t, "want", pull.Items[0].Hash)
}

func TestPush_AllKnownAnswersWithUpdate(t *testing.T) {
	fs := newFakeStore()
	fs.seed("have")
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.HandleMessage(context.Background(), models.Push{
		Pos:   0,
		Items: []models.BlobRef{{ID: 3, Hash: "have"}},
	}))

	update, ok := sender.last().(models.Update)
	require.True(t, ok)
	assert.Equal(t, int64(1), update.Pos)
}

func TestPush_WhilePullingIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{
		Pos: 0, MaxPos: 1,
		Items: []models.BlobRef{{ID: 1, Hash: "a"}},
	}))

	err := e.HandleMessage(ctx, models.Push{Items: []models.BlobRef{{ID: 9, Hash: "x"}}})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestIdleTick_DiscoversPushableBlobs(t *testing.T) {
	fs := newFakeStore()
	fs.pushable = []models.BlobRef{{ID: 5, Hash: "mine"}}
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	// did-ask seeds the pushable cursor
	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 0, LastPos: 2}))

	require.NoError(t, e.IdleTick(ctx))

	push, ok := sender.last().(models.Push)
	require.True(t, ok)
	assert.Equal(t, int64(2), push.Pos)
	require.Len(t, push.Items, 1)
	assert.Equal(t, "mine", push.Items[0].Hash)
}

func TestIdleTick_ConvergenceGoesIdleExactlyOnce(t *testing.T) {
	fs := newFakeStore()
	var reports []models.SyncStatus
	e, sender, now := newTestEngine(Config{}, fs, func(s models.SyncStatus) {
		reports = append(reports, s)
	})
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 0}))
	reports = nil
	sends := len(sender.sent)

	// First tick: one idle transition, one forced report, no new ask.
	require.NoError(t, e.IdleTick(ctx))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Working)
	assert.Len(t, sender.sent, sends)
	assert.Equal(t, now.UTC().Format(time.RFC3339),
		fs.settings[store.SettingLastSyncedPrefix+"remote-1"])

	// Further ticks within the re-ask window stay quiet.
	for i := 0; i < 5; i++ {
		require.NoError(t, e.IdleTick(ctx))
	}
	assert.Len(t, reports, 1)
	assert.Len(t, sender.sent, sends)

	// Past the re-ask window a fresh ask goes out.
	*now = now.Add(16 * time.Second)
	require.NoError(t, e.IdleTick(ctx))
	_, ok := sender.last().(models.Ask)
	assert.True(t, ok)
}

func TestIdleTick_ReasksWhenRemoteIsAhead(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 10}))
	sends := len(sender.sent)

	require.NoError(t, e.IdleTick(ctx))
	require.Len(t, sender.sent, sends+1)
	_, ok := sender.last().(models.Ask)
	assert.True(t, ok)
}

func TestUpdate_AcknowledgesPushOfferAndReasks(t *testing.T) {
	fs := newFakeStore()
	fs.seed("mine")
	fs.pushable = []models.BlobRef{{ID: 1, Hash: "mine"}}
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 0, LastPos: 0}))
	require.NoError(t, e.IdleTick(ctx))
	_, ok := sender.last().(models.Push)
	require.True(t, ok)

	// The remote already holds everything offered and answers with its
	// position instead of pulling.
	require.NoError(t, e.HandleMessage(ctx, models.Update{Pos: 1}))

	ask, ok := sender.last().(models.Ask)
	require.True(t, ok, "acknowledged offer must trigger a fresh ask")
	assert.Zero(t, ask.Pos)
	assert.Equal(t, int64(1), e.Status().MaxPos)

	// Convergence continues to a clean idle transition.
	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{
		Pos: 0, MaxPos: 1, LastPos: 1,
		Items: []models.BlobRef{{ID: 1, Hash: "mine"}},
	}))
	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 1, MaxPos: 1, LastPos: 1}))

	sends := len(sender.sent)
	require.NoError(t, e.IdleTick(ctx))
	assert.False(t, e.Status().Working, "session reaches idle after the acknowledged push")
	assert.Len(t, sender.sent, sends, "no further messages once converged")
}

func TestDataPlaneBeforeWelcomeIsFatal(t *testing.T) {
	tests := []struct {
		name string
		msg  models.Message
	}{
		{"did-ask", models.DidAsk{Pos: 0, MaxPos: 1}},
		{"did-pull", models.DidPull{}},
		{"pull", models.Pull{Items: []models.BlobRef{{ID: 1, Hash: "a"}}}},
		{"push", models.Push{Items: []models.BlobRef{{ID: 1, Hash: "a"}}}},
		{"update", models.Update{Pos: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			e, _, _ := newTestEngine(Config{}, fs, nil)
			require.NoError(t, e.Start(context.Background()))

			err := e.HandleMessage(context.Background(), tt.msg)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			assert.True(t, e.Terminated())
		})
	}
}

func TestUpdate_AdvancesMaxRemotePos(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	ctx := context.Background()

	require.NoError(t, e.HandleMessage(ctx, models.Update{Pos: 8}))
	assert.Equal(t, int64(8), e.Status().MaxPos)

	// Regressions are ignored.
	require.NoError(t, e.HandleMessage(ctx, models.Update{Pos: 3}))
	assert.Equal(t, int64(8), e.Status().MaxPos)
}

func TestBye_WithReasonIsAnError(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	err := e.HandleMessage(context.Background(), models.Bye{Reason: "kicked"})
	assert.ErrorIs(t, err, ErrRemoteClosed)
	assert.True(t, e.Terminated())
}

func TestBye_GracefulIsNotAnError(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.HandleMessage(context.Background(), models.Bye{}))
	assert.True(t, e.Terminated())
	assert.ErrorIs(t, e.HandleMessage(context.Background(), models.KeepAlive{}), ErrSessionClosed)
}

func TestUnknownMessageIsFatal(t *testing.T) {
	fs := newFakeStore()
	e, _, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	err := e.HandleMessage(context.Background(), unknownMsg{})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.True(t, e.Terminated())
}

func TestKeepAliveIsIgnored(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)
	sends := len(sender.sent)

	require.NoError(t, e.HandleMessage(context.Background(), models.KeepAlive{}))
	assert.Len(t, sender.sent, sends)
}

func TestStartSync_ForcesReportAndAsk(t *testing.T) {
	fs := newFakeStore()
	var reports []models.SyncStatus
	e, sender, _ := newTestEngine(Config{}, fs, func(s models.SyncStatus) {
		reports = append(reports, s)
	})
	authenticate(t, e)
	ctx := context.Background()

	// Converge and go idle first.
	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 0}))
	require.NoError(t, e.IdleTick(ctx))
	reports = nil

	require.NoError(t, e.StartSync(ctx))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Working)
	_, ok := sender.last().(models.Ask)
	assert.True(t, ok)

	// Already working: a second request is a no-op.
	sends := len(sender.sent)
	require.NoError(t, e.StartSync(ctx))
	assert.Len(t, sender.sent, sends)
}

func TestUpdateDeviceInfo_PersistsAndAnnounces(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.UpdateDeviceInfo(context.Background(), "tok-9", "mobile"))

	assert.Equal(t, "tok-9", fs.settings[store.SettingDeviceToken])
	assert.Equal(t, "mobile", fs.settings[store.SettingDeviceType])
	info, ok := sender.last().(models.DeviceInfo)
	require.True(t, ok)
	assert.Equal(t, "tok-9", info.Token)
	assert.Equal(t, "mobile", info.Type)
}

func TestStop_SaysByeOnce(t *testing.T) {
	fs := newFakeStore()
	e, sender, _ := newTestEngine(Config{}, fs, nil)
	authenticate(t, e)

	require.NoError(t, e.Stop())
	_, ok := sender.last().(models.Bye)
	assert.True(t, ok)
	assert.True(t, e.Terminated())

	sends := len(sender.sent)
	require.NoError(t, e.Stop())
	assert.Len(t, sender.sent, sends)
}

func TestProgressReportsAreThrottled(t *testing.T) {
	fs := newFakeStore()
	var reports []models.SyncStatus
	e, _, now := newTestEngine(Config{}, fs, func(s models.SyncStatus) {
		reports = append(reports, s)
	})
	authenticate(t, e)
	ctx := context.Background()

	items := make([]models.BlobRef, 0, 4)
	for i := int64(1); i <= 4; i++ {
		items = append(items, models.BlobRef{ID: i, Hash: fmt.Sprintf("h%d", i)})
	}
	require.NoError(t, e.HandleMessage(ctx, models.DidAsk{Pos: 0, MaxPos: 4, Items: items}))
	reports = nil

	// Two blobs within the same second: only the first is reported.
	require.NoError(t, e.HandleMessage(ctx, models.DidPull{Blob: &models.Blob{ID: 1, Hash: "h1"}}))
	require.NoError(t, e.HandleMessage(ctx, models.DidPull{Blob: &models.Blob{ID: 2, Hash: "h2"}}))
	assert.Len(t, reports, 1)

	*now = now.Add(time.Second)
	require.NoError(t, e.HandleMessage(ctx, models.DidPull{Blob: &models.Blob{ID: 3, Hash: "h3"}}))
	assert.Len(t, reports, 2)
}
