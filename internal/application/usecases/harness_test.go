package usecases

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"go-dm/internal/application/ports"
	"go-dm/internal/application/usecases/mocks"
	"go-dm/internal/domain/entities"
	"go-dm/internal/infrastructure/adapters/external"
	"go-dm/internal/infrastructure/adapters/persistence"
	"go-dm/internal/store/sqlstore"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// harness 真实 SQLite 仓储 + gomock 外部协作方
type harness struct {
	t  *testing.T
	db *sql.DB
	uc *MessagingUseCase

	messages  ports.MessageRepository
	pairs     ports.PairRepository
	views     ports.ViewRepository
	blocks    ports.BlockRepository
	greetings ports.GreetingRepository
	prefRepo  ports.PreferenceRepository
	oracle    ports.RelationshipOracle
	metrics   ports.MetricsService
	logger    ports.LogService

	ctrl     *gomock.Controller
	notifier *mocks.MockNotificationSink
	events   *mocks.MockEventPublisher
	media    *mocks.MockMediaStore

	mu            sync.Mutex
	clock         time.Time
	notifications []recordedNotification
	published     []*ports.MessageEvent
}

type recordedNotification struct {
	UserID string
	N      *ports.Notification
}

func defaultConfig() MessagingConfig {
	return MessagingConfig{
		Enabled:              true,
		SystemAllowStranger:  true,
		DefaultAllowStranger: true,
		WithdrawWindow:       2 * time.Minute,
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := sqlstore.Open(sqlstore.DriverSQLite, dsn, sqlstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.Migrate(context.Background(), db, persistence.DialectSQLite, true))
	_, err = db.Exec(`INSERT INTO users(id, nickname, avatar_url) VALUES
		('alice', 'Alice', 'avatars/alice.png'), ('bob', 'Bob', ''), ('carol', 'Carol', ''), ('dave', 'Dave', '')`)
	require.NoError(t, err)
	return db
}

func testLogger() ports.LogService {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return external.NewLogServiceAdapter(l, "test")
}

func newHarness(t *testing.T, cfg MessagingConfig) *harness {
	t.Helper()
	db := newTestDB(t)
	d := persistence.DialectSQLite
	ctrl := gomock.NewController(t)

	h := &harness{
		t:         t,
		db:        db,
		messages:  persistence.NewMessageRepositoryAdapter(db),
		pairs:     persistence.NewPairRepositoryAdapter(db, d),
		views:     persistence.NewViewRepositoryAdapter(db, d),
		blocks:    persistence.NewBlockRepositoryAdapter(db, d),
		greetings: persistence.NewGreetingRepositoryAdapter(db, d),
		prefRepo:  persistence.NewPreferenceRepositoryAdapter(db, d),
		oracle:    persistence.NewFollowOracleAdapter(db),
		metrics:   external.NewMetricsServiceAdapter(),
		logger:    testLogger(),
		ctrl:      ctrl,
		notifier:  mocks.NewMockNotificationSink(ctrl),
		events:    mocks.NewMockEventPublisher(ctrl),
		media:     mocks.NewMockMediaStore(ctrl),
		clock:     epoch,
	}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, userID string, n *ports.Notification) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notifications = append(h.notifications, recordedNotification{UserID: userID, N: n})
		}).AnyTimes()
	h.events.EXPECT().PublishMessage(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e *ports.MessageEvent) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
		}).AnyTimes()

	h.uc = NewMessagingUseCase(h.deps(), cfg)
	h.uc.now = h.now
	h.uc.async = func(task func()) { task() }
	return h
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Messages:    h.messages,
		Pairs:       h.pairs,
		Views:       h.views,
		Blocks:      h.blocks,
		Greetings:   h.greetings,
		Preferences: h.prefRepo,
		Oracle:      h.oracle,
		Profiles:    persistence.NewProfileLookupAdapter(h.db),
		Media:       h.media,
		Notifier:    h.notifier,
		Events:      h.events,
		IDs:         external.NewIDGeneratorAdapter(),
		Metrics:     h.metrics,
		Logger:      h.logger,
	}
}

// now 每次调用前进一秒，保证消息时间严格递增
func (h *harness) now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = h.clock.Add(d)
}

func (h *harness) follow(follower, followee string) {
	h.t.Helper()
	_, err := h.db.Exec(`INSERT INTO follows(follower_id, followee_id) VALUES (?, ?)`, follower, followee)
	require.NoError(h.t, err)
}

func (h *harness) mutual(a, b string) {
	h.follow(a, b)
	h.follow(b, a)
}

func (h *harness) send(from, to, content string) *SendResult {
	h.t.Helper()
	res, err := h.uc.Send(context.Background(), &SendRequest{SenderID: from, ReceiverID: to, Content: content})
	require.NoError(h.t, err)
	return res
}

func (h *harness) view(owner, other string) *entities.ConversationView {
	h.t.Helper()
	v, err := h.views.Get(context.Background(), owner, other)
	require.NoError(h.t, err)
	return v
}

func (h *harness) unread(owner, other string) int64 {
	h.t.Helper()
	n, err := h.uc.GetUnreadCount(context.Background(), owner, other)
	require.NoError(h.t, err)
	return n
}

func (h *harness) pair(a, b string) *entities.ConversationPair {
	h.t.Helper()
	p, err := h.pairs.Get(context.Background(), entities.NewPairKey(a, b))
	require.NoError(h.t, err)
	return p
}

func (h *harness) greetingUsed(from, to string) bool {
	h.t.Helper()
	ok, err := h.greetings.Exists(context.Background(), from, to)
	require.NoError(h.t, err)
	return ok
}

func (h *harness) notificationsFor(userID, typ string) []*ports.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*ports.Notification
	for _, n := range h.notifications {
		if n.UserID == userID && n.N.Type == typ {
			out = append(out, n.N)
		}
	}
	return out
}

func (h *harness) visibleIDs(owner, other string) []string {
	h.t.Helper()
	msgs, err := h.uc.ListMessages(context.Background(), owner, other, 1, 100)
	require.NoError(h.t, err)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
