package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/shoppingcart/internal/cart/application"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/persistence/memory"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
)

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return p.err
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type fakeCollector struct {
	mu              sync.Mutex
	created         int
	deleted         int
	evicted         int
	active          int
	publishFailures []string
}

func (c *fakeCollector) RecordCartCreated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
}

func (c *fakeCollector) RecordCartDeleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
}

func (c *fakeCollector) RecordSweep(n int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicted += n
}

func (c *fakeCollector) SetActiveCarts(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = n
}

func (c *fakeCollector) RecordPublishFailure(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishFailures = append(c.publishFailures, topic)
}

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *domain.ManualClock
	publisher *fakePublisher
	collector *fakeCollector
	svc       *application.CartApplicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     domain.NewManualClock(start),
		publisher: &fakePublisher{},
		collector: &fakeCollector{},
	}
	f.svc = application.NewCartApplicationService(
		memory.NewCartRepository(f.clock),
		f.publisher,
		application.WithClock(f.clock),
		application.WithMetrics(f.collector),
		application.WithInactivityWindow(600*time.Second),
	)
	return f
}

func requireNotFound(t *testing.T, err error, id int64) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	var nf *domain.CartNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, id, nf.CartID)
	assert.Equal(t, domain.CodeCartNotFound, nf.Code())
}

func TestCreateCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.svc.CreateCart(ctx)
	b := f.svc.CreateCart(ctx)

	assert.Less(t, a.ID, b.ID)
	assert.Empty(t, a.Products)
	assert.Equal(t, start, a.LastUpdated)
	assert.Equal(t, []string{domain.TopicCartCreated, domain.TopicCartCreated}, f.publisher.topics())
	assert.Equal(t, 2, f.collector.created)
	assert.Equal(t, 2, f.collector.active)
	assert.Equal(t, 2, f.svc.CountCarts(ctx))
}

func TestGetCart_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetCart(context.Background(), 999)
	requireNotFound(t, err, 999)
	assert.Equal(t, "Cart with given id: 999 was not found", err.Error())
}

func TestAddItems_OverwriteAndLaterTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.svc.CreateCart(ctx)

	f.clock.Advance(time.Second)
	first, err := f.svc.AddItems(ctx, cart.ID, map[int64]application.ItemView{
		1: {ID: 1, Description: "X", Quantity: 1},
	})
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	second, err := f.svc.AddItems(ctx, cart.ID, map[int64]application.ItemView{
		1: {ID: 1, Description: "X", Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, map[int64]application.ItemView{1: {ID: 1, Description: "X", Quantity: 2}}, second.Products)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))

	got, err := f.svc.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestAddItems_NegativeQuantityRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.svc.CreateCart(ctx)

	f.clock.Advance(time.Minute)
	_, err := f.svc.AddItems(ctx, cart.ID, map[int64]application.ItemView{
		1: {ID: 1, Description: "X", Quantity: -1},
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	got, err := f.svc.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Products)
	assert.Equal(t, start, got.LastUpdated)
}

func TestAddItems_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItems(context.Background(), 5, map[int64]application.ItemView{1: {ID: 1, Quantity: 1}})
	requireNotFound(t, err, 5)
}

func TestDeleteCart_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.svc.CreateCart(ctx)

	require.NoError(t, f.svc.DeleteCart(ctx, cart.ID))
	requireNotFound(t, f.svc.DeleteCart(ctx, cart.ID), cart.ID)

	_, err := f.svc.GetCart(ctx, cart.ID)
	requireNotFound(t, err, cart.ID)

	assert.Equal(t, 1, f.collector.deleted)
	assert.Equal(t, 0, f.collector.active)
	assert.Equal(t, []string{domain.TopicCartCreated, domain.TopicCartDeleted}, f.publisher.topics())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("kafka unavailable")
	ctx := context.Background()

	cart := f.svc.CreateCart(ctx)
	_, err := f.svc.AddItems(ctx, cart.ID, map[int64]application.ItemView{1: {ID: 1, Quantity: 1}})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.TopicCartCreated, domain.TopicCartItemsAdded}, f.collector.publishFailures)
}

func TestRunEvictionSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.svc.CreateCart(ctx)
	f.clock.Advance(1100 * time.Second)
	fresh := f.svc.CreateCart(ctx)
	f.clock.Advance(100 * time.Second)

	evicted := f.svc.RunEvictionSweep(ctx)

	assert.Equal(t, []int64{stale.ID}, evicted)
	_, err := f.svc.GetCart(ctx, stale.ID)
	requireNotFound(t, err, stale.ID)
	_, err = f.svc.GetCart(ctx, fresh.ID)
	require.NoError(t, err)

	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, domain.TopicCartEvicted, last.topic)
	assert.Equal(t, "1", last.key)
	ev, ok := last.event.(domain.CartEvictedEvent)
	require.True(t, ok)
	assert.Equal(t, stale.ID, ev.CartID)
	assert.Equal(t, 1, f.collector.evicted)
	assert.Equal(t, 1, f.collector.active)
}

func TestRunEvictionSweep_MergeAfterEvictionIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.svc.CreateCart(ctx)

	f.clock.Advance(600 * time.Second)
	require.Equal(t, []int64{cart.ID}, f.svc.RunEvictionSweep(ctx))

	_, err := f.svc.AddItems(ctx, cart.ID, map[int64]application.ItemView{1: {ID: 1, Quantity: 1}})
	requireNotFound(t, err, cart.ID)
}

type panickingRepository struct {
	domain.CartRepository
}

func (panickingRepository) SweepExpired(time.Time, time.Duration) []int64 {
	panic("store corrupted")
}

func TestRunEvictionSweep_RecoversPanic(t *testing.T) {
	svc := application.NewCartApplicationService(panickingRepository{}, &fakePublisher{})

	var evicted []int64
	require.NotPanics(t, func() {
		evicted = svc.RunEvictionSweep(context.Background())
	})
	assert.Empty(t, evicted)
}

func TestRunEvictionSweep_LogsDuration(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.New(&buf, logger.Config{Level: "debug", Format: "json"}))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t)
	f.svc.RunEvictionSweep(context.Background())

	assert.Contains(t, buf.String(), `"msg":"cart eviction sweep finished"`)
	assert.Contains(t, buf.String(), `"duration"`)
}
