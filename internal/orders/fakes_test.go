package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashendes/order-saga/internal/clients"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeCatalog struct {
	mu          sync.Mutex
	products    map[string]models.Product
	reserveFail map[string]bool
	fetched     []string
	reserved    []string
	released    []string
}

func newFakeCatalog(products ...models.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]models.Product{}, reserveFail: map[string]bool{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) FetchProduct(ctx context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", clients.ErrCatalogUnavailable, err)
	}
	c.fetched = append(c.fetched, id)
	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, clients.ErrProductNotFound)
	}
	return &p, nil
}

func (c *fakeCatalog) ReserveStock(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reserveFail[id] {
		return clients.ErrReservationFailed
	}
	c.reserved = append(c.reserved, id)
	return nil
}

func (c *fakeCatalog) ReleaseStock(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, id)
	return nil
}

func (c *fakeCatalog) fetchedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fetched...)
}

type fakePayments struct {
	mu         sync.Mutex
	submitErr  error
	status     models.PaymentStatus
	lookupErr  error
	calls      int
	lastAmount models.Money
	// onSubmit runs inside SubmitPayment before ctx is consulted.
	onSubmit func()
}

func newFakePayments() *fakePayments {
	return &fakePayments{status: models.PaymentStatusCompleted}
}

func (p *fakePayments) SubmitPayment(ctx context.Context, orderID string, amount models.Money) (*models.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastAmount = amount
	if p.onSubmit != nil {
		p.onSubmit()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", clients.ErrPaymentUnavailable, err)
	}
	if p.submitErr != nil {
		return nil, p.submitErr
	}
	return &models.Payment{ID: "pay-" + orderID, OrderID: orderID, Amount: amount, Status: p.status}, nil
}

func (p *fakePayments) PaymentStatus(_ context.Context, _ string) (models.PaymentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lookupErr != nil {
		return "", p.lookupErr
	}
	return p.status, nil
}

func (p *fakePayments) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e models.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) all() []models.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderEvent(nil), r.events...)
}

// failingStore fails every Update after the first okUpdates.
type failingStore struct {
	*MemoryStore
	mu        sync.Mutex
	okUpdates int
}

var errStoreDown = errors.New("store down")

func (s *failingStore) Update(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	if s.okUpdates == 0 {
		s.mu.Unlock()
		return errStoreDown
	}
	s.okUpdates--
	s.mu.Unlock()
	return s.MemoryStore.Update(ctx, o)
}

type fixture struct {
	svc       *Service
	catalog   *fakeCatalog
	payments  *fakePayments
	store     *MemoryStore
	publisher *recordingPublisher
}

func newFixture(reserve bool, products ...models.Product) *fixture {
	logger, _ := test.NewNullLogger()
	f := &fixture{
		catalog:   newFakeCatalog(products...),
		payments:  newFakePayments(),
		store:     NewMemoryStore(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewService(f.catalog, f.payments, f.store, logger, Options{
		ReserveStock: reserve,
		Publisher:    f.publisher,
	})
	return f
}

func product(id, name, price string, stock int) models.Product {
	return models.Product{ID: id, Name: name, Price: models.MustMoney(price), Stock: stock}
}
