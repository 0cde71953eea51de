package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
)

// memStore backs every repository fake. The transactor snapshots it and
// restores the snapshot when the callback fails.
type memStore struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	carts     map[string]domain.Cart
	orders    map[string]domain.Order
	outbox    []domain.OutboxEvent
	reviews   map[string]domain.Review
	wishlists map[string]domain.Wishlist
	users     map[string]domain.User
	fail      map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		products:  map[string]domain.Product{},
		carts:     map[string]domain.Cart{},
		orders:    map[string]domain.Order{},
		reviews:   map[string]domain.Review{},
		wishlists: map[string]domain.Wishlist{},
		users:     map[string]domain.User{},
		fail:      map[string]error{},
	}
}

func (s *memStore) failWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// injected must be called with the lock held.
func (s *memStore) injected(op string) error {
	return s.fail[op]
}

type snapshot struct {
	products  map[string]domain.Product
	carts     map[string]domain.Cart
	orders    map[string]domain.Order
	outbox    []domain.OutboxEvent
	reviews   map[string]domain.Review
	wishlists map[string]domain.Wishlist
}

func (s *memStore) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		products:  map[string]domain.Product{},
		carts:     map[string]domain.Cart{},
		orders:    map[string]domain.Order{},
		outbox:    slices.Clone(s.outbox),
		reviews:   map[string]domain.Review{},
		wishlists: map[string]domain.Wishlist{},
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.carts {
		v.Items = slices.Clone(v.Items)
		snap.carts[k] = v
	}
	for k, v := range s.orders {
		v.Items = slices.Clone(v.Items)
		snap.orders[k] = v
	}
	for k, v := range s.reviews {
		v.Voters = slices.Clone(v.Voters)
		snap.reviews[k] = v
	}
	for k, v := range s.wishlists {
		v.ProductIDs = slices.Clone(v.ProductIDs)
		snap.wishlists[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.carts = snap.carts
	s.orders = snap.orders
	s.outbox = snap.outbox
	s.reviews = snap.reviews
	s.wishlists = snap.wishlists
}

func (s *memStore) product(id string) domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}

func (s *memStore) order(id string) domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders[id]
}

func (s *memStore) outboxTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var types []string
	for _, ev := range s.outbox {
		types = append(types, ev.EventType)
	}
	return types
}

func (s *memStore) hasCart(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.carts[userID]
	return ok
}

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// products

type memProducts struct{ *memStore }

func (r memProducts) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	return nil
}

func (r memProducts) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	r.products[p.ID] = *p
	return nil
}

func (r memProducts) Get(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r memProducts) List(_ context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Product
	for _, p := range r.products {
		if f.ActiveOnly && !p.Active {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r memProducts) SetStock(_ context.Context, id string, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock = stock
	r.products[id] = p
	return nil
}

func (r memProducts) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Active = active
	r.products[id] = p
	return nil
}

func (r memProducts) DecrementStock(_ context.Context, id string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Stock < quantity {
		return domain.ErrInsufficientStock
	}
	p.Stock -= quantity
	r.products[id] = p
	return nil
}

func (r memProducts) IncrementStock(_ context.Context, id string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	r.products[id] = p
	return nil
}

// carts

type memCarts struct{ *memStore }

func (r memCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (r memCarts) AddItem(_ context.Context, userID string, item domain.CartItem, limit int) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = domain.Cart{UserID: userID, CreatedAt: time.Now()}
	}
	c.Items = slices.Clone(c.Items)
	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			if c.Items[i].Quantity+item.Quantity > limit {
				return nil, repository.ErrLineLimit
			}
			c.Items[i].Quantity += item.Quantity
			merged = true
		}
	}
	if !merged && item.Quantity > limit {
		return nil, repository.ErrLineLimit
	}
	if !merged {
		c.Items = append(c.Items, item)
	}
	r.carts[userID] = c
	out := c
	out.Items = slices.Clone(c.Items)
	return &out, nil
}

func (r memCarts) UpdateItemQuantity(_ context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c.Items = slices.Clone(c.Items)
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity = quantity
			r.carts[userID] = c
			return &c, nil
		}
	}
	return nil, repository.ErrItemNotFound
}

func (r memCarts) RemoveItem(_ context.Context, userID, itemID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c.Items = slices.DeleteFunc(slices.Clone(c.Items), func(it domain.CartItem) bool { return it.ItemID == itemID })
	r.carts[userID] = c
	return &c, nil
}

func (r memCarts) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("carts.DeleteCart"); err != nil {
		return err
	}
	delete(r.carts, userID)
	return nil
}

// orders

type memOrders struct{ *memStore }

func (r memOrders) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("orders.Create"); err != nil {
		return err
	}
	for _, existing := range r.orders {
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return repository.ErrDuplicateOrder
		}
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.orders[o.ID] = stored
	return nil
}

func (r memOrders) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r memOrders) GetByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r memOrders) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (r memOrders) HasDeliveredProduct(_ context.Context, userID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.Status == domain.OrderStatusDelivered && o.ContainsProduct(productID) {
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) Save(ctx context.Context, o *domain.Order, prevStatus domain.OrderStatus, prevPayment domain.PaymentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("orders.Save"); err != nil {
		return err
	}
	stored, ok := r.orders[o.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Status != prevStatus || stored.PaymentStatus != prevPayment {
		return repository.ErrStaleOrder
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.TransactionID = o.TransactionID
	stored.CancelledAt = o.CancelledAt
	stored.UpdatedAt = time.Now().UTC()
	r.orders[o.ID] = stored
	return nil
}

func (r memOrders) BeginPaymentAttempt(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return 0, repository.ErrOrderNotFound
	}
	if !o.PaymentAttemptOpen {
		o.PaymentAttempts++
		o.PaymentAttemptOpen = true
		r.orders[id] = o
	}
	return o.PaymentAttempts, nil
}

func (r memOrders) ClosePaymentAttempt(ctx context.Context, id string, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok && o.PaymentAttempts == attempt {
		o.PaymentAttemptOpen = false
		r.orders[id] = o
	}
	return nil
}

// outbox

type memOutbox struct{ *memStore }

func (r memOutbox) Add(_ context.Context, ev *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("outbox.Add"); err != nil {
		return err
	}
	r.outbox = append(r.outbox, *ev)
	return nil
}

func (r memOutbox) GetUnprocessed(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.OutboxEvent
	for i := range r.outbox {
		if !r.outbox[i].Processed && len(out) < limit {
			ev := r.outbox[i]
			out = append(out, &ev)
		}
	}
	return out, nil
}

func (r memOutbox) MarkProcessed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.outbox {
		if r.outbox[i].ID == id {
			r.outbox[i].Processed = true
		}
	}
	return nil
}

// reviews

type memReviews struct{ *memStore }

func (r memReviews) Create(_ context.Context, rev *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.UserID == rev.UserID && existing.ProductID == rev.ProductID {
			return repository.ErrDuplicateReview
		}
	}
	r.reviews[rev.ID] = *rev
	return nil
}

func (r memReviews) Get(_ context.Context, id string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rev, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return &rev, nil
}

func (r memReviews) GetByUserAndProduct(_ context.Context, userID, productID string) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rev := range r.reviews {
		if rev.UserID == userID && rev.ProductID == productID {
			return &rev, nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (r memReviews) Update(_ context.Context, id string, in domain.ReviewInput) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	rev.Rating, rev.Title, rev.Comment = in.Rating, in.Title, in.Comment
	r.reviews[id] = rev
	return &rev, nil
}

func (r memReviews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(r.reviews, id)
	return nil
}

func (r memReviews) ListByProduct(_ context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Review
	for _, rev := range r.reviews {
		if rev.ProductID == productID {
			all = append(all, rev)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r memReviews) Vote(_ context.Context, reviewID, userID string) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.reviews[reviewID]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	if !slices.Contains(rev.Voters, userID) {
		rev.Voters = append(slices.Clone(rev.Voters), userID)
		rev.HelpfulVotes++
		r.reviews[reviewID] = rev
	}
	return &rev, nil
}

func (r memReviews) Summary(_ context.Context, productID string) (domain.ReviewSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := domain.ReviewSummary{ProductID: productID}
	total := 0
	for _, rev := range r.reviews {
		if rev.ProductID == productID {
			sum.TotalCount++
			total += rev.Rating
		}
	}
	if sum.TotalCount > 0 {
		sum.AverageRating = float64(total) / float64(sum.TotalCount)
	}
	return sum, nil
}

// wishlists

type memWishlists struct{ *memStore }

func (r memWishlists) Get(_ context.Context, userID string) (*domain.Wishlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wishlists[userID]
	if !ok {
		return nil, repository.ErrWishlistNotFound
	}
	return &w, nil
}

func (r memWishlists) Add(_ context.Context, userID, productID string) (*domain.Wishlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.wishlists[userID]
	w.UserID = userID
	if !slices.Contains(w.ProductIDs, productID) {
		w.ProductIDs = append(slices.Clone(w.ProductIDs), productID)
	}
	r.wishlists[userID] = w
	return &w, nil
}

func (r memWishlists) Remove(_ context.Context, userID, productID string) (*domain.Wishlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wishlists[userID]
	if !ok {
		return nil, repository.ErrWishlistNotFound
	}
	w.ProductIDs = slices.DeleteFunc(slices.Clone(w.ProductIDs), func(id string) bool { return id == productID })
	r.wishlists[userID] = w
	return &w, nil
}

func (r memWishlists) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wishlists[userID]; ok {
		w.ProductIDs = []string{}
		r.wishlists[userID] = w
	}
	return nil
}

// users

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// cache

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) has(userID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[userID]
	return ok
}

// payment gateway

type mockGateway struct {
	m       sync.Mutex
	result  *domain.PaymentResult
	saleErr error
	voidErr error
	sales   []payment.SaleRequest
	voids   []string
	refunds []string
	// afterSale and afterVoid run once the processor has answered.
	afterSale func()
	afterVoid func()
}

func (g *mockGateway) ClientToken(context.Context, string) (string, error) {
	return "client-token", nil
}

func (g *mockGateway) Sale(_ context.Context, req payment.SaleRequest) (*domain.PaymentResult, error) {
	g.m.Lock()
	defer g.m.Unlock()
	g.sales = append(g.sales, req)
	if g.afterSale != nil {
		defer g.afterSale()
	}
	if g.saleErr != nil {
		return nil, g.saleErr
	}
	if g.result != nil {
		res := *g.result
		return &res, nil
	}
	status := domain.PaymentStatusSettled
	if !req.Capture {
		status = domain.PaymentStatusAuthorized
	}
	return &domain.PaymentResult{TransactionID: "txn-" + req.IdempotencyKey, Status: status, Method: "credit_card"}, nil
}

func (g *mockGateway) Void(ctx context.Context, transactionID string, settled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.m.Lock()
	defer g.m.Unlock()
	if g.voidErr != nil {
		return g.voidErr
	}
	if g.afterVoid != nil {
		defer g.afterVoid()
	}
	if settled {
		g.refunds = append(g.refunds, transactionID)
	} else {
		g.voids = append(g.voids, transactionID)
	}
	return nil
}

func (g *mockGateway) saleKeys() []string {
	g.m.Lock()
	defer g.m.Unlock()
	var keys []string
	for _, s := range g.sales {
		keys = append(keys, s.IdempotencyKey)
	}
	return keys
}

// payment ledger

type mockLedger struct {
	m         sync.Mutex
	txs       []*domain.Transaction
	recordErr error
	n         int
}

func (l *mockLedger) Record(_ context.Context, tx *domain.Transaction) error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	for _, prev := range l.txs {
		if prev.IdempotencyKey == tx.IdempotencyKey {
			return fmt.Errorf("%w: duplicate key %s", domain.ErrConflict, tx.IdempotencyKey)
		}
	}
	l.n++
	tx.ID = "ltx-" + strconv.Itoa(l.n)
	tx.Status = domain.TransactionPending
	cp := *tx
	l.txs = append(l.txs, &cp)
	return nil
}

func (l *mockLedger) GetByKey(_ context.Context, key string) (*domain.Transaction, error) {
	l.m.Lock()
	defer l.m.Unlock()
	for _, tx := range l.txs {
		if tx.IdempotencyKey == key {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (l *mockLedger) Complete(ctx context.Context, id string, status domain.TransactionStatus, gatewayTxID, method, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.m.Lock()
	defer l.m.Unlock()
	for _, tx := range l.txs {
		if tx.ID == id {
			tx.Status = status
			tx.GatewayTransactionID = gatewayTxID
			if method != "" {
				tx.Method = method
			}
			tx.FailureReason = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

func (l *mockLedger) MarkVoided(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.m.Lock()
	defer l.m.Unlock()
	for _, tx := range l.txs {
		if tx.OrderID == orderID && (tx.Status == domain.TransactionSettled || tx.Status == domain.TransactionAuthorized) {
			tx.Status = domain.TransactionVoided
		}
	}
	return nil
}

func (l *mockLedger) ListByOrder(_ context.Context, orderID string) ([]*domain.Transaction, error) {
	l.m.Lock()
	defer l.m.Unlock()
	var out []*domain.Transaction
	for _, tx := range l.txs {
		if tx.OrderID == orderID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *mockLedger) statuses() []domain.TransactionStatus {
	l.m.Lock()
	defer l.m.Unlock()
	var out []domain.TransactionStatus
	for _, tx := range l.txs {
		out = append(out, tx.Status)
	}
	return out
}

type mockRenderer struct{}

func (mockRenderer) Render(o *domain.Order) ([]byte, error) {
	return []byte("%PDF-" + o.ID), nil
}

// auth

type mockOTPStore struct {
	m        sync.Mutex
	codes    map[string]string
	verified map[string]bool
	attempts map[string]int
}

func newMockOTPStore() *mockOTPStore {
	return &mockOTPStore{codes: map[string]string{}, verified: map[string]bool{}, attempts: map[string]int{}}
}

func (s *mockOTPStore) Save(_ context.Context, email, code string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.codes[email] = code
	s.attempts[email] = 0
	return nil
}

func (s *mockOTPStore) Verify(_ context.Context, email, code string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.attempts[email]++
	if s.attempts[email] > 5 {
		return auth.ErrOTPTooManyAttempts
	}
	if stored, ok := s.codes[email]; !ok || stored != code {
		return auth.ErrOTPInvalid
	}
	delete(s.codes, email)
	s.verified[email] = true
	return nil
}

func (s *mockOTPStore) IsVerified(_ context.Context, email string) (bool, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.verified[email], nil
}

func (s *mockOTPStore) ClearVerified(_ context.Context, email string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.verified, email)
	return nil
}

type mockMailer struct {
	m     sync.Mutex
	codes map[string]string
}

func (m *mockMailer) SendOTP(_ context.Context, to, code string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *mockMailer) code(to string) string {
	m.m.Lock()
	defer m.m.Unlock()
	return m.codes[to]
}

type mockDenylist struct {
	m       sync.Mutex
	revoked map[string]time.Time
}

func (d *mockDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.m.Lock()
	defer d.m.Unlock()
	if d.revoked == nil {
		d.revoked = map[string]time.Time{}
	}
	d.revoked[tokenID] = expiresAt
	return nil
}

func (d *mockDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.m.Lock()
	defer d.m.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}

type testEnv struct {
	store    *memStore
	cache    *mockCache
	gateway  *mockGateway
	ledger   *mockLedger
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
	payments *PaymentService
	reviews  *ReviewService
	wishlist *WishlistService
}

const testLeadTime = 7 * 24 * time.Hour

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:   store,
		cache:   newMockCache(),
		gateway: &mockGateway{},
		ledger:  &mockLedger{},
	}
	log := logger.Discard()
	tx := &memTransactor{store: store}
	products := memProducts{store}
	orders := memOrders{store}

	env.catalog = NewCatalogService(products, memReviews{store}, log)
	env.carts = NewCartService(memCarts{store}, products, env.cache, log)
	env.orders = NewOrderService(OrderDeps{
		Tx:       tx,
		Orders:   orders,
		Carts:    memCarts{store},
		Products: products,
		Outbox:   memOutbox{store},
		Cache:    env.cache,
		Gateway:  env.gateway,
		Ledger:   env.ledger,
		Invoices: mockRenderer{},
		Log:      log,
		LeadTime: testLeadTime,
	})
	env.payments = NewPaymentService(PaymentDeps{
		Tx:      tx,
		Orders:  orders,
		Outbox:  memOutbox{store},
		Gateway: env.gateway,
		Ledger:  env.ledger,
		Log:     log,
	})
	env.reviews = NewReviewService(memReviews{store}, orders, products, memUsers{store}, log)
	env.wishlist = NewWishlistService(memWishlists{store}, products, log)
	return env
}

func (e *testEnv) addProduct(id string, price domain.Money, stock int) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.products[id] = domain.Product{ID: id, Name: "Product " + id, Price: price, Stock: stock, Active: true}
}

func (e *testEnv) putOrder(o domain.Order) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if o.Currency == "" {
		o.Currency = domain.Currency
	}
	e.store.orders[o.ID] = o
}

func testAddress() domain.Address {
	return domain.Address{FullName: "Jane Doe", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}
}
