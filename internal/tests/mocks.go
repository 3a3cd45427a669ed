package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// IN-MEMORY TRANSACTIONAL STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory repository.Store. Transactions are serialized and
// roll back to a snapshot when fn fails, which gives the same guarantees the
// services rely on from row locks in PostgreSQL.
type MemoryStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex
	state  *memState

	failMu sync.Mutex
	fail   map[string]error

	TxCount       int32
	RollbackCount int32
}

type memState struct {
	rides          map[string]*domain.Ride
	passengers     map[string]*domain.Passenger
	invoices       map[string]*domain.Invoice
	vouchers       map[string]*domain.Voucher
	users          map[string]*domain.User
	driverInvoices []*domain.DriverInvoice
}

var _ repository.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			rides:      make(map[string]*domain.Ride),
			passengers: make(map[string]*domain.Passenger),
			invoices:   make(map[string]*domain.Invoice),
			vouchers:   make(map[string]*domain.Voucher),
			users:      make(map[string]*domain.User),
		},
		fail: make(map[string]error),
	}
}

// FailOn makes the named repository operation (e.g. "Invoices.Update") return err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail[op] = err
}

func (s *MemoryStore) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.fail[op]
}

// WithinTx runs fn alone and restores the previous state if it fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	atomic.AddInt32(&s.TxCount, 1)
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.Lock()
	snapshot := s.state.clone()
	s.dataMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, s.Repositories())
}

func (s *MemoryStore) restore(snapshot *memState) {
	atomic.AddInt32(&s.RollbackCount, 1)
	s.dataMu.Lock()
	s.state = snapshot
	s.dataMu.Unlock()
}

// Repositories returns repositories over the store.
func (s *MemoryStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Rides:          &memRides{s},
		Passengers:     &memPassengers{s},
		Invoices:       &memInvoices{s},
		Vouchers:       &memVouchers{s},
		Users:          &memUsers{s},
		DriverInvoices: &memDriverInvoices{s},
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		rides:          make(map[string]*domain.Ride, len(st.rides)),
		passengers:     make(map[string]*domain.Passenger, len(st.passengers)),
		invoices:       make(map[string]*domain.Invoice, len(st.invoices)),
		vouchers:       make(map[string]*domain.Voucher, len(st.vouchers)),
		users:          make(map[string]*domain.User, len(st.users)),
		driverInvoices: make([]*domain.DriverInvoice, 0, len(st.driverInvoices)),
	}
	for k, v := range st.rides {
		c.rides[k] = copyRide(v)
	}
	for k, v := range st.passengers {
		c.passengers[k] = copyPassenger(v)
	}
	for k, v := range st.invoices {
		inv := *v
		c.invoices[k] = &inv
	}
	for k, v := range st.vouchers {
		vc := *v
		c.vouchers[k] = &vc
	}
	for k, v := range st.users {
		u := *v
		c.users[k] = &u
	}
	for _, di := range st.driverInvoices {
		d := *di
		c.driverInvoices = append(c.driverInvoices, &d)
	}
	return c
}

func copyRide(r *domain.Ride) *domain.Ride {
	c := *r
	return &c
}

func copyPassenger(p *domain.Passenger) *domain.Passenger {
	c := *p
	if p.Pickup != nil {
		pickup := *p.Pickup
		c.Pickup = &pickup
	}
	if p.VoucherID != nil {
		id := *p.VoucherID
		c.VoucherID = &id
	}
	return &c
}

// ── seeding and inspection helpers ──

func (s *MemoryStore) AddUser(u *domain.User) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	c := *u
	s.state.users[u.ID] = &c
}

func (s *MemoryStore) AddRide(r *domain.Ride) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.state.rides[r.ID] = copyRide(r)
}

func (s *MemoryStore) AddVoucher(v *domain.Voucher) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	c := *v
	s.state.vouchers[v.ID] = &c
}

func (s *MemoryStore) Balance(userID string) int64 {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if u, ok := s.state.users[userID]; ok {
		return u.Balance
	}
	return 0
}

func (s *MemoryStore) Ride(id string) *domain.Ride {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if r, ok := s.state.rides[id]; ok {
		return copyRide(r)
	}
	return nil
}

func (s *MemoryStore) Passenger(id string) *domain.Passenger {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if p, ok := s.state.passengers[id]; ok {
		return copyPassenger(p)
	}
	return nil
}

func (s *MemoryStore) Voucher(id string) *domain.Voucher {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if v, ok := s.state.vouchers[id]; ok {
		c := *v
		return &c
	}
	return nil
}

func (s *MemoryStore) InvoiceOf(passengerID string) *domain.Invoice {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	for _, inv := range s.state.invoices {
		if inv.PassengerID == passengerID {
			c := *inv
			return &c
		}
	}
	return nil
}

func (s *MemoryStore) PassengersOfRide(rideID string) []*domain.Passenger {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	var out []*domain.Passenger
	for _, p := range s.state.passengers {
		if p.RideID == rideID {
			out = append(out, copyPassenger(p))
		}
	}
	return out
}

func (s *MemoryStore) DriverInvoices(driverID string) []domain.DriverInvoice {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	var out []domain.DriverInvoice
	for _, di := range s.state.driverInvoices {
		if di.DriverID == driverID {
			out = append(out, *di)
		}
	}
	return out
}

// ── repositories ──

type memRides struct{ s *MemoryStore }

func (r *memRides) Create(ctx context.Context, ride *domain.Ride) error {
	if err := r.s.injected("Rides.Create"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	r.s.state.rides[ride.ID] = copyRide(ride)
	return nil
}

func (r *memRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	ride, ok := r.s.state.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRide(ride), nil
}

func (r *memRides) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

func (r *memRides) UpdateStatus(ctx context.Context, id string, status domain.RideStatus) error {
	if err := r.s.injected("Rides.UpdateStatus"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	ride, ok := r.s.state.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	ride.Status = status
	return nil
}

func (r *memRides) ListScheduled(ctx context.Context, page domain.PageRequest) ([]*domain.Ride, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var all []*domain.Ride
	for _, ride := range r.s.state.rides {
		if ride.Status == domain.RideStatusScheduled {
			all = append(all, copyRide(ride))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return pageAfter(all, page, func(r *domain.Ride) string { return r.ID }), nil
}

func pageAfter[T any](items []T, page domain.PageRequest, id func(T) string) []T {
	start := 0
	if page.Cursor != "" {
		for i, item := range items {
			if id(item) == page.Cursor {
				start = i + 1
				break
			}
		}
	}
	items = items[start:]
	if len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

type memPassengers struct{ s *MemoryStore }

func (r *memPassengers) Create(ctx context.Context, p *domain.Passenger) error {
	if err := r.s.injected("Passengers.Create"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, other := range r.s.state.passengers {
		if other.UserID == p.UserID && other.RideID == p.RideID && other.Status != domain.PassengerStatusCancelled {
			return repository.ErrConflict
		}
	}
	r.s.state.passengers[p.ID] = copyPassenger(p)
	return nil
}

func (r *memPassengers) GetByIDForUpdate(ctx context.Context, id string) (*domain.Passenger, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	p, ok := r.s.state.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPassenger(p), nil
}

func (r *memPassengers) GetActiveForUpdate(ctx context.Context, userID, rideID string) (*domain.Passenger, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, p := range r.s.state.passengers {
		if p.UserID == userID && p.RideID == rideID && p.Status != domain.PassengerStatusCancelled {
			return copyPassenger(p), nil
		}
	}
	return nil, nil
}

func (r *memPassengers) ListActiveByRide(ctx context.Context, rideID string) ([]*domain.Passenger, error) {
	return r.list(func(p *domain.Passenger) bool {
		return p.RideID == rideID && p.Status != domain.PassengerStatusCancelled
	}), nil
}

func (r *memPassengers) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Passenger, error) {
	return r.list(func(p *domain.Passenger) bool {
		return p.UserID == userID && p.Status != domain.PassengerStatusCancelled
	}), nil
}

func (r *memPassengers) ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Passenger, error) {
	all := r.list(func(p *domain.Passenger) bool { return p.UserID == userID })
	return pageAfter(all, page, func(p *domain.Passenger) string { return p.ID }), nil
}

func (r *memPassengers) list(match func(*domain.Passenger) bool) []*domain.Passenger {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []*domain.Passenger
	for _, p := range r.s.state.passengers {
		if match(p) {
			out = append(out, copyPassenger(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memPassengers) CountActiveWithVoucher(ctx context.Context, userID, voucherID string) (int, error) {
	n := len(r.list(func(p *domain.Passenger) bool {
		return p.UserID == userID && p.Status != domain.PassengerStatusCancelled &&
			p.VoucherID != nil && *p.VoucherID == voucherID
	}))
	return n, nil
}

func (r *memPassengers) Update(ctx context.Context, p *domain.Passenger) error {
	if err := r.s.injected("Passengers.Update"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.state.passengers[p.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.state.passengers[p.ID] = copyPassenger(p)
	return nil
}

type memInvoices struct{ s *MemoryStore }

func (r *memInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	if err := r.s.injected("Invoices.Create"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, other := range r.s.state.invoices {
		if other.PassengerID == inv.PassengerID {
			return repository.ErrConflict
		}
	}
	c := *inv
	r.s.state.invoices[inv.ID] = &c
	return nil
}

func (r *memInvoices) GetByPassengerIDForUpdate(ctx context.Context, passengerID string) (*domain.Invoice, error) {
	if err := r.s.injected("Invoices.GetByPassengerIDForUpdate"); err != nil {
		return nil, err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, inv := range r.s.state.invoices {
		if inv.PassengerID == passengerID {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memInvoices) Update(ctx context.Context, inv *domain.Invoice) error {
	if err := r.s.injected("Invoices.Update"); err != nil {
		return err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.state.invoices[inv.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *inv
	r.s.state.invoices[inv.ID] = &c
	return nil
}

type memVouchers struct{ s *MemoryStore }

func (r *memVouchers) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, v := range r.s.state.vouchers {
		if v.Code == code {
			c := *v
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memVouchers) GetByID(ctx context.Context, id string) (*domain.Voucher, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	v, ok := r.s.state.vouchers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (r *memVouchers) IncrementUses(ctx context.Context, id string) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	v, ok := r.s.state.vouchers[id]
	if !ok || v.CurrentUses >= v.MaxUses {
		return repository.ErrConflict
	}
	v.CurrentUses++
	return nil
}

type memUsers struct{ s *MemoryStore }

func (r *memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	if err := r.s.injected("Users.AdjustBalance"); err != nil {
		return 0, err
	}
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	u, ok := r.s.state.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Balance += delta
	return u.Balance, nil
}

type memDriverInvoices struct{ s *MemoryStore }

func (r *memDriverInvoices) Create(ctx context.Context, di *domain.DriverInvoice) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	c := *di
	r.s.state.driverInvoices = append(r.s.state.driverInvoices, &c)
	return nil
}

// ──────────────────────────────────────────────
// COLLABORATOR FAKES
// ──────────────────────────────────────────────

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []service.Event
}

func (p *RecordingPublisher) Publish(ev service.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *RecordingPublisher) Events() []service.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]service.Event(nil), p.events...)
}

func (p *RecordingPublisher) CountFor(userID string) int {
	n := 0
	for _, ev := range p.Events() {
		if ev.UserID == userID {
			n++
		}
	}
	return n
}

// RecordingDispatcher records deliveries made by a notification queue.
type RecordingDispatcher struct {
	mu       sync.Mutex
	users    []string
	channels []string
	Err      error
}

func (d *RecordingDispatcher) NotifyUser(ctx context.Context, title, body, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, userID)
	return d.Err
}

func (d *RecordingDispatcher) NotifyRideChannel(ctx context.Context, title, body, channelRef string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, channelRef)
	return d.Err
}

func (d *RecordingDispatcher) Delivered() (users, channels []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.users...), append([]string(nil), d.channels...)
}

// FakeGeo answers every lookup with fixed data.
type FakeGeo struct {
	Address string
	Route   domain.Route
	Err     error
}

func (g *FakeGeo) Geocode(ctx context.Context, p domain.Point) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return g.Address, nil
}

func (g *FakeGeo) Directions(ctx context.Context, from, to domain.Point) (*domain.Route, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	r := g.Route
	return &r, nil
}

// RecordingRefunder records refunds.
type RecordingRefunder struct {
	mu      sync.Mutex
	Refunds map[string]int64
}

func (r *RecordingRefunder) Refund(ctx context.Context, reference string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Refunds == nil {
		r.Refunds = make(map[string]int64)
	}
	r.Refunds[reference] += amount
	return nil
}

// MemoryLocationStore keeps driver positions in a map.
type MemoryLocationStore struct {
	mu        sync.Mutex
	locations map[string]domain.Point
}

func NewMemoryLocationStore() *MemoryLocationStore {
	return &MemoryLocationStore{locations: make(map[string]domain.Point)}
}

func (m *MemoryLocationStore) UpdateLocation(ctx context.Context, driverID string, p domain.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = p
	return nil
}

func (m *MemoryLocationStore) GetLocation(ctx context.Context, driverID string) (*domain.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.locations[driverID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// MemoryRideCache is a RideCache over a map.
type MemoryRideCache struct {
	mu    sync.Mutex
	rides map[string]domain.Ride

	Hits          int32
	Invalidations int32
}

func NewMemoryRideCache() *MemoryRideCache {
	return &MemoryRideCache{rides: make(map[string]domain.Ride)}
}

func (m *MemoryRideCache) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, nil
	}
	atomic.AddInt32(&m.Hits, 1)
	return &r, nil
}

func (m *MemoryRideCache) Set(ctx context.Context, ride *domain.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = *ride
	return nil
}

func (m *MemoryRideCache) Invalidate(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.AddInt32(&m.Invalidations, 1)
	delete(m.rides, rideID)
	return nil
}
