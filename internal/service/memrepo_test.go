package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
)

// memRepo хранит данные в памяти. Транзакции выполняются по одной под мьютексом,
// при ошибке состояние восстанавливается из снимка.
type memRepo struct {
	mu sync.Mutex

	users    map[uuid.UUID]model.User
	plants   map[uuid.UUID]model.Plant
	supplies map[uuid.UUID]model.Supply
	orders   map[uuid.UUID]model.Order
	receipts []model.Receipt
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[uuid.UUID]model.User),
		plants:   make(map[uuid.UUID]model.Plant),
		supplies: make(map[uuid.UUID]model.Supply),
		orders:   make(map[uuid.UUID]model.Order),
	}
}

type memSnapshot struct {
	supplies map[uuid.UUID]model.Supply
	orders   map[uuid.UUID]model.Order
	receipts []model.Receipt
	nextID   int64
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	o.History = append([]model.StatusEntry(nil), o.History...)
	return o
}

func (r *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		supplies: make(map[uuid.UUID]model.Supply, len(r.supplies)),
		orders:   make(map[uuid.UUID]model.Order, len(r.orders)),
		receipts: append([]model.Receipt(nil), r.receipts...),
		nextID:   r.nextID,
	}
	for id, sp := range r.supplies {
		s.supplies[id] = sp
	}
	for id, o := range r.orders {
		s.orders[id] = cloneOrder(o)
	}
	return s
}

func (r *memRepo) restore(s memSnapshot) {
	r.supplies = s.supplies
	r.orders = s.orders
	r.receipts = s.receipts
	r.nextID = s.nextID
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	if err := fn(ctx, &memTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memRepo) CreateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrUserExists
		}
	}
	u.CreatedAt = time.Now()
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *memRepo) CreatePlant(ctx context.Context, p *model.Plant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.CreatedAt = time.Now()
	r.plants[p.ID] = *p
	return nil
}

func (r *memRepo) GetPlant(ctx context.Context, id uuid.UUID) (*model.Plant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrPlantNotFound, id)
	}
	return &p, nil
}

func (r *memRepo) CreateSupply(ctx context.Context, s *model.Supply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plants[s.PlantID]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrPlantNotFound, s.PlantID)
	}
	s.DeliveredAt = time.Now()
	r.supplies[s.ID] = *s
	return nil
}

func (r *memRepo) GetSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supplies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, id)
	}
	return &s, nil
}

func (r *memRepo) GetSuppliesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Supply
	for _, id := range ids {
		if s, ok := r.supplies[id]; ok {
			res = append(res, s)
		}
	}
	return res, nil
}

func (r *memRepo) GetSuppliesInSale(ctx context.Context) ([]model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Supply
	for _, s := range r.supplies {
		if s.InSale {
			res = append(res, s)
		}
	}
	return res, nil
}

func (r *memRepo) UpdateSupplyPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supplies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, id)
	}
	s.Price = price
	r.supplies[id] = s
	return &s, nil
}

func (r *memRepo) GetSupplyInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supplies[id]
	if !ok || !s.InSale {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, id)
	}
	return &s, nil
}

func (r *memRepo) GetAllSupplies(ctx context.Context) ([]model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Supply, 0, len(r.supplies))
	for _, s := range r.supplies {
		res = append(res, s)
	}
	return res, nil
}

func (r *memRepo) GetStockStatistics(ctx context.Context) ([]model.StockStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := make(map[uuid.UUID]int)
	for _, s := range r.supplies {
		totals[s.PlantID] += s.CurrentCount
	}

	res := make([]model.StockStat, 0, len(totals))
	for plantID, count := range totals {
		res = append(res, model.StockStat{PlantID: plantID, PlantName: r.plants[plantID].Name, Count: count})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PlantName < res[j].PlantName })
	return res, nil
}

func (r *memRepo) modifySupply(id uuid.UUID, fn func(s *model.Supply)) (*model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supplies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, id)
	}
	fn(&s)
	r.supplies[id] = s
	return &s, nil
}

func (r *memRepo) UpdateSupplier(ctx context.Context, id uuid.UUID, sup model.Supplier) (*model.Supply, error) {
	return r.modifySupply(id, func(s *model.Supply) {
		for dst, src := range map[*string]string{
			&s.Supplier.Name:    sup.Name,
			&s.Supplier.Phone:   sup.Phone,
			&s.Supplier.Email:   sup.Email,
			&s.Supplier.Address: sup.Address,
		} {
			if src != "" {
				*dst = src
			}
		}
	})
}

func (r *memRepo) UpdateSupplyExpiration(ctx context.Context, id uuid.UUID, date time.Time) (*model.Supply, error) {
	return r.modifySupply(id, func(s *model.Supply) { s.ExpirationDate = date })
}

func (r *memRepo) SetSupplyInSale(ctx context.Context, id uuid.UUID, enabled bool) (*model.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.supplies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, id)
	}
	if enabled {
		for otherID, other := range r.supplies {
			if otherID != id && other.PlantID == s.PlantID && other.InSale {
				return nil, repository.ErrConflictingSaleState
			}
		}
	}
	s.InSale = enabled
	r.supplies[id] = s
	return &s, nil
}

func (r *memRepo) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *memRepo) listOrders(match func(model.Order) bool) []model.Order {
	var res []model.Order
	for _, o := range r.orders {
		if match(o) {
			res = append(res, cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

func (r *memRepo) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listOrders(func(o model.Order) bool { return o.UserID == userID }), nil
}

func (r *memRepo) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listOrders(func(model.Order) bool { return true }), nil
}

func (r *memRepo) GetOrderHistory(ctx context.Context, orderID uuid.UUID, ownerID *uuid.UUID) ([]model.StatusEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || (ownerID != nil && o.UserID != *ownerID) {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, orderID)
	}
	return append([]model.StatusEntry(nil), o.History...), nil
}

func (r *memRepo) GetPendingReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Receipt
	for _, rc := range r.receipts {
		if rc.Status == model.ReceiptPending && len(res) < limit {
			res = append(res, rc)
		}
	}
	return res, nil
}

func (r *memRepo) findReceipt(id int64) *model.Receipt {
	for i := range r.receipts {
		if r.receipts[i].ID == id {
			return &r.receipts[i]
		}
	}
	return nil
}

func (r *memRepo) MarkReceiptSent(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rc := r.findReceipt(id); rc != nil {
		rc.Attempts++
		rc.Status = model.ReceiptSent
	}
	return nil
}

func (r *memRepo) MarkReceiptFailed(ctx context.Context, id int64, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rc := r.findReceipt(id); rc != nil {
		rc.Attempts++
		if rc.Attempts >= maxAttempts {
			rc.Status = model.ReceiptFailed
		}
	}
	return nil
}

func (r *memRepo) supplyCount(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supplies[id].CurrentCount
}

func (r *memRepo) receiptsSnapshot() []model.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Receipt(nil), r.receipts...)
}

// memTx работает под мьютексом, взятым в InTx.
type memTx struct {
	r *memRepo
}

func (t *memTx) CreateOrder(ctx context.Context, o *model.Order) error {
	for _, item := range o.Items {
		if _, ok := t.r.supplies[item.SupplyID]; !ok {
			return fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, item.SupplyID)
		}
	}
	o.CreatedAt = time.Now()
	t.r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*model.Order, error) {
	o, ok := t.r.orders[id]
	if !ok || (ownerID != nil && o.UserID != *ownerID) {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, completedAt *time.Time) error {
	o, ok := t.r.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrOrderNotFound, id)
	}
	o.CurrentStatus = status
	if completedAt != nil {
		ts := *completedAt
		o.CompletedAt = &ts
	}
	t.r.orders[id] = o
	return nil
}

func (t *memTx) AppendStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (model.StatusEntry, error) {
	o, ok := t.r.orders[orderID]
	if !ok {
		return model.StatusEntry{}, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, orderID)
	}
	entry := model.StatusEntry{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	o.History = append(o.History, entry)
	t.r.orders[orderID] = o
	return entry, nil
}

func (t *memTx) DebitSupply(ctx context.Context, supplyID uuid.UUID, quantity int) (*model.Supply, error) {
	s, ok := t.r.supplies[supplyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSupplyNotFound, supplyID)
	}
	if s.CurrentCount < quantity {
		return nil, fmt.Errorf("%w: supply %s has %d, requested %d",
			repository.ErrInsufficientStock, supplyID, s.CurrentCount, quantity)
	}
	s.CurrentCount -= quantity
	t.r.supplies[supplyID] = s
	return &s, nil
}

func (t *memTx) EnqueueReceipt(ctx context.Context, orderID, userID uuid.UUID) error {
	t.r.nextID++
	t.r.receipts = append(t.r.receipts, model.Receipt{
		ID:        t.r.nextID,
		OrderID:   orderID,
		UserID:    userID,
		Status:    model.ReceiptPending,
		CreatedAt: time.Now(),
	})
	return nil
}
