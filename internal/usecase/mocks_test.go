package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/repository"
)

// Hand-rolled in-memory fakes. All repos share one memStore so the fake
// transaction manager can snapshot and roll back the whole state at once.

type memStore struct {
	mu       sync.Mutex
	clients  map[string]*model.Client
	products map[int64]*model.ClientProduct
	users    map[int64]*model.User
	nextPID  int64
}

func newMemStore() *memStore {
	return &memStore{
		clients:  make(map[string]*model.Client),
		products: make(map[int64]*model.ClientProduct),
		users:    make(map[int64]*model.User),
		nextPID:  1,
	}
}

func (m *memStore) snapshot() *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newMemStore()
	s.nextPID = m.nextPID
	for k, v := range m.clients {
		c := *v
		s.clients[k] = &c
	}
	for k, v := range m.products {
		p := *v
		s.products[k] = &p
	}
	for k, v := range m.users {
		u := *v
		s.users[k] = &u
	}
	return s
}

func (m *memStore) restore(s *memStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = s.clients
	m.products = s.products
	m.users = s.users
	m.nextPID = s.nextPID
}

func scopedOut(owner int64, scope *int64) bool {
	return scope != nil && owner != *scope
}

// --- client repo ---

type mockClientRepo struct {
	store      *memStore
	failInsert bool
}

func (r *mockClientRepo) Insert(_ context.Context, _ any, c *model.Client) error {
	if r.failInsert {
		return fmt.Errorf("forced insert failure")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.clients[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *c
	r.store.clients[c.ID] = &cp
	return nil
}

func (r *mockClientRepo) FindByQuery(_ context.Context, _ any, query string, scope *int64) (*model.Client, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.clients[query]; ok && !scopedOut(c.OwnerUserID, scope) {
		cp := *c
		return &cp, nil
	}
	for _, c := range r.store.clients {
		if strings.EqualFold(c.Name, query) && !scopedOut(c.OwnerUserID, scope) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *mockClientRepo) List(_ context.Context, _ any, search string, scope *int64) ([]*model.Client, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Client
	for _, c := range r.store.clients {
		if scopedOut(c.OwnerUserID, scope) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *mockClientRepo) UpdateField(_ context.Context, _ any, id string, field model.ClientField, value string, scope *int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.clients[id]
	if !ok || scopedOut(c.OwnerUserID, scope) {
		return false, nil
	}
	switch field {
	case model.ClientFieldName:
		c.Name = value
	case model.ClientFieldWhatsApp:
		c.WhatsApp = value
	case model.ClientFieldEmail:
		c.Email = value
	case model.ClientFieldGeneralNotes:
		c.GeneralNotes = value
	default:
		return false, domain.ErrFieldNotUpdatable
	}
	return true, nil
}

func (r *mockClientRepo) Delete(_ context.Context, _ any, id string, scope *int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.clients[id]
	if !ok || scopedOut(c.OwnerUserID, scope) {
		return false, nil
	}
	delete(r.store.clients, id)
	return true, nil
}

func (r *mockClientRepo) Count(_ context.Context, _ any, scope *int64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, c := range r.store.clients {
		if !scopedOut(c.OwnerUserID, scope) {
			n++
		}
	}
	return n, nil
}

// --- product repo ---

type mockProductRepo struct {
	store      *memStore
	failInsert bool
}

func (r *mockProductRepo) ownerOf(clientID string) int64 {
	if c, ok := r.store.clients[clientID]; ok {
		return c.OwnerUserID
	}
	return 0
}

func (r *mockProductRepo) Insert(_ context.Context, _ any, p *model.ClientProduct) error {
	if r.failInsert {
		return fmt.Errorf("forced insert failure")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.clients[p.ClientID]; !ok {
		return fmt.Errorf("client %s: %w", p.ClientID, domain.ErrNotFound)
	}
	p.ID = r.store.nextPID
	r.store.nextPID++
	cp := *p
	r.store.products[p.ID] = &cp
	return nil
}

func (r *mockProductRepo) ByClient(_ context.Context, _ any, clientID string, scope *int64) ([]*model.ClientProduct, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.ClientProduct
	for _, p := range r.store.products {
		if p.ClientID != clientID || scopedOut(r.ownerOf(p.ClientID), scope) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockProductRepo) FindByID(_ context.Context, _ any, id int64, scope *int64) (*model.ClientProduct, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok || scopedOut(r.ownerOf(p.ClientID), scope) {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *mockProductRepo) UpdateField(_ context.Context, _ any, id int64, field model.ProductField, value string, scope *int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok || scopedOut(r.ownerOf(p.ClientID), scope) {
		return false, nil
	}
	switch field {
	case model.ProductFieldName:
		p.ProductName = value
	case model.ProductFieldStatus:
		p.Status = model.ProductStatus(value)
	case model.ProductFieldNotes:
		p.ProductNotes = value
	case model.ProductFieldServiceUsername:
		p.ServiceUsername = value
	case model.ProductFieldServicePassword:
		p.ServicePassword = value
	case model.ProductFieldExpiryDate:
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return false, err
		}
		p.ExpiryDate = t
	default:
		return false, domain.ErrFieldNotUpdatable
	}
	return true, nil
}

func (r *mockProductRepo) Renew(_ context.Context, _ any, id int64, expiry, notice time.Time, status model.ProductStatus, scope *int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok || scopedOut(r.ownerOf(p.ClientID), scope) {
		return false, nil
	}
	p.ExpiryDate = expiry
	p.NoticeDate = notice
	p.Status = status
	return true, nil
}

func (r *mockProductRepo) Delete(_ context.Context, _ any, id int64, scope *int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok || scopedOut(r.ownerOf(p.ClientID), scope) {
		return false, nil
	}
	delete(r.store.products, id)
	return true, nil
}

func (r *mockProductRepo) DueForNotice(_ context.Context, _ any, day time.Time) ([]*repository.ExpiringProduct, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*repository.ExpiringProduct
	for _, p := range r.store.products {
		if p.NoticeDate.After(day) {
			continue
		}
		if p.LastNoticeSent != nil && sameDay(*p.LastNoticeSent, day) {
			continue
		}
		c := r.store.clients[p.ClientID]
		out = append(out, &repository.ExpiringProduct{
			ProductID:   p.ID,
			ProductName: p.ProductName,
			ExpiryDate:  p.ExpiryDate,
			Status:      p.Status,
			ClientID:    c.ID,
			ClientName:  c.Name,
			WhatsApp:    c.WhatsApp,
			OwnerUserID: c.OwnerUserID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *mockProductRepo) MarkNoticed(_ context.Context, _ any, id int64, day time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	d := day
	p.LastNoticeSent = &d
	return nil
}

func (r *mockProductRepo) Count(_ context.Context, _ any, scope *int64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, p := range r.store.products {
		if !scopedOut(r.ownerOf(p.ClientID), scope) {
			n++
		}
	}
	return n, nil
}

func (r *mockProductRepo) CountExpiringBefore(_ context.Context, _ any, deadline time.Time, scope *int64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, p := range r.store.products {
		if p.ExpiryDate.Before(deadline) && !scopedOut(r.ownerOf(p.ClientID), scope) {
			n++
		}
	}
	return n, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// --- user repo ---

type mockUserRepo struct {
	store *memStore
}

func (r *mockUserRepo) Upsert(_ context.Context, _ any, u *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *u
	r.store.users[u.ID] = &cp
	return nil
}

func (r *mockUserRepo) FindByID(_ context.Context, _ any, id int64) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) FindByWhatsAppID(_ context.Context, _ any, waID string) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.WhatsAppID == waID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *mockUserRepo) LinkWhatsAppID(_ context.Context, _ any, id int64, waID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.WhatsAppID = waID
	return nil
}

func (r *mockUserRepo) Count(_ context.Context, _ any) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.users), nil
}

// --- transaction manager ---

// mockTxManager snapshots the shared store before fn and restores it when fn
// fails, mimicking a rollback.
type mockTxManager struct {
	store *memStore
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	snap := m.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- messenger ---

type sentMessage struct {
	Chat string
	Text string
}

type mockMessenger struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (m *mockMessenger) Send(_ context.Context, chat, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[chat] {
		return "", fmt.Errorf("delivery to %s failed", chat)
	}
	m.sent = append(m.sent, sentMessage{Chat: chat, Text: text})
	return fmt.Sprintf("m%d", len(m.sent)), nil
}

func (m *mockMessenger) Delete(_ context.Context, _, _ string) error { return nil }

func (m *mockMessenger) FetchDocument(_ context.Context, _ string) ([]byte, error) {
	return nil, fmt.Errorf("no documents in this fake")
}
