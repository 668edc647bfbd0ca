package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
)

// recorderMessenger captures outbound traffic and serves canned documents.
type recorderMessenger struct {
	sent    []string
	deleted []string
	files   map[string][]byte
	nextID  int
}

func (r *recorderMessenger) Send(ctx context.Context, chat, text string) (string, error) {
	r.sent = append(r.sent, text)
	r.nextID++
	return fmt.Sprintf("m%d", r.nextID), nil
}

func (r *recorderMessenger) Delete(ctx context.Context, chat, messageID string) error {
	r.deleted = append(r.deleted, messageID)
	return nil
}

func (r *recorderMessenger) FetchDocument(ctx context.Context, fileID string) ([]byte, error) {
	raw, ok := r.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (r *recorderMessenger) last() string {
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

type stubUserSvc struct {
	users map[int64]*model.User
}

func (s *stubUserSvc) Get(ctx context.Context, id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// fakeClientSvc is an in-memory ClientService with optional error injection.
type fakeClientSvc struct {
	clients       []*model.Client
	products      map[string][]*model.ClientProduct
	nextProductID int64

	createErr error

	clientUpdates  map[model.ClientField]string
	productUpdates map[model.ProductField]string
}

func newFakeClientSvc() *fakeClientSvc {
	return &fakeClientSvc{
		products:       make(map[string][]*model.ClientProduct),
		clientUpdates:  make(map[model.ClientField]string),
		productUpdates: make(map[model.ProductField]string),
	}
}

func (f *fakeClientSvc) inScope(c *model.Client, scope *int64) bool {
	return scope == nil || c.OwnerUserID == *scope
}

func (f *fakeClientSvc) Find(ctx context.Context, query string, scope *int64) (*model.Client, error) {
	for _, c := range f.clients {
		if !f.inScope(c, scope) {
			continue
		}
		if c.ID == query || strings.EqualFold(c.Name, query) {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeClientSvc) List(ctx context.Context, search string, scope *int64) ([]*model.Client, error) {
	var out []*model.Client
	for _, c := range f.clients {
		if f.inScope(c, scope) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientSvc) Products(ctx context.Context, clientID string, scope *int64) ([]*model.ClientProduct, error) {
	return f.products[clientID], nil
}

func (f *fakeClientSvc) CreateWithFirstProduct(ctx context.Context, c *model.Client, p *model.ClientProduct) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.clients = append(f.clients, c)
	return f.AddProduct(ctx, p)
}

func (f *fakeClientSvc) AddProduct(ctx context.Context, p *model.ClientProduct) error {
	f.nextProductID++
	p.ID = f.nextProductID
	f.products[p.ClientID] = append(f.products[p.ClientID], p)
	return nil
}

func (f *fakeClientSvc) UpdateClientField(ctx context.Context, id string, field model.ClientField, value string, scope *int64) error {
	f.clientUpdates[field] = value
	return nil
}

func (f *fakeClientSvc) UpdateProductField(ctx context.Context, id int64, field model.ProductField, value string, scope *int64) error {
	f.productUpdates[field] = value
	return nil
}

func (f *fakeClientSvc) DeleteClient(ctx context.Context, id string, scope *int64) (bool, error) {
	for i, c := range f.clients {
		if c.ID == id && f.inScope(c, scope) {
			f.clients = append(f.clients[:i], f.clients[i+1:]...)
			delete(f.products, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClientSvc) DeleteProduct(ctx context.Context, id int64, scope *int64) (bool, error) {
	for cid, list := range f.products {
		for i, p := range list {
			if p.ID == id {
				f.products[cid] = append(list[:i], list[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeClientSvc) RenewProduct(ctx context.Context, id int64, durationDays int, scope *int64) (*model.ClientProduct, error) {
	for _, list := range f.products {
		for _, p := range list {
			if p.ID == id {
				p.ExpiryDate, p.NoticeDate = model.RenewDates(p.ExpiryDate, durationDays)
				p.Status = model.ProductStatusRenewed
				return p, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeClientSvc) RestoreBackup(ctx context.Context, backup []model.BackupClient, ownerID int64) (int, error) {
	known := make(map[string]bool, len(f.clients))
	for _, c := range f.clients {
		known[c.ID] = true
	}
	added := 0
	for _, b := range backup {
		if known[b.ID] {
			continue
		}
		f.clients = append(f.clients, &model.Client{ID: b.ID, Name: b.Name, OwnerUserID: ownerID})
		added++
	}
	return added, nil
}

// codecEnc is a reversible marker codec standing in for AES.
type codecEnc struct{}

func (codecEnc) Encrypt(s string) (string, error) { return "enc:" + s, nil }
func (codecEnc) Decrypt(s string) (string, error) {
	return strings.TrimPrefix(s, "enc:"), nil
}

type engineFixture struct {
	engine  *Engine
	msgr    *recorderMessenger
	clients *fakeClientSvc
	store   *MemoryStore
	users   *stubUserSvc
}

func newEngineFixture() *engineFixture {
	logger := zerolog.Nop()
	msgr := &recorderMessenger{files: make(map[string][]byte)}
	clients := newFakeClientSvc()
	store := NewMemoryStore()
	users := &stubUserSvc{users: map[int64]*model.User{
		1: {ID: 1, Name: "Owner", Role: model.RoleOwner},
		2: {ID: 2, Name: "Admin", Role: model.RoleAdmin},
		3: {ID: 3, Name: "Plain", Role: model.RoleUser},
	}}
	return &engineFixture{
		engine:  NewEngine("test", store, msgr, users, clients, codecEnc{}, &logger),
		msgr:    msgr,
		clients: clients,
		store:   store,
		users:   users,
	}
}

func msg(userID int64, text string) adapter.Message {
	return adapter.Message{UserID: userID, Chat: fmt.Sprintf("%d", userID), Text: text, MessageID: "in1"}
}

// route sends one message through the engine and fails the test if the
// session machinery reports it unhandled.
func (f *engineFixture) route(t *testing.T, userID int64, text string) {
	t.Helper()
	handled, err := f.engine.Route(context.Background(), msg(userID, text))
	if err != nil {
		t.Fatalf("Route(%q): %v", text, err)
	}
	if !handled {
		t.Fatalf("Route(%q) not handled; no active session", text)
	}
}

func (f *engineFixture) session(t *testing.T, userID int64) *Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return s
}

func (f *engineFixture) seedClient(id, name string, ownerID int64) *model.Client {
	c := &model.Client{ID: id, Name: name, OwnerUserID: ownerID}
	f.clients.clients = append(f.clients.clients, c)
	return c
}

func TestRouteWithoutSession(t *testing.T) {
	f := newEngineFixture()
	handled, err := f.engine.Route(context.Background(), msg(2, "hello"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if handled {
		t.Fatal("message handled although no session exists")
	}
	if len(f.msgr.sent) != 0 {
		t.Fatalf("unexpected replies: %v", f.msgr.sent)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	if err := f.engine.Cancel(ctx, msg(2, "/cancel")); err != nil {
		t.Fatalf("Cancel without session: %v", err)
	}
	if f.msgr.last() != "Nothing to cancel." {
		t.Fatalf("got %q", f.msgr.last())
	}

	if err := f.engine.StartFlow(ctx, KindAddClient, msg(2, "/addclient")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if f.session(t, 2) == nil {
		t.Fatal("no session after StartFlow")
	}
	if err := f.engine.Cancel(ctx, msg(2, "/cancel")); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.session(t, 2) != nil {
		t.Fatal("session survived Cancel")
	}
	if !strings.Contains(f.msgr.last(), "Operation cancelled") {
		t.Fatalf("got %q", f.msgr.last())
	}
	if len(f.msgr.deleted) == 0 {
		t.Fatal("tracked prompt was not cleaned up on cancel")
	}
}

func TestStartFlowRoleCheck(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	if err := f.engine.StartFlow(ctx, KindAddClient, msg(3, "/addclient")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if f.msgr.last() != "Sorry, your role does not allow this operation." {
		t.Fatalf("got %q", f.msgr.last())
	}
	if f.session(t, 3) != nil {
		t.Fatal("session created despite role denial")
	}

	// Restore is owner only; an admin is turned away too.
	if err := f.engine.StartFlow(ctx, KindRestore, msg(2, "/restore")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if f.msgr.last() != "Sorry, your role does not allow this operation." {
		t.Fatalf("got %q", f.msgr.last())
	}

	// Unknown users hold no role at all.
	if err := f.engine.StartFlow(ctx, KindAddClient, msg(99, "/addclient")); err != nil {
		t.Fatalf("StartFlow unknown user: %v", err)
	}
	if f.session(t, 99) != nil {
		t.Fatal("session created for unknown user")
	}
}

func TestStartFlowOverwritesActiveSession(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.seedClient("clt_aaaa1111", "Ana", 2)

	if err := f.engine.StartFlow(ctx, KindAddClient, msg(2, "/addclient")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	if err := f.engine.StartFlow(ctx, KindUpdateClient, msg(2, "/updateclient")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	s := f.session(t, 2)
	if s == nil || s.Kind != KindUpdateClient {
		t.Fatalf("session = %+v, want update flow", s)
	}
}

func TestHandlerFailureDiscardsSession(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.clients.createErr = errors.New("db is down")

	if err := f.engine.StartFlow(ctx, KindAddClient, msg(2, "/addclient")); err != nil {
		t.Fatalf("StartFlow: %v", err)
	}
	for _, in := range []string{"Ana", "no", "no", "no", "Netflix", "30", "no", "no", "no"} {
		f.route(t, 2, in)
	}

	if f.session(t, 2) != nil {
		t.Fatal("session survived a commit failure")
	}
	if !strings.Contains(f.msgr.last(), "the operation was discarded") ||
		!strings.Contains(f.msgr.last(), "error code") {
		t.Fatalf("got %q", f.msgr.last())
	}
	if len(f.clients.clients) != 0 {
		t.Fatal("client was persisted despite commit failure")
	}
}
