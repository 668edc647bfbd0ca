package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
)

type clientFixture struct {
	uc       *clientUC
	store    *memStore
	clients  *mockClientRepo
	products *mockProductRepo
}

func newClientFixture() *clientFixture {
	store := newMemStore()
	clients := &mockClientRepo{store: store}
	products := &mockProductRepo{store: store}
	log := zerolog.Nop()
	uc := NewClientUseCase(clients, products, &mockTxManager{store: store}, &log)
	return &clientFixture{uc: uc, store: store, clients: clients, products: products}
}

func seedClient(t *testing.T, f *clientFixture, id, name string, owner int64) *model.Client {
	t.Helper()
	c := &model.Client{ID: id, Name: name, OwnerUserID: owner, CreatedAt: time.Now()}
	if err := f.clients.Insert(context.Background(), nil, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedProduct(t *testing.T, f *clientFixture, clientID, name string, expiry time.Time) *model.ClientProduct {
	t.Helper()
	p := &model.ClientProduct{
		ClientID:    clientID,
		ProductName: name,
		ExpiryDate:  expiry,
		NoticeDate:  expiry.AddDate(0, 0, -model.NoticeLeadDays),
		Status:      model.ProductStatusActive,
	}
	if err := f.products.Insert(context.Background(), nil, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestCreateWithFirstProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("commits both rows", func(t *testing.T) {
		f := newClientFixture()
		now := time.Now()
		contract, expiry, notice := model.ProductDates(now, 30)
		c := &model.Client{ID: model.NewClientID(), Name: "Carlos", OwnerUserID: 7, CreatedAt: now}
		p := &model.ClientProduct{
			ProductName:  "IPTV Full",
			ContractDate: contract,
			ExpiryDate:   expiry,
			NoticeDate:   notice,
			Status:       model.ProductStatusActive,
		}
		if err := f.uc.CreateWithFirstProduct(ctx, c, p); err != nil {
			t.Fatalf("CreateWithFirstProduct: %v", err)
		}
		got, err := f.uc.Find(ctx, c.ID, nil)
		if err != nil {
			t.Fatalf("Find after create: %v", err)
		}
		if got.Name != "Carlos" {
			t.Fatalf("name = %q", got.Name)
		}
		products, _ := f.uc.Products(ctx, c.ID, nil)
		if len(products) != 1 {
			t.Fatalf("products = %d, want 1", len(products))
		}
		if products[0].ClientID != c.ID {
			t.Fatalf("product not attached to client: %q", products[0].ClientID)
		}
	})

	t.Run("rolls back client when product insert fails", func(t *testing.T) {
		f := newClientFixture()
		f.products.failInsert = true
		c := &model.Client{ID: model.NewClientID(), Name: "Ana", OwnerUserID: 7}
		p := &model.ClientProduct{ProductName: "Basic"}
		if err := f.uc.CreateWithFirstProduct(ctx, c, p); err == nil {
			t.Fatal("expected error from failing product insert")
		}
		if n, _ := f.clients.Count(ctx, nil, nil); n != 0 {
			t.Fatalf("client row survived a failed commit: count=%d", n)
		}
	})
}

func TestRenewProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("extends from current expiry", func(t *testing.T) {
		f := newClientFixture()
		seedClient(t, f, "clt_aaaa1111", "Carlos", 7)
		expiry := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
		p := seedProduct(t, f, "clt_aaaa1111", "IPTV Full", expiry)

		renewed, err := f.uc.RenewProduct(ctx, p.ID, 30, nil)
		if err != nil {
			t.Fatalf("RenewProduct: %v", err)
		}
		wantExpiry := expiry.AddDate(0, 0, 30)
		if !renewed.ExpiryDate.Equal(wantExpiry) {
			t.Fatalf("expiry = %v, want %v", renewed.ExpiryDate, wantExpiry)
		}
		if !renewed.NoticeDate.Equal(wantExpiry.AddDate(0, 0, -model.NoticeLeadDays)) {
			t.Fatalf("notice = %v", renewed.NoticeDate)
		}
		if renewed.Status != model.ProductStatusRenewed {
			t.Fatalf("status = %q", renewed.Status)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newClientFixture()
		if _, err := f.uc.RenewProduct(ctx, 999, 30, nil); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("scoped out for another owner", func(t *testing.T) {
		f := newClientFixture()
		seedClient(t, f, "clt_bbbb2222", "Marta", 7)
		p := seedProduct(t, f, "clt_bbbb2222", "VPN", time.Now())
		other := int64(99)
		if _, err := f.uc.RenewProduct(ctx, p.ID, 30, &other); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound for foreign scope", err)
		}
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		f := newClientFixture()
		if _, err := f.uc.RenewProduct(ctx, 1, 0, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestDeleteClient(t *testing.T) {
	ctx := context.Background()
	f := newClientFixture()
	seedClient(t, f, "clt_cccc3333", "Carlos", 7)
	seedProduct(t, f, "clt_cccc3333", "IPTV", time.Now())
	seedProduct(t, f, "clt_cccc3333", "VPN", time.Now())

	deleted, err := f.uc.DeleteClient(ctx, "clt_cccc3333", nil)
	if err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if !deleted {
		t.Fatal("deleted = false")
	}
	if n, _ := f.products.Count(ctx, nil, nil); n != 0 {
		t.Fatalf("orphaned products left: %d", n)
	}
}

func TestUpdateClientField(t *testing.T) {
	ctx := context.Background()
	f := newClientFixture()
	seedClient(t, f, "clt_dddd4444", "Carlos", 7)

	if err := f.uc.UpdateClientField(ctx, "clt_dddd4444", model.ClientFieldEmail, "c@mail.com", nil); err != nil {
		t.Fatalf("UpdateClientField: %v", err)
	}
	got, _ := f.uc.Find(ctx, "clt_dddd4444", nil)
	if got.Email != "c@mail.com" {
		t.Fatalf("email = %q", got.Email)
	}

	err := f.uc.UpdateClientField(ctx, "clt_missing", model.ClientFieldEmail, "x@mail.com", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()

	backup := []model.BackupClient{
		{
			ID: "clt_aaaa1111", Name: "Carlos", WhatsApp: "+5491122334455",
			Products: []model.BackupProduct{
				{ProductName: "IPTV Full", ExpiryDate: "2026-10-01", Status: "Active"},
				{ProductName: "VPN", ExpiryDate: "2026-11-15"},
			},
		},
		{ID: "clt_bbbb2222", Name: "Marta"},
	}

	t.Run("adds new and skips existing", func(t *testing.T) {
		f := newClientFixture()
		seedClient(t, f, "clt_bbbb2222", "Marta", 7)

		added, err := f.uc.RestoreBackup(ctx, backup, 7)
		if err != nil {
			t.Fatalf("RestoreBackup: %v", err)
		}
		if added != 1 {
			t.Fatalf("added = %d, want 1", added)
		}
		products, _ := f.uc.Products(ctx, "clt_aaaa1111", nil)
		if len(products) != 2 {
			t.Fatalf("restored products = %d, want 2", len(products))
		}
		want := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		if !products[0].ExpiryDate.Equal(want) {
			t.Fatalf("expiry = %v, want %v", products[0].ExpiryDate, want)
		}
	})

	t.Run("malformed entry aborts everything", func(t *testing.T) {
		f := newClientFixture()
		bad := []model.BackupClient{
			{ID: "clt_eeee5555", Name: "Good"},
			{ID: "clt_ffff6666", Name: "Bad", Products: []model.BackupProduct{
				{ProductName: "IPTV", ExpiryDate: "01/10/2026"},
			}},
		}
		if _, err := f.uc.RestoreBackup(ctx, bad, 7); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
		if n, _ := f.clients.Count(ctx, nil, nil); n != 0 {
			t.Fatalf("partial restore survived: %d clients", n)
		}
	})
}
