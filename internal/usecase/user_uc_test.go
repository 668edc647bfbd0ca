package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
)

const testOwnerID = int64(1000)

func newUserFixture() (*userUC, *memStore) {
	store := newMemStore()
	log := zerolog.Nop()
	uc := NewUserUseCase(
		&mockUserRepo{store: store},
		&mockClientRepo{store: store},
		&mockTxManager{store: store},
		testOwnerID,
		&log,
	)
	return uc, store
}

func TestRegisterOrFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstrap owner gets the owner role", func(t *testing.T) {
		uc, _ := newUserFixture()
		u, err := uc.RegisterOrFetch(ctx, testOwnerID, "boss")
		if err != nil {
			t.Fatalf("RegisterOrFetch: %v", err)
		}
		if u.Role != model.RoleOwner {
			t.Fatalf("role = %q, want owner", u.Role)
		}
	})

	t.Run("everyone else starts as user", func(t *testing.T) {
		uc, _ := newUserFixture()
		u, err := uc.RegisterOrFetch(ctx, 42, "pepe")
		if err != nil {
			t.Fatalf("RegisterOrFetch: %v", err)
		}
		if u.Role != model.RoleUser {
			t.Fatalf("role = %q, want user", u.Role)
		}
	})

	t.Run("second contact keeps the record and refreshes the name", func(t *testing.T) {
		uc, _ := newUserFixture()
		if _, err := uc.RegisterOrFetch(ctx, 42, "pepe"); err != nil {
			t.Fatalf("first contact: %v", err)
		}
		u, err := uc.RegisterOrFetch(ctx, 42, "pepe2")
		if err != nil {
			t.Fatalf("second contact: %v", err)
		}
		if u.Name != "pepe2" {
			t.Fatalf("name = %q, want pepe2", u.Name)
		}
		if n, _ := uc.Count(ctx); n != 1 {
			t.Fatalf("users = %d, want 1", n)
		}
	})
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()

	t.Run("owner promotes a user", func(t *testing.T) {
		uc, _ := newUserFixture()
		owner, _ := uc.RegisterOrFetch(ctx, testOwnerID, "boss")
		uc.RegisterOrFetch(ctx, 42, "pepe")

		if err := uc.SetRole(ctx, owner, 42, model.RoleAdmin); err != nil {
			t.Fatalf("SetRole: %v", err)
		}
		got, _ := uc.Get(ctx, 42)
		if got.Role != model.RoleAdmin {
			t.Fatalf("role = %q, want admin", got.Role)
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		uc, _ := newUserFixture()
		admin := &model.User{ID: 5, Role: model.RoleAdmin}
		uc.RegisterOrFetch(ctx, 42, "pepe")
		if err := uc.SetRole(ctx, admin, 42, model.RoleModerator); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("owner cannot demote themselves", func(t *testing.T) {
		uc, _ := newUserFixture()
		owner, _ := uc.RegisterOrFetch(ctx, testOwnerID, "boss")
		if err := uc.SetRole(ctx, owner, testOwnerID, model.RoleUser); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})
}

func TestLinkClient(t *testing.T) {
	ctx := context.Background()
	uc, store := newUserFixture()
	uc.RegisterOrFetch(ctx, 42, "pepe")
	store.clients["clt_aaaa1111"] = &model.Client{ID: "clt_aaaa1111", Name: "Carlos", OwnerUserID: testOwnerID}

	if err := uc.LinkClient(ctx, 42, "clt_aaaa1111"); err != nil {
		t.Fatalf("LinkClient: %v", err)
	}
	u, _ := uc.Get(ctx, 42)
	if u.ClientID != "clt_aaaa1111" {
		t.Fatalf("client id = %q", u.ClientID)
	}

	if err := uc.LinkClient(ctx, 42, "clt_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown client", err)
	}
}

func TestLinkWhatsApp(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUserFixture()
	uc.RegisterOrFetch(ctx, 42, "pepe")

	if err := uc.LinkWhatsApp(ctx, 42, "5491122334455"); err != nil {
		t.Fatalf("LinkWhatsApp: %v", err)
	}
	u, err := uc.GetByWhatsAppID(ctx, "5491122334455")
	if err != nil {
		t.Fatalf("GetByWhatsAppID: %v", err)
	}
	if u.ID != 42 {
		t.Fatalf("id = %d, want 42", u.ID)
	}
}
