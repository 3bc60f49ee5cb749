package holding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreate(t *testing.T) {
	store := memory.New()
	svc := New(store, store)

	h, err := svc.Create(context.Background(), fx.Holding{
		Name: "USD cash", Currency: "usd", Type: fx.HoldingAsset,
		OpeningQuantity: d("100"), OpeningRate: d("38.00"),
		OpeningDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.ID == uuid.Nil {
		t.Error("id must be assigned")
	}
	if h.Currency != "USD" {
		t.Errorf("currency = %q, want normalized USD", h.Currency)
	}
}

func TestCreateValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store)
	ctx := context.Background()

	cases := []fx.Holding{
		{Name: "", Currency: "USD", Type: fx.HoldingAsset},
		{Name: "x", Currency: "", Type: fx.HoldingAsset},
		{Name: "x", Currency: "USD", Type: fx.HoldingType("equity")},
		{Name: "x", Currency: "USD", Type: fx.HoldingAsset, OpeningQuantity: d("-1")},
		// Opening balance without a date.
		{Name: "x", Currency: "USD", Type: fx.HoldingAsset, OpeningQuantity: d("10"), OpeningRate: d("40")},
	}
	for i, tc := range cases {
		if _, err := svc.Create(ctx, tc); !errors.Is(err, errs.ErrInvalid) {
			t.Errorf("case %d: want invalid, got %v", i, err)
		}
	}
}

func TestDeleteRefusesWithMovements(t *testing.T) {
	store := memory.New()
	svc := New(store, store)
	ctx := context.Background()

	h, err := svc.Create(ctx, fx.Holding{Name: "USD cash", Currency: "USD", Type: fx.HoldingAsset})
	if err != nil {
		t.Fatal(err)
	}
	m := fx.Movement{ID: uuid.New(), Date: time.Now(), Kind: fx.KindBuy, HoldingID: h.ID, Quantity: d("10"), Rate: d("40")}
	if err := store.Apply(ctx, fx.WriteSet{PutMovements: []fx.Movement{m}}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, h.ID); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("want conflict, got %v", err)
	}

	// After the movement is gone the holding can be deleted.
	if err := store.Apply(ctx, fx.WriteSet{DeleteMovementIDs: []uuid.UUID{m.ID}}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, h.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, h.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("want not found, got %v", err)
	}
}
