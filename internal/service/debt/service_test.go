package debt

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

func due(n int) time.Time {
	return time.Date(2025, time.February, n, 0, 0, 0, 0, time.UTC)
}

func seedLiability(store *memory.Store) fx.Holding {
	h := fx.Holding{ID: uuid.New(), Name: "USD loan", Currency: "USD", Type: fx.HoldingLiability}
	store.SeedHolding(h)
	return h
}

func TestCreateGeneratesSchedule(t *testing.T) {
	store := memory.New()
	h := seedLiability(store)
	svc := New(store, store)

	created, err := svc.Create(context.Background(), fx.Debt{
		HoldingID: h.ID, Principal: d("1200"), AnnualRate: d("0.12"),
		System: fx.SystemGerman, Installments: 12, Frequency: fx.FreqMonthly,
		FirstDue: due(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.Currency != "USD" {
		t.Errorf("currency not defaulted from holding: %q", created.Currency)
	}
	if len(created.Schedule) != 12 {
		t.Fatalf("schedule length = %d", len(created.Schedule))
	}
	if !created.Outstanding.Equal(d("1200")) {
		t.Errorf("outstanding = %s", created.Outstanding)
	}

	got, err := store.Debt(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Schedule) != 12 {
		t.Error("schedule must be persisted with the debt")
	}
}

func TestCreateRejectsAssetHolding(t *testing.T) {
	store := memory.New()
	h := fx.Holding{ID: uuid.New(), Name: "USD cash", Currency: "USD", Type: fx.HoldingAsset}
	store.SeedHolding(h)
	svc := New(store, store)

	_, err := svc.Create(context.Background(), fx.Debt{
		HoldingID: h.ID, Principal: d("1000"), System: fx.SystemFrench,
		Installments: 12, Frequency: fx.FreqMonthly, FirstDue: due(1),
	})
	if !errors.Is(err, errs.ErrUnprocessable) {
		t.Errorf("want unprocessable, got %v", err)
	}
}

func TestCreateRejectsBadTerms(t *testing.T) {
	store := memory.New()
	h := seedLiability(store)
	svc := New(store, store)
	ctx := context.Background()

	cases := []fx.Debt{
		{HoldingID: h.ID, Principal: d("0"), System: fx.SystemFrench, Installments: 12, Frequency: fx.FreqMonthly, FirstDue: due(1)},
		{HoldingID: h.ID, Principal: d("1000"), System: fx.AmortSystem("italian"), Installments: 12, Frequency: fx.FreqMonthly, FirstDue: due(1)},
		{HoldingID: h.ID, Principal: d("1000"), System: fx.SystemFrench, Installments: 0, Frequency: fx.FreqMonthly, FirstDue: due(1)},
		{HoldingID: h.ID, Principal: d("1000"), System: fx.SystemFrench, Installments: 12, Frequency: fx.Frequency("weekly"), FirstDue: due(1)},
		{HoldingID: h.ID, Principal: d("1000"), AnnualRate: d("-0.1"), System: fx.SystemFrench, Installments: 12, Frequency: fx.FreqMonthly, FirstDue: due(1)},
	}
	for i, tc := range cases {
		if _, err := svc.Create(ctx, tc); !errors.Is(err, errs.ErrInvalid) {
			t.Errorf("case %d: want invalid, got %v", i, err)
		}
	}
}

func sampleDebt() fx.Debt {
	return fx.Debt{
		ID: uuid.New(), HoldingID: uuid.New(), Currency: "USD",
		Principal: d("300"), Outstanding: d("300"),
		Schedule: []fx.Installment{
			{Number: 1, DueDate: due(1), Principal: d("100")},
			{Number: 2, DueDate: due(2), Principal: d("100")},
			{Number: 3, DueDate: due(3), Principal: d("100")},
		},
	}
}

func payment(principal string) fx.Movement {
	return fx.Movement{
		ID: uuid.New(), Kind: fx.KindDebtPayment,
		Principal: d(principal), Rate: d("40.00"),
	}
}

func TestSettleMarksEarliestCoveredInstallment(t *testing.T) {
	debt := sampleDebt()
	m := payment("100")

	out, err := Settle(debt, m)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Outstanding.Equal(d("200")) {
		t.Errorf("outstanding = %s", out.Outstanding)
	}
	if !out.Schedule[0].Paid || out.Schedule[0].MovementID != m.ID {
		t.Error("first installment must be settled")
	}
	if out.Schedule[1].Paid || out.Schedule[2].Paid {
		t.Error("only one installment may settle per payment")
	}
	if !out.Schedule[0].PaidRate.Equal(d("40.00")) {
		t.Errorf("paid rate = %s", out.Schedule[0].PaidRate)
	}
	// The input is not mutated.
	if debt.Schedule[0].Paid {
		t.Error("Settle must not mutate its input")
	}
}

func TestSettlePartialPaymentReducesOutstandingOnly(t *testing.T) {
	debt := sampleDebt()

	out, err := Settle(debt, payment("60"))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Outstanding.Equal(d("240")) {
		t.Errorf("outstanding = %s", out.Outstanding)
	}
	// 60 does not cover the first installment's 100 principal.
	if out.Schedule[0].Paid {
		t.Error("partial payment must not settle the installment")
	}
}

func TestSettleSkipsUncoveredInstallments(t *testing.T) {
	debt := sampleDebt()
	debt.Schedule = []fx.Installment{
		{Number: 1, DueDate: due(1), Principal: d("150")},
		{Number: 2, DueDate: due(2), Principal: d("100")},
		{Number: 3, DueDate: due(3), Principal: d("50")},
	}
	m := payment("60")

	// 60 covers neither 150 nor 100, but it does cover the remainder
	// installment further down the schedule.
	out, err := Settle(debt, m)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Outstanding.Equal(d("240")) {
		t.Errorf("outstanding = %s", out.Outstanding)
	}
	if out.Schedule[0].Paid || out.Schedule[1].Paid {
		t.Error("uncovered installments must stay unpaid")
	}
	if !out.Schedule[2].Paid || out.Schedule[2].MovementID != m.ID {
		t.Error("earliest covered installment must settle")
	}
}

func TestSettleRejectsOverpayment(t *testing.T) {
	debt := sampleDebt()
	_, err := Settle(debt, payment("400"))
	var insufficient *errs.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Shortfall().Equal(d("100")) {
		t.Errorf("shortfall = %s", insufficient.Shortfall())
	}
}

func TestUnsettleReversesSettle(t *testing.T) {
	debt := sampleDebt()
	m := payment("100")
	settled, err := Settle(debt, m)
	if err != nil {
		t.Fatal(err)
	}

	restored := Unsettle(settled, m)
	if !restored.Outstanding.Equal(d("300")) {
		t.Errorf("outstanding = %s", restored.Outstanding)
	}
	if restored.Schedule[0].Paid || restored.Schedule[0].MovementID != uuid.Nil {
		t.Error("installment must be unpaid again")
	}
	if !restored.Schedule[0].PaidRate.IsZero() {
		t.Errorf("paid rate must reset, got %s", restored.Schedule[0].PaidRate)
	}
}

func TestDrawAndUndraw(t *testing.T) {
	debt := sampleDebt()
	m := fx.Movement{ID: uuid.New(), Kind: fx.KindDebtDraw, Quantity: d("150")}

	drawn := Draw(debt, m)
	if !drawn.Outstanding.Equal(d("450")) {
		t.Errorf("outstanding after draw = %s", drawn.Outstanding)
	}
	undrawn := Undraw(drawn, m)
	if !undrawn.Outstanding.Equal(d("300")) {
		t.Errorf("outstanding after undraw = %s", undrawn.Outstanding)
	}
}
