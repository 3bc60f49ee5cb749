package posting

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fifo"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/resolver"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	builder     *Builder
	holding     fx.Holding
	target      fx.Holding
	holdingAcc  fx.Account
	targetAcc   fx.Account
	counterpart fx.Account
	commission  fx.Account
	fxResult    fx.Account
	interest    fx.Account
}

func newFixture() fixture {
	f := fixture{
		holdingAcc:  fx.Account{ID: uuid.New(), Code: "1.1.05", Name: "Moneda extranjera"},
		targetAcc:   fx.Account{ID: uuid.New(), Code: "1.1.06", Name: "Moneda extranjera banco"},
		counterpart: fx.Account{ID: uuid.New(), Code: "1.1.01", Name: "Caja"},
		commission:  fx.Account{ID: uuid.New(), Code: "5.1.31", Name: "Comisiones"},
		fxResult:    fx.Account{ID: uuid.New(), Code: "5.3.01", Name: "Diferencia de cambio"},
		interest:    fx.Account{ID: uuid.New(), Code: "5.1.21", Name: "Intereses"},
	}
	res := resolver.New([]fx.Account{
		f.holdingAcc, f.targetAcc, f.counterpart, f.commission, f.fxResult, f.interest,
	}, nil)
	f.builder = New(res, "ARS")
	f.holding = fx.Holding{ID: uuid.New(), Name: "USD cash", Currency: "USD", Type: fx.HoldingAsset, AccountID: f.holdingAcc.ID}
	f.target = fx.Holding{ID: uuid.New(), Name: "USD bank", Currency: "USD", Type: fx.HoldingAsset, AccountID: f.targetAcc.ID}
	return f
}

type wantLine struct {
	account uuid.UUID
	side    fx.Side
	minor   int64
}

func assertLines(t *testing.T, p fx.Posting, want []wantLine) {
	t.Helper()
	got := make([]wantLine, 0, len(p.Lines))
	for _, ln := range p.Lines {
		minor, _ := ln.Amount.MinorUnits()
		got = append(got, wantLine{account: ln.AccountID, side: ln.Side, minor: minor})
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(wantLine{})); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if !p.Balanced() {
		deb, cred := p.Totals()
		t.Fatalf("posting does not balance: debits %d credits %d", deb, cred)
	}
}

func TestBuildBuy(t *testing.T) {
	f := newFixture()
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindBuy, Currency: "USD",
		HoldingID: f.holding.ID, Quantity: d("1000"), Rate: d("40.00"), Commission: d("500"),
	}

	p, err := f.builder.Build(m, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.holdingAcc.ID, fx.SideDebit, 4000000},
		{f.commission.ID, fx.SideDebit, 50000},
		{f.counterpart.ID, fx.SideCredit, 4050000},
	})
	if !p.Generated {
		t.Error("machine-built posting must be flagged generated")
	}
	if p.MovementID != m.ID {
		t.Error("posting must reference the movement")
	}
}

func TestBuildSellWithGain(t *testing.T) {
	f := newFixture()
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindSell, Currency: "USD",
		HoldingID: f.holding.ID, Quantity: d("1000"), Rate: d("45.00"), Commission: d("400"),
	}
	disposal := fifo.DisposalCost{Total: d("40000")}

	p, err := f.builder.Build(m, f.holding, nil, disposal)
	if err != nil {
		t.Fatal(err)
	}
	// Gross 45,000 enters net of the 400 commission; the holding is relieved
	// at FIFO cost and the exchange difference takes the 5,000 remainder.
	assertLines(t, p, []wantLine{
		{f.counterpart.ID, fx.SideDebit, 4460000},
		{f.commission.ID, fx.SideDebit, 40000},
		{f.holdingAcc.ID, fx.SideCredit, 4000000},
		{f.fxResult.ID, fx.SideCredit, 500000},
	})
}

func TestBuildSellWithLoss(t *testing.T) {
	f := newFixture()
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindSell, Currency: "USD",
		HoldingID: f.holding.ID, Quantity: d("100"), Rate: d("38.00"),
	}
	disposal := fifo.DisposalCost{Total: d("4000")}

	p, err := f.builder.Build(m, f.holding, nil, disposal)
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.counterpart.ID, fx.SideDebit, 380000},
		{f.holdingAcc.ID, fx.SideCredit, 400000},
		{f.fxResult.ID, fx.SideDebit, 20000},
	})
}

func TestBuildInflowOutflowAdjustment(t *testing.T) {
	f := newFixture()
	base := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Currency: "USD",
		HoldingID: f.holding.ID, Quantity: d("100"), Rate: d("40.00"),
	}

	inflow := base
	inflow.Kind = fx.KindInflow
	p, err := f.builder.Build(inflow, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.holdingAcc.ID, fx.SideDebit, 400000},
		{f.fxResult.ID, fx.SideCredit, 400000},
	})

	outflow := base
	outflow.Kind = fx.KindOutflow
	p, err = f.builder.Build(outflow, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.fxResult.ID, fx.SideDebit, 400000},
		{f.holdingAcc.ID, fx.SideCredit, 400000},
	})

	adjDown := base
	adjDown.Kind = fx.KindAdjustment
	p, err = f.builder.Build(adjDown, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.fxResult.ID, fx.SideDebit, 400000},
		{f.holdingAcc.ID, fx.SideCredit, 400000},
	})

	adjUp := base
	adjUp.Kind = fx.KindAdjustment
	adjUp.Increase = true
	p, err = f.builder.Build(adjUp, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.holdingAcc.ID, fx.SideDebit, 400000},
		{f.fxResult.ID, fx.SideCredit, 400000},
	})
}

func TestBuildTransferAndDraw(t *testing.T) {
	f := newFixture()
	for _, kind := range []fx.MovementKind{fx.KindTransfer, fx.KindDebtDraw} {
		m := fx.Movement{
			ID: uuid.New(), Date: time.Now(), Kind: kind, Currency: "USD",
			HoldingID: f.holding.ID, TargetHoldingID: f.target.ID,
			Quantity: d("250"), Rate: d("41.00"),
		}
		p, err := f.builder.Build(m, f.holding, &f.target, fifo.DisposalCost{})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		assertLines(t, p, []wantLine{
			{f.targetAcc.ID, fx.SideDebit, 1025000},
			{f.holdingAcc.ID, fx.SideCredit, 1025000},
		})
	}
}

func TestBuildDebtPayment(t *testing.T) {
	f := newFixture()
	liab := fx.Holding{ID: uuid.New(), Name: "USD loan", Currency: "USD", Type: fx.HoldingLiability, AccountID: f.holdingAcc.ID}
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindDebtPayment, Currency: "USD",
		HoldingID: liab.ID, Quantity: d("110"), Rate: d("40.00"),
		Principal: d("100"), Interest: d("10"), Commission: d("50"),
	}

	p, err := f.builder.Build(m, liab, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, p, []wantLine{
		{f.holdingAcc.ID, fx.SideDebit, 400000},
		{f.interest.ID, fx.SideDebit, 40000},
		{f.commission.ID, fx.SideDebit, 5000},
		{f.counterpart.ID, fx.SideCredit, 445000},
	})
}

func TestBuildCollectsEveryMissingRole(t *testing.T) {
	// A resolver over an empty chart misses everything at once.
	b := New(resolver.New(nil, nil), "ARS")
	h := fx.Holding{ID: uuid.New(), Name: "USD cash", Currency: "USD", Type: fx.HoldingAsset}
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindSell, Currency: "USD",
		HoldingID: h.ID, Quantity: d("100"), Rate: d("40.00"), Commission: d("10"),
	}

	_, err := b.Build(m, h, nil, fifo.DisposalCost{Total: d("4000")})
	var missing *errs.MissingAccountsError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingAccountsError, got %v", err)
	}
	roles := map[string]string{}
	for _, r := range missing.Missing {
		roles[r.Role] = r.FallbackCode
	}
	if _, ok := roles["holding_account:USD cash"]; !ok {
		t.Error("missing roles should name the unlinked holding account")
	}
	if roles["counterpart"] != "1.1.01" {
		t.Errorf("counterpart fallback code = %q", roles["counterpart"])
	}
	if roles["fx_result"] != "5.3.01" {
		t.Errorf("fx_result fallback code = %q", roles["fx_result"])
	}
	if roles["commission"] != "5.1.31" {
		t.Errorf("commission fallback code = %q", roles["commission"])
	}
}

func TestBuildMemoFallback(t *testing.T) {
	f := newFixture()
	m := fx.Movement{
		ID: uuid.New(), Date: time.Now(), Kind: fx.KindBuy, Currency: "USD",
		HoldingID: f.holding.ID, Quantity: d("100"), Rate: d("40.00"),
	}
	p, err := f.builder.Build(m, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Memo != "buy 100 USD (USD cash)" {
		t.Errorf("memo = %q", p.Memo)
	}

	m.Memo = "own words"
	p, err = f.builder.Build(m, f.holding, nil, fifo.DisposalCost{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Memo != "own words" {
		t.Errorf("memo = %q", p.Memo)
	}
}
