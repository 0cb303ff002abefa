package achievement_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/achievement"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestTriggers(t *testing.T) {
	tests := []struct {
		name    string
		owned   map[int]bool
		outcome achievement.Outcome
		want    []int
	}{
		{
			name:    "first trade only",
			owned:   map[int]bool{},
			outcome: achievement.Outcome{Kind: model.KindBuy, Shares: d(10)},
			want:    []int{achievement.Achiever},
		},
		{
			name:  "first trade from portfolio view earns the two-fer",
			owned: map[int]bool{},
			outcome: achievement.Outcome{
				Kind: model.KindBuy, Shares: d(10), FromPortfolioView: true,
			},
			want: []int{achievement.Achiever, achievement.NoTimeWasted, achievement.TwoFer},
		},
		{
			name:  "profitable sell",
			owned: map[int]bool{achievement.Achiever: true},
			outcome: achievement.Outcome{
				Kind: model.KindSell, Shares: d(5), Profit: true,
			},
			want: []int{achievement.Profiteer},
		},
		{
			name:    "unprofitable sell fires nothing new",
			owned:   map[int]bool{achievement.Achiever: true},
			outcome: achievement.Outcome{Kind: model.KindSell, Shares: d(5)},
			want:    nil,
		},
		{
			name:    "big order at the threshold",
			owned:   map[int]bool{achievement.Achiever: true},
			outcome: achievement.Outcome{Kind: model.KindBuy, Shares: d(1000)},
			want:    []int{achievement.BigBags},
		},
		{
			name:    "just below the threshold",
			owned:   map[int]bool{achievement.Achiever: true},
			outcome: achievement.Outcome{Kind: model.KindBuy, Shares: d(999.9999)},
			want:    nil,
		},
		{
			name: "owned badges do not re-fire or count toward two-fer",
			owned: map[int]bool{
				achievement.Achiever: true, achievement.NoTimeWasted: true,
			},
			outcome: achievement.Outcome{
				Kind: model.KindBuy, Shares: d(2000), FromPortfolioView: true,
			},
			want: []int{achievement.BigBags},
		},
		{
			name:  "everything at once, ascending order",
			owned: map[int]bool{},
			outcome: achievement.Outcome{
				Kind: model.KindSell, Shares: d(1500),
				Profit: true, FromPortfolioView: true,
			},
			want: []int{1, 2, 3, 4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := achievement.Triggers(tt.owned, tt.outcome)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Triggers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAward_Idempotent(t *testing.T) {
	ms := store.NewMemoryStore()
	engine := achievement.NewEngine(ms)
	ctx := context.Background()

	names := engine.Award(ctx, "user1", []int{achievement.Achiever})
	if !reflect.DeepEqual(names, []string{"Achiever"}) {
		t.Fatalf("first award = %v, want [Achiever]", names)
	}

	// Awarding the same badge again reports nothing new.
	names = engine.Award(ctx, "user1", []int{achievement.Achiever})
	if len(names) != 0 {
		t.Errorf("second award = %v, want none", names)
	}

	owned, err := ms.BadgeIDs(ctx, "user1")
	if err != nil {
		t.Fatalf("BadgeIDs: %v", err)
	}
	if len(owned) != 1 || !owned[achievement.Achiever] {
		t.Errorf("owned = %v, want exactly {1}", owned)
	}
}

func TestAward_NamesAscendingByID(t *testing.T) {
	ms := store.NewMemoryStore()
	engine := achievement.NewEngine(ms)

	// Triggered in scrambled order; names come back by ascending id.
	names := engine.Award(context.Background(), "user1",
		[]int{achievement.BigBags, achievement.Achiever, achievement.Profiteer})
	want := []string{"Achiever", "Profiteer", "Big Bags"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Award() = %v, want %v", names, want)
	}
}

func TestEvaluate(t *testing.T) {
	ms := store.NewMemoryStore()
	engine := achievement.NewEngine(ms)
	ctx := context.Background()

	names := engine.Evaluate(ctx, "user1", achievement.Outcome{
		Kind: model.KindBuy, Shares: d(100),
	})
	if !reflect.DeepEqual(names, []string{"Achiever"}) {
		t.Fatalf("Evaluate() = %v, want [Achiever]", names)
	}

	// Same outcome again: everything already owned.
	names = engine.Evaluate(ctx, "user1", achievement.Outcome{
		Kind: model.KindBuy, Shares: d(100),
	})
	if len(names) != 0 {
		t.Errorf("second Evaluate() = %v, want none", names)
	}
}

func TestName(t *testing.T) {
	if got := achievement.Name(achievement.TwoFer); got != "Two-Fer" {
		t.Errorf("Name(3) = %q", got)
	}
	if got := achievement.Name(99); got != "" {
		t.Errorf("Name(99) = %q, want empty", got)
	}
}
