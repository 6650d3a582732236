package models_test

import (
	"math/rand"
	"testing"

	"github.com/hisabworks/hisab_backend/models"
	"github.com/shopspring/decimal"
)

func TestValidateBalancedEntries(t *testing.T) {
	t.Run("balanced pair passes", func(t *testing.T) {
		entries := []models.AccountingEntryInput{
			{LedgerId: 1, Debit: decimal.NewFromInt(500)},
			{LedgerId: 2, Credit: decimal.NewFromInt(500)},
		}
		if err := models.ValidateBalancedEntries(entries); err != nil {
			t.Fatalf("balanced entries rejected: %v", err)
		}
	})

	t.Run("unbalanced pair rejected", func(t *testing.T) {
		entries := []models.AccountingEntryInput{
			{LedgerId: 1, Debit: decimal.NewFromInt(500)},
			{LedgerId: 2, Credit: decimal.NewFromInt(499)},
		}
		if err := models.ValidateBalancedEntries(entries); err == nil {
			t.Fatal("unbalanced entries accepted")
		}
	})

	t.Run("fractional amounts balance exactly", func(t *testing.T) {
		// 0.1 + 0.2 == 0.3 must hold; decimal arithmetic, not float.
		entries := []models.AccountingEntryInput{
			{LedgerId: 1, Debit: decimal.RequireFromString("0.1")},
			{LedgerId: 2, Debit: decimal.RequireFromString("0.2")},
			{LedgerId: 3, Credit: decimal.RequireFromString("0.3")},
		}
		if err := models.ValidateBalancedEntries(entries); err != nil {
			t.Fatalf("fractional balanced entries rejected: %v", err)
		}
	})

	t.Run("generated balanced sets pass, perturbed sets fail", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 200; i++ {
			n := 2 + rng.Intn(8)
			entries := make([]models.AccountingEntryInput, 0, n)
			total := decimal.Zero
			for j := 0; j < n-1; j++ {
				amount := decimal.NewFromInt(int64(1 + rng.Intn(100000))).Div(decimal.NewFromInt(100))
				if rng.Intn(2) == 0 {
					entries = append(entries, models.AccountingEntryInput{LedgerId: j + 1, Debit: amount})
					total = total.Add(amount)
				} else {
					entries = append(entries, models.AccountingEntryInput{LedgerId: j + 1, Credit: amount})
					total = total.Sub(amount)
				}
			}
			// Final leg closes the gap.
			closing := models.AccountingEntryInput{LedgerId: n}
			if total.IsPositive() {
				closing.Credit = total
			} else {
				closing.Debit = total.Neg()
			}
			entries = append(entries, closing)

			if err := models.ValidateBalancedEntries(entries); err != nil {
				t.Fatalf("iteration %d: balanced set rejected: %v", i, err)
			}

			// Perturb one leg by a cent.
			k := rng.Intn(len(entries))
			if entries[k].Debit.IsZero() && entries[k].Credit.IsZero() {
				entries[k].Debit = decimal.RequireFromString("0.01")
			} else if !entries[k].Debit.IsZero() {
				entries[k].Debit = entries[k].Debit.Add(decimal.RequireFromString("0.01"))
			} else {
				entries[k].Credit = entries[k].Credit.Add(decimal.RequireFromString("0.01"))
			}
			if err := models.ValidateBalancedEntries(entries); err == nil {
				t.Fatalf("iteration %d: perturbed set accepted", i)
			}
		}
	})
}
