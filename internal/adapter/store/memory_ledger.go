package store

import (
	"context"
	"sync"

	"racha-core/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// MemoryLedger keeps daily spend in process memory. Only the most recent day
// is retained; older days are dropped when a new one starts.
type MemoryLedger struct {
	mu     sync.Mutex
	capBRL decimal.Decimal
	day    string
	spent  decimal.Decimal
}

func NewMemoryLedger(capBRL decimal.Decimal) *MemoryLedger {
	return &MemoryLedger{capBRL: capBRL}
}

func (l *MemoryLedger) Reserve(_ context.Context, day string, cost decimal.Decimal) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day < l.day {
		// the day already ended; nothing can be spent on it anymore
		return false, nil
	}
	l.roll(day)
	next := l.spent.Add(cost)
	if next.GreaterThan(l.capBRL) {
		return false, nil
	}
	l.spent = next
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, day string, cost decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day != l.day {
		return nil
	}
	l.spent = l.spent.Sub(cost)
	if l.spent.IsNegative() {
		l.spent = decimal.Zero
	}
	return nil
}

func (l *MemoryLedger) Snapshot(_ context.Context, day string) (entity.BudgetLedger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	spent := decimal.Zero
	if day == l.day {
		spent = l.spent
	}
	return entity.BudgetLedger{Date: day, SpentBRL: spent, CapBRL: l.capBRL}, nil
}

func (l *MemoryLedger) roll(day string) {
	if day != l.day {
		l.day = day
		l.spent = decimal.Zero
	}
}
