package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

type memoryStore struct {
	mu sync.Mutex

	clients   map[string]domain.PolicySettings
	products  map[string]domain.Product
	txns      map[string][]domain.Transaction
	derived   map[string]domain.DerivedUsage
	metrics   map[string]domain.UsageMetric
	snapshots map[string]domain.MonthlySnapshot
	runs      map[uuid.UUID]RecalculationRun

	failSave    map[string]error
	failSnap    map[string]error
	failRead    error
	invalidated []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clients:   make(map[string]domain.PolicySettings),
		products:  make(map[string]domain.Product),
		txns:      make(map[string][]domain.Transaction),
		derived:   make(map[string]domain.DerivedUsage),
		metrics:   make(map[string]domain.UsageMetric),
		snapshots: make(map[string]domain.MonthlySnapshot),
		runs:      make(map[uuid.UUID]RecalculationRun),
		failSave:  make(map[string]error),
		failSnap:  make(map[string]error),
	}
}

func (m *memoryStore) addProduct(p domain.Product, txns ...domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	m.txns[p.ID] = append(m.txns[p.ID], txns...)
}

func (m *memoryStore) GetPolicySettings(_ context.Context, clientID string) (domain.PolicySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.clients[clientID]
	if !ok {
		return domain.PolicySettings{}, fmt.Errorf("%w: %s", domain.ErrClientNotFound, clientID)
	}
	return s, nil
}

func (m *memoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *memoryStore) ListActiveByClient(_ context.Context, clientID string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if p.ClientID == clientID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) SaveDerivedUsage(_ context.Context, u domain.DerivedUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSave[u.ProductID]; err != nil {
		return err
	}
	m.derived[u.ProductID] = u
	return nil
}

func (m *memoryStore) GetConfidenceStats(_ context.Context, clientID string) (domain.ConfidenceStats, error) {
	return domain.ConfidenceStats{}, nil
}

func (m *memoryStore) ListCompletedByProduct(_ context.Context, productID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transaction(nil), m.txns[productID]...), nil
}

func (m *memoryStore) ListCompletedByProducts(_ context.Context, ids []string) (map[string][]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	out := make(map[string][]domain.Transaction)
	for _, id := range ids {
		out[id] = append([]domain.Transaction(nil), m.txns[id]...)
	}
	return out, nil
}

func (m *memoryStore) UpsertUsageMetric(_ context.Context, metric domain.UsageMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", metric.ProductID, metric.PeriodType, metric.PeriodStart.Format(time.RFC3339))
	m.metrics[key] = metric
	return nil
}

func (m *memoryStore) UpsertMonthlySnapshots(_ context.Context, snaps []domain.MonthlySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		if err := m.failSnap[s.ProductID]; err != nil {
			return err
		}
	}
	for _, s := range snaps {
		m.snapshots[s.ProductID+"|"+s.YearMonth] = s
	}
	return nil
}

func (m *memoryStore) CreateRun(_ context.Context, run *RecalculationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryStore) UpdateRun(_ context.Context, run *RecalculationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return errors.New("unknown run")
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryStore) GetRun(_ context.Context, id uuid.UUID) (*RecalculationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (m *memoryStore) ListRecentRuns(_ context.Context, clientID string, limit int) ([]*RecalculationRun, error) {
	return nil, nil
}

func (m *memoryStore) Invalidate(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, ids...)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	runs     map[string]int
	products map[bool]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{runs: map[string]int{}, products: map[bool]int{}}
}

func (o *countingObserver) ObserveRun(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs[status]++
}

func (o *countingObserver) ObserveProduct(_ domain.Tier, ok bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.products[ok]++
}
