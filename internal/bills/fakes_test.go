package bills

import (
	"context"
	"sync"

	"telbill/internal/pipeline"
	"telbill/internal/tasks"
	"telbill/pkg/models"
)

type memoryBillStore struct {
	mu    sync.Mutex
	bills map[string][]Charge
	err   error
}

func newMemoryBillStore() *memoryBillStore {
	return &memoryBillStore{bills: make(map[string][]Charge)}
}

func billKey(subscriber string, p Period) string {
	return subscriber + "/" + p.Key()
}

func (m *memoryBillStore) AppendCall(_ context.Context, c Charge) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := billKey(c.Subscriber, c.Period())
	for _, existing := range m.bills[k] {
		if existing.CallID == c.CallID {
			return false, nil
		}
	}
	m.bills[k] = append(m.bills[k], c)
	return true, nil
}

func (m *memoryBillStore) Get(_ context.Context, subscriber string, p Period) (Bill, error) {
	if m.err != nil {
		return Bill{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := append([]Charge{}, m.bills[billKey(subscriber, p)]...)
	sortCalls(calls)
	return Bill{Subscriber: subscriber, Period: p, Calls: calls}, nil
}

type memoryPublisher struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (p *memoryPublisher) Publish(_ context.Context, job models.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *memoryPublisher) published() []models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Job(nil), p.jobs...)
}

func testEnv() (pipeline.Env, *tasks.MemoryRepository, *memoryPublisher) {
	store := tasks.NewMemoryRepository()
	pub := &memoryPublisher{}
	return pipeline.Env{Tasks: store, Publisher: pub}, store, pub
}
