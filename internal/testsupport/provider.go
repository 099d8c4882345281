package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
)

var ErrProviderDown = errors.New("provider unavailable")

// FakeProvider hands out sequential task ids and serves whatever status the
// test stored for them.
type FakeProvider struct {
	mu       sync.Mutex
	next     int
	statuses map[string]*services.ProviderTask

	SubmitErr   error
	StatusErr   error
	Submitted   []services.GenerationRequest
	StatusCalls int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{statuses: make(map[string]*services.ProviderTask)}
}

var _ services.AudioProvider = (*FakeProvider)(nil)

func (p *FakeProvider) SetStatus(task services.ProviderTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[task.ID] = &task
}

func (p *FakeProvider) Submit(_ context.Context, req services.GenerationRequest) (*services.ProviderTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubmitErr != nil {
		return nil, p.SubmitErr
	}
	p.next++
	p.Submitted = append(p.Submitted, req)
	task := &services.ProviderTask{ID: fmt.Sprintf("prov-%d", p.next), Status: models.TaskPending}
	p.statuses[task.ID] = task
	cp := *task
	return &cp, nil
}

func (p *FakeProvider) Status(_ context.Context, providerTaskID string) (*services.ProviderTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusCalls++
	if p.StatusErr != nil {
		return nil, p.StatusErr
	}
	task, ok := p.statuses[providerTaskID]
	if !ok {
		return nil, ErrProviderDown
	}
	cp := *task
	return &cp, nil
}
