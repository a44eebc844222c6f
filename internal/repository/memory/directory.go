package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

// Directory is an in-memory repository.UserDirectory.
type Directory struct {
	mu    sync.RWMutex
	users map[string]domain.Participant
}

// NewDirectory seeds a directory with participants.
func NewDirectory(participants ...domain.Participant) *Directory {
	d := &Directory{users: make(map[string]domain.Participant, len(participants))}
	for _, p := range participants {
		d.users[p.ID] = p
	}
	return d
}

var _ repository.UserDirectory = (*Directory)(nil)

// Put adds or replaces a participant.
func (d *Directory) Put(p domain.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[p.ID] = p
}

func (d *Directory) FindByID(_ context.Context, id string) (*domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}
