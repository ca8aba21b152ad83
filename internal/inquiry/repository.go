package inquiry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository reads and writes inquiry rows. Rows are never updated or
// deleted through it.
type Repository interface {
	// ListRecent returns up to limit rows ordered by created_at descending.
	ListRecent(ctx context.Context, limit int) ([]Row, error)
	// Insert writes a row and returns it as stored.
	Insert(ctx context.Context, row NewRow) (*Row, error)
}

// InMemoryRepository keeps rows in process memory. It is used when no
// database is configured.
type InMemoryRepository struct {
	mu   sync.RWMutex
	rows []Row
	now  func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// ListRecent returns the newest rows first. Rows created at the same
// instant come back in reverse insertion order.
func (r *InMemoryRepository) ListRecent(ctx context.Context, limit int) ([]Row, error) {
	r.mu.RLock()
	rows := make([]Row, len(r.rows))
	for i, row := range r.rows {
		rows[len(r.rows)-1-i] = row
	}
	r.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Insert stores a new row with a generated id.
func (r *InMemoryRepository) Insert(ctx context.Context, in NewRow) (*Row, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	start, end := formatTimes(in.Start, in.End)
	row := Row{
		ID:        uuid.New().String(),
		CreatedAt: r.now().UTC(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Start:     start,
		End:       end,
	}

	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()

	return &row, nil
}
