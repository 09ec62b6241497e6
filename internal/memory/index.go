package memory

import (
	"context"
	"time"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// Record is one stored memory.
type Record struct {
	ID        string     `json:"id"`
	Ticker    string     `json:"ticker"`
	Role      types.Role `json:"role"`
	Content   string     `json:"content"`
	Salience  float64    `json:"salience"`
	CreatedAt time.Time  `json:"created_at"`
}

// Neighbor pairs a record with its raw cosine similarity to a query vector.
type Neighbor struct {
	Record     Record
	Similarity float64
}

// Filter restricts index operations to a ticker and optionally to roles.
// Empty Roles means all roles.
type Filter struct {
	Ticker string
	Roles  []types.Role
}

func (f Filter) matchesRole(role types.Role) bool {
	if len(f.Roles) == 0 {
		return true
	}

	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// Index is a vector store over memory records. Query returns up to limit
// neighbors ordered by descending similarity. Oldest and Recent order by
// creation time and exist for garbage collection and rollup respectively.
type Index interface {
	Insert(ctx context.Context, rec Record, vector []float32) error
	Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Neighbor, error)
	Recent(ctx context.Context, filter Filter, limit int) ([]Record, error)
	Oldest(ctx context.Context, filter Filter, before time.Time, limit int) ([]Record, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context, filter Filter) (int, error)
}
