package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

const hoursPerDay = 24

// Engine combines an Index and an Embedder into the retrieval and retention
// policy: weighted search over non-expired memories, near-duplicate
// suppression on write, and periodic rollup compaction of oversight history.
//
// The engine is safe for concurrent use when its Index is.
type Engine struct {
	index    Index
	embedder Embedder
	summ     llm.Service
	cfg      Config
	log      *logger.Logger

	// now is swappable in tests.
	now func() time.Time

	dimWarned bool
}

// NewEngine creates a memory engine. summarizer may be nil, which disables
// rollup summaries but keeps garbage collection.
func NewEngine(index Index, embedder Embedder, summarizer llm.Service, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		index:    index,
		embedder: embedder,
		summ:     summarizer,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// checkDimensions warns once when the embedder produces vectors that do not
// match its declared width. The mismatch degrades similarity quality but is
// not fatal.
func (e *Engine) checkDimensions(vector []float32) {
	if e.dimWarned || len(vector) == e.embedder.Dimensions() {
		return
	}

	e.dimWarned = true
	e.log.Warn("Embedding width differs from configured dimensions",
		zap.Int("configured", e.embedder.Dimensions()),
		zap.Int("actual", len(vector)),
	)
}

// SearchRequest asks for the memories most relevant to a query.
type SearchRequest struct {
	Ticker string
	Query  string
	// Roles restricts results; empty means all roles.
	Roles []types.Role
	// TopK defaults to the configured value when zero.
	TopK int
	// AsOf is the evaluation time for age and expiry. Zero means now.
	// Simulated runs pass the bar time so recency decay tracks simulation
	// time, not wall-clock time.
	AsOf time.Time
}

// ScoredMemory is one search hit with its scoring breakdown.
type ScoredMemory struct {
	Record     Record
	Similarity float64
	Score      float64
}

// Search embeds the query, fetches a superset of neighbors, drops expired
// records, and re-ranks the rest by
//
//	similarity x role_weight - recency_lambda x age_days + salience_weight x salience
//
// keeping at most TopK results at or above the score cutoff.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]ScoredMemory, error) {
	if req.Ticker == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "ticker is required")
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "query is required")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = e.now()
	}

	vector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	e.checkDimensions(vector)

	neighbors, err := e.index.Query(ctx, vector, Filter{Ticker: req.Ticker, Roles: req.Roles}, topK*e.cfg.FetchMultiplier)
	if err != nil {
		// Index trouble degrades to recalling nothing rather than
		// stalling the caller's decision path.
		e.log.Warn("Memory index query failed",
			zap.String("ticker", req.Ticker),
			zap.Error(err),
		)

		return []ScoredMemory{}, nil
	}

	ttl := time.Duration(e.cfg.TTLDays) * hoursPerDay * time.Hour

	scored := make([]ScoredMemory, 0, len(neighbors))

	for _, n := range neighbors {
		age := asOf.Sub(n.Record.CreatedAt)
		if age > ttl {
			continue
		}

		ageDays := age.Hours() / hoursPerDay
		if ageDays < 0 {
			ageDays = 0
		}

		score := n.Similarity*n.Record.Role.RetrievalWeight() -
			e.cfg.RecencyLambda*ageDays +
			e.cfg.SalienceWeight*n.Record.Salience

		if score < e.cfg.ScoreCutoff {
			continue
		}

		scored = append(scored, ScoredMemory{Record: n.Record, Similarity: n.Similarity, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	e.log.Debug("Memory search",
		zap.String("ticker", req.Ticker),
		zap.Int("candidates", len(neighbors)),
		zap.Int("returned", len(scored)),
	)

	return scored, nil
}

// AddRequest writes one memory.
type AddRequest struct {
	Ticker   string
	Role     types.Role
	Content  string
	Salience float64
	// At is the creation time. Zero means now. Simulated runs pass bar time.
	At time.Time
}

// AddResult reports what happened to a write.
type AddResult struct {
	// ID of the inserted record, empty when nothing was inserted.
	ID string
	// Deduped means an existing near-identical memory absorbed the write.
	Deduped bool
	// Skipped means the content failed the admission policy.
	Skipped bool
}

// Add applies the admission policy and inserts the memory. Writes that are
// too short are skipped; writes whose nearest neighbor meets the duplicate
// threshold are absorbed. An oversight insert may trigger a rollup.
func (e *Engine) Add(ctx context.Context, req AddRequest) (AddResult, error) {
	if req.Ticker == "" {
		return AddResult{}, errors.New(errors.ErrCodeMissingParameter, "ticker is required")
	}

	if !req.Role.IsValid() {
		return AddResult{}, errors.Newf(errors.ErrCodeInvalidRole, "unknown role: %q", req.Role)
	}

	if e.cfg.SkipStubWrites && !e.embedder.Semantic() {
		return AddResult{Skipped: true}, nil
	}

	content := strings.TrimSpace(req.Content)
	if len(content) < e.cfg.MinContentLen {
		return AddResult{Skipped: true}, nil
	}

	at := req.At
	if at.IsZero() {
		at = e.now()
	}

	vector, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return AddResult{}, err
	}

	e.checkDimensions(vector)

	neighbors, err := e.index.Query(ctx, vector, Filter{Ticker: req.Ticker, Roles: []types.Role{req.Role}}, 1)
	if err != nil {
		return AddResult{}, err
	}

	if len(neighbors) > 0 && neighbors[0].Similarity >= e.cfg.DupThreshold {
		e.log.Debug("Memory deduplicated",
			zap.String("ticker", req.Ticker),
			zap.String("role", string(req.Role)),
			zap.String("existing", neighbors[0].Record.ID),
			zap.Float64("similarity", neighbors[0].Similarity),
		)

		return AddResult{ID: neighbors[0].Record.ID, Deduped: true}, nil
	}

	rec := Record{
		ID:        uuid.NewString(),
		Ticker:    req.Ticker,
		Role:      req.Role,
		Content:   content,
		Salience:  req.Salience,
		CreatedAt: at,
	}

	if err := e.index.Insert(ctx, rec, vector); err != nil {
		return AddResult{}, err
	}

	if req.Role == types.RoleOversight {
		e.maybeRollup(ctx, req.Ticker, at)
	}

	return AddResult{ID: rec.ID}, nil
}

// maybeRollup runs compaction when the stored oversight count lands on a
// multiple of the rollup interval. A failed count is logged and skipped, the
// same best-effort contract as the rollup itself.
func (e *Engine) maybeRollup(ctx context.Context, ticker string, at time.Time) {
	count, err := e.index.Count(ctx, Filter{Ticker: ticker, Roles: []types.Role{types.RoleOversight}})
	if err != nil {
		e.log.Warn("Failed to count oversight memories",
			zap.String("ticker", ticker),
			zap.Error(err),
		)

		return
	}

	if count > 0 && count%e.cfg.RollupEvery == 0 {
		e.rollup(ctx, ticker, at)
	}
}
