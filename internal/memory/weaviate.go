package memory

import (
	"context"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// MemoryClassName is the Weaviate class holding agent memories. Vectorizer is
// "none": vectors come from the Embedder, never from a Weaviate module.
const MemoryClassName = "AgentMemory"

// WeaviateIndex implements Index on a Weaviate instance.
type WeaviateIndex struct {
	client *weaviate.Client
	log    *logger.Logger
}

// NewWeaviateIndex connects to Weaviate at the given URL (host or
// scheme://host) and ensures the memory class exists.
func NewWeaviateIndex(ctx context.Context, url string, log *logger.Logger) (*WeaviateIndex, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}

	if strings.HasPrefix(url, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		cfg.Host = strings.TrimPrefix(url, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexUnavailable, "failed to create weaviate client", err)
	}

	x := &WeaviateIndex{client: client, log: log}
	if err := x.ensureSchema(ctx); err != nil {
		return nil, err
	}

	return x, nil
}

func (x *WeaviateIndex) ensureSchema(ctx context.Context) error {
	exists, err := x.client.Schema().ClassExistenceChecker().WithClassName(MemoryClassName).Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexUnavailable, "failed to check memory class", err)
	}

	if exists {
		return nil
	}

	indexFilterable := true

	//nolint:exhaustruct // schema declaration only sets the fields weaviate needs
	class := &models.Class{
		Class:       MemoryClassName,
		Description: "One memory produced by a decision round participant.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "memoryId", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "ticker", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "role", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "content", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "salience", DataType: []string{"number"}},
			{Name: "createdAt", DataType: []string{"date"}, IndexFilterable: &indexFilterable},
		},
	}

	if err := x.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeIndexUnavailable, "failed to create memory class", err)
	}

	x.log.Info("Created weaviate memory class", zap.String("class", MemoryClassName))

	return nil
}

// Insert implements Index.
func (x *WeaviateIndex) Insert(ctx context.Context, rec Record, vector []float32) error {
	_, err := x.client.Data().Creator().
		WithClassName(MemoryClassName).
		WithID(rec.ID).
		WithVector(vector).
		WithProperties(map[string]interface{}{
			"memoryId":  rec.ID,
			"ticker":    rec.Ticker,
			"role":      string(rec.Role),
			"content":   rec.Content,
			"salience":  rec.Salience,
			"createdAt": rec.CreatedAt.UTC().Format(time.RFC3339),
		}).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexInsertFailed, "failed to insert memory", err)
	}

	return nil
}

// Query implements Index.
func (x *WeaviateIndex) Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Neighbor, error) {
	nearVector := x.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "memoryId"},
		{Name: "ticker"},
		{Name: "role"},
		{Name: "content"},
		{Name: "salience"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := x.client.GraphQL().Get().
		WithClassName(MemoryClassName).
		WithFields(fields...).
		WithWhere(x.whereFilter(filter)).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQueryFailed, "memory query failed", err)
	}

	if len(result.Errors) > 0 {
		return nil, errors.Newf(errors.ErrCodeIndexQueryFailed, "memory query failed: %s", result.Errors[0].Message)
	}

	objects := x.objects(result)
	neighbors := make([]Neighbor, 0, len(objects))

	for _, obj := range objects {
		if neighbor, ok := parseNeighbor(obj); ok {
			neighbors = append(neighbors, neighbor)
		}
	}

	return neighbors, nil
}

// parseNeighbor decodes one GraphQL object into a record plus its cosine
// similarity. Certainty is (1+cosine)/2; undo the mapping so scoring sees a
// raw cosine like every other index.
func parseNeighbor(obj interface{}) (Neighbor, bool) {
	rec, ok := parseRecord(obj)
	if !ok {
		return Neighbor{}, false
	}

	similarity := 0.0

	if m, ok := obj.(map[string]interface{}); ok {
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				similarity = 2*certainty - 1
			}
		}
	}

	return Neighbor{Record: rec, Similarity: similarity}, true
}

// Recent implements Index.
func (x *WeaviateIndex) Recent(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	return x.sorted(ctx, filter, graphql.Desc, limit, nil)
}

// Oldest implements Index.
func (x *WeaviateIndex) Oldest(ctx context.Context, filter Filter, before time.Time, limit int) ([]Record, error) {
	cutoff := filters.Where().
		WithPath([]string{"createdAt"}).
		WithOperator(filters.LessThan).
		WithValueDate(before.UTC())

	return x.sorted(ctx, filter, graphql.Asc, limit, cutoff)
}

func (x *WeaviateIndex) sorted(ctx context.Context, filter Filter, order graphql.SortOrder, limit int, extra *filters.WhereBuilder) ([]Record, error) {
	where := x.whereFilter(filter)
	if extra != nil {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{where, extra})
	}

	sort := graphql.Sort{Path: []string{"createdAt"}, Order: order}

	fields := []graphql.Field{
		{Name: "memoryId"},
		{Name: "ticker"},
		{Name: "role"},
		{Name: "content"},
		{Name: "salience"},
		{Name: "createdAt"},
	}

	result, err := x.client.GraphQL().Get().
		WithClassName(MemoryClassName).
		WithFields(fields...).
		WithWhere(where).
		WithSort(sort).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQueryFailed, "memory scan failed", err)
	}

	if len(result.Errors) > 0 {
		return nil, errors.Newf(errors.ErrCodeIndexQueryFailed, "memory scan failed: %s", result.Errors[0].Message)
	}

	objects := x.objects(result)
	records := make([]Record, 0, len(objects))

	for _, obj := range objects {
		if rec, ok := parseRecord(obj); ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

// Delete implements Index.
func (x *WeaviateIndex) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := x.client.Data().Deleter().
			WithClassName(MemoryClassName).
			WithID(id).
			Do(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeIndexQueryFailed, err, "failed to delete memory %s", id)
		}
	}

	return nil
}

// Count implements Index.
func (x *WeaviateIndex) Count(ctx context.Context, filter Filter) (int, error) {
	result, err := x.client.GraphQL().Aggregate().
		WithClassName(MemoryClassName).
		WithWhere(x.whereFilter(filter)).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeIndexQueryFailed, "memory count failed", err)
	}

	if len(result.Errors) > 0 {
		return 0, errors.Newf(errors.ErrCodeIndexQueryFailed, "memory count failed: %s", result.Errors[0].Message)
	}

	aggregate, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}

	objects, ok := aggregate[MemoryClassName].([]interface{})
	if !ok || len(objects) == 0 {
		return 0, nil
	}

	obj, ok := objects[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}

	meta, ok := obj["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}

	count, _ := meta["count"].(float64)

	return int(count), nil
}

func (x *WeaviateIndex) whereFilter(filter Filter) *filters.WhereBuilder {
	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"ticker"}).
			WithOperator(filters.Equal).
			WithValueString(filter.Ticker),
	}

	if len(filter.Roles) > 0 {
		roleOperands := make([]*filters.WhereBuilder, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleOperands = append(roleOperands, filters.Where().
				WithPath([]string{"role"}).
				WithOperator(filters.Equal).
				WithValueString(string(role)))
		}

		operands = append(operands, filters.Where().
			WithOperator(filters.Or).
			WithOperands(roleOperands))
	}

	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

func (x *WeaviateIndex) objects(result *models.GraphQLResponse) []interface{} {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}

	objects, ok := data[MemoryClassName].([]interface{})
	if !ok {
		return nil
	}

	return objects
}

func parseRecord(obj interface{}) (Record, bool) {
	m, ok := obj.(map[string]interface{})
	if !ok {
		return Record{}, false
	}

	role, err := types.ParseRole(getString(m, "role"))
	if err != nil {
		return Record{}, false
	}

	rec := Record{
		ID:       getString(m, "memoryId"),
		Ticker:   getString(m, "ticker"),
		Role:     role,
		Content:  getString(m, "content"),
		Salience: getFloat(m, "salience"),
	}

	if createdStr := getString(m, "createdAt"); createdStr != "" {
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			rec.CreatedAt = t
		}
	}

	return rec, rec.ID != ""
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}

	return 0
}
