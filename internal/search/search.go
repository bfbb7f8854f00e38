package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

const IndexProducts = "products"

func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return client, nil
}

type document struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Ratings     float64 `json:"ratings"`
}

// Index keeps a searchable copy of the catalog.
type Index struct {
	es    *elasticsearch.Client
	index string
}

func New(es *elasticsearch.Client, index string) *Index {
	return &Index{es: es, index: index}
}

func (i *Index) IndexProduct(ctx context.Context, p *models.Product) error {
	body, err := json.Marshal(document{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Ratings:     p.Ratings,
	})
	if err != nil {
		return err
	}

	res, err := i.es.Index(i.index, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(p.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("%w: index product: %v", apperr.ErrUpstream, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index product: %s", apperr.ErrUpstream, res.Status())
	}
	return nil
}

func (i *Index) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := i.es.Delete(i.index, id.String(), i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: delete product document: %v", apperr.ErrUpstream, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete product document: %s", apperr.ErrUpstream, res.Status())
	}
	return nil
}

// Search runs a fuzzy match on name and description and returns the matching
// product ids in relevance order.
func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "category"},
				"fuzziness": "AUTO",
			},
		},
		"from":    from,
		"size":    size,
		"_source": false,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: search: %v", apperr.ErrUpstream, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return 0, nil, fmt.Errorf("%w: search: %s %s", apperr.ErrUpstream, res.Status(), msg)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("%w: decode search response: %v", apperr.ErrUpstream, err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return r.Hits.Total.Value, ids, nil
}
