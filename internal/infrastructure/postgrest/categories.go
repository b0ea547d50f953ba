package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gastos/internal/domain/expense"
)

// CategoryRepository implements expense.CategoryRepository over the REST gateway.
type CategoryRepository struct {
	client *Client
}

func NewCategoryRepository(client *Client) *CategoryRepository {
	return &CategoryRepository{client: client}
}

func (r *CategoryRepository) CheckTable(ctx context.Context, table string) error {
	q := url.Values{}
	q.Set("select", "id,name")
	q.Set("limit", "1")

	var out []categoryRecord
	if err := r.client.do(ctx, http.MethodGet, table, q, nil, "", &out); err != nil {
		return fmt.Errorf("failed to read category table %s: %w", table, err)
	}
	return nil
}

// FindByName matches exactly with an eq filter. The case-insensitive form
// reads the whole table and compares locally, since ilike patterns treat
// '*', '%' and '_' in names as wildcards.
func (r *CategoryRepository) FindByName(ctx context.Context, table, name string, caseInsensitive bool) (*expense.Category, error) {
	q := url.Values{}
	q.Set("select", "id,name")
	q.Set("order", "name.asc")
	if !caseInsensitive {
		q.Set("name", eq(name))
		q.Set("limit", "1")
	}

	var out []categoryRecord
	if err := r.client.do(ctx, http.MethodGet, table, q, nil, "", &out); err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	for _, rec := range out {
		if rec.Name == name || (caseInsensitive && strings.EqualFold(rec.Name, name)) {
			found := rec.toCategory()
			return &found, nil
		}
	}
	return nil, nil
}

func (r *CategoryRepository) NamesByID(ctx context.Context, table string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	q := url.Values{}
	q.Set("select", "id,name")
	q.Set("id", in(ids))

	var out []categoryRecord
	if err := r.client.do(ctx, http.MethodGet, table, q, nil, "", &out); err != nil {
		return nil, fmt.Errorf("failed to look up categories: %w", err)
	}

	for _, rec := range out {
		names[string(rec.ID)] = rec.Name
	}
	return names, nil
}

// List returns every category in table, ordered by name.
func (r *CategoryRepository) List(ctx context.Context, table string) ([]expense.Category, error) {
	q := url.Values{}
	q.Set("select", "id,name")
	q.Set("order", "name.asc")

	var out []categoryRecord
	if err := r.client.do(ctx, http.MethodGet, table, q, nil, "", &out); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	cats := make([]expense.Category, len(out))
	for i, rec := range out {
		cats[i] = rec.toCategory()
	}
	return cats, nil
}
