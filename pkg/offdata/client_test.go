package offdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/resilience"
)

const productPayload = `{
	"status": 1,
	"product": {
		"code": "737628064502",
		"product_name": "Rice Noodles",
		"brands": "Thai Kitchen",
		"categories": "en:noodles, en:rice-noodles",
		"quantity": "155 g",
		"nutriscore_grade": "c",
		"nova_group": 4,
		"ingredients_text": "Rice noodles, seasoning",
		"allergens": "en:peanuts,en:soybeans",
		"traces": "en:sesame-seeds",
		"nutriments": {
			"energy-kcal_100g": 385,
			"fat_100g": 7.7,
			"saturated-fat_100g": 1.3,
			"sugars_100g": 13,
			"salt_100g": 2.3,
			"proteins_100g": 7.7
		},
		"image_url": "https://images.example/737628064502.jpg"
	}
}`

func TestGetProductNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/product/737628064502.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "foodscout-test/1.0" {
			t.Errorf("user agent = %q", ua)
		}
		w.Write([]byte(productPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithUserAgent("foodscout-test/1.0"))
	p, err := c.GetProduct(context.Background(), "737628064502")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}

	if p.Name != "Rice Noodles" || p.Brands != "Thai Kitchen" {
		t.Errorf("identity fields: %+v", p)
	}
	if p.NutriScore != "C" || p.NovaGroup != 4 {
		t.Errorf("scores: nutriscore=%q nova=%d", p.NutriScore, p.NovaGroup)
	}
	if len(p.Allergens) != 2 || p.Allergens[0] != "peanuts" {
		t.Errorf("allergens should have en: prefixes stripped, got %v", p.Allergens)
	}
	if len(p.Traces) != 1 || p.Traces[0] != "sesame-seeds" {
		t.Errorf("traces = %v", p.Traces)
	}
	if p.Nutriments.EnergyKcal != 385 || p.Nutriments.SaturatedFat != 1.3 {
		t.Errorf("nutriments = %+v", p.Nutriments)
	}
}

func TestGetProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 0, "status_verbose": "product not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetProduct(context.Background(), "0000000000000")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errors.CodeNotFound) {
		t.Errorf("expected CodeNotFound, got %v", err)
	}
}

func TestGetProductRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(productPayload))
	}))
	defer srv.Close()

	rc := resilience.DefaultRetryConfig()
	rc.InitialDelay = 0
	rc.MaxDelay = 0
	c := NewClient(srv.URL, WithRetry(rc))

	p, err := c.GetProduct(context.Background(), "737628064502")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if p.Barcode != "737628064502" {
		t.Errorf("barcode = %q", p.Barcode)
	}
}

func TestSearchPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search_terms") != "peanut butter" || q.Get("json") != "1" {
			t.Errorf("query = %v", q)
		}
		if q.Get("page") != "2" || q.Get("page_size") != "5" {
			t.Errorf("paging = page %s size %s", q.Get("page"), q.Get("page_size"))
		}
		w.Write([]byte(`{"count": 42, "products": [{"code": "1", "product_name": "Peanut Butter"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	page, err := c.Search(context.Background(), "peanut butter", 2, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Count != 42 || page.Page != 2 || page.PageSize != 5 {
		t.Errorf("page meta: %+v", page)
	}
	if len(page.Products) != 1 || page.Products[0].Name != "Peanut Butter" {
		t.Errorf("products: %+v", page.Products)
	}
}

func TestCategoryClampsPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/category/breakfast-cereals.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "1" || q.Get("page_size") != "50" {
			t.Errorf("expected clamped paging, got page %s size %s", q.Get("page"), q.Get("page_size"))
		}
		w.Write([]byte(`{"count": 0, "products": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Category(context.Background(), "breakfast-cereals", 0, 500); err != nil {
		t.Fatalf("Category: %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	c := NewClient("http://unused.invalid")
	if _, err := c.Search(context.Background(), "", 1, 10); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}
