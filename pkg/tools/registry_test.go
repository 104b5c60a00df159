package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/offdata"
)

type stubSource struct {
	products map[string]*offdata.Product
	pages    map[string]*offdata.Page
	getErr   error
}

func (s *stubSource) GetProduct(_ context.Context, barcode string) (*offdata.Product, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.products[barcode]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "product %s not found", barcode)
	}
	return p, nil
}

func (s *stubSource) Search(_ context.Context, query string, page, pageSize int) (*offdata.Page, error) {
	if p, ok := s.pages[query]; ok {
		return p, nil
	}
	return &offdata.Page{Page: page, PageSize: pageSize}, nil
}

func (s *stubSource) Category(_ context.Context, category string, page, pageSize int) (*offdata.Page, error) {
	if p, ok := s.pages[category]; ok {
		return p, nil
	}
	return &offdata.Page{Page: page, PageSize: pageSize}, nil
}

func newStub() *stubSource {
	return &stubSource{
		products: map[string]*offdata.Product{
			"111": {Barcode: "111", Name: "Crunchy Peanut Butter", Allergens: []string{"peanuts"}, Traces: []string{"tree-nuts"}},
			"222": {Barcode: "222", Name: "Smooth Almond Butter", Allergens: []string{"almonds"}},
		},
		pages: map[string]*offdata.Page{
			"peanut": {Products: []offdata.Product{{Barcode: "111", Name: "Crunchy Peanut Butter"}}, Page: 1, PageSize: 10, Count: 1},
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry(newStub())

	listed := r.List()
	if len(listed) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(listed))
	}
	want := []string{"browse_category", "compare_products", "get_allergens", "get_product_by_barcode", "search_products"}
	got := r.Names()
	for i, name := range want {
		if got[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], name)
		}
	}
	for _, def := range listed {
		if def.Description == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
	}
}

func TestCallUnknownTool(t *testing.T) {
	r := NewRegistry(newStub())
	_, err := r.Call(context.Background(), "get_recipes", nil)
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}

func TestCallMissingRequiredArgument(t *testing.T) {
	r := NewRegistry(newStub())
	_, err := r.Call(context.Background(), "get_product_by_barcode", map[string]any{})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}

func TestGetProductByBarcode(t *testing.T) {
	r := NewRegistry(newStub())
	res, err := r.Call(context.Background(), "get_product_by_barcode", map[string]any{"barcode": "111"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var p offdata.Product
	if err := json.Unmarshal([]byte(resultText(t, res)), &p); err != nil {
		t.Fatalf("result is not product JSON: %v", err)
	}
	if p.Name != "Crunchy Peanut Butter" {
		t.Errorf("name = %q", p.Name)
	}
}

func TestGetProductNotFoundIsToolError(t *testing.T) {
	r := NewRegistry(newStub())
	res, err := r.Call(context.Background(), "get_product_by_barcode", map[string]any{"barcode": "999"})
	if err != nil {
		t.Fatalf("domain failure should not be a dispatch error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	if !strings.Contains(resultText(t, res), string(errors.CodeNotFound)) {
		t.Errorf("error text should carry the code: %s", resultText(t, res))
	}
}

func TestCompareProductsDropsFailures(t *testing.T) {
	r := NewRegistry(newStub())
	res, err := r.Call(context.Background(), "compare_products", map[string]any{"barcodes": "111, 999, 222"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.IsError {
		t.Fatalf("partial failure should not be a tool error: %s", resultText(t, res))
	}

	var payload struct {
		Products []offdata.Product `json:"products"`
		Omitted  []string          `json:"omitted"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(payload.Products))
	}
	// Successes keep input order.
	if payload.Products[0].Barcode != "111" || payload.Products[1].Barcode != "222" {
		t.Errorf("order: %v %v", payload.Products[0].Barcode, payload.Products[1].Barcode)
	}
	if len(payload.Omitted) != 1 || payload.Omitted[0] != "999" {
		t.Errorf("omitted = %v", payload.Omitted)
	}
}

func TestCompareProductsAllFail(t *testing.T) {
	r := NewRegistry(&stubSource{getErr: errors.Newf(errors.CodeUpstream, "catalog down")})
	res, err := r.Call(context.Background(), "compare_products", map[string]any{"barcodes": "111,222"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError when every member fails")
	}
}

func TestCompareProductsNeedsTwoBarcodes(t *testing.T) {
	r := NewRegistry(newStub())
	_, err := r.Call(context.Background(), "compare_products", map[string]any{"barcodes": "111"})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}

func TestCompareProductsCapsAtFiveBarcodes(t *testing.T) {
	r := NewRegistry(newStub())
	_, err := r.Call(context.Background(), "compare_products",
		map[string]any{"barcodes": "1,2,3,4,5,6"})
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}

func TestGetAllergens(t *testing.T) {
	r := NewRegistry(newStub())
	res, err := r.Call(context.Background(), "get_allergens", map[string]any{"barcode": "111"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	var payload struct {
		Allergens []string `json:"allergens"`
		Traces    []string `json:"traces"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Allergens) != 1 || payload.Allergens[0] != "peanuts" {
		t.Errorf("allergens = %v", payload.Allergens)
	}
	if len(payload.Traces) != 1 || payload.Traces[0] != "tree-nuts" {
		t.Errorf("traces = %v", payload.Traces)
	}
}

func TestSearchProducts(t *testing.T) {
	r := NewRegistry(newStub())
	res, err := r.Call(context.Background(), "search_products", map[string]any{"query": "peanut", "page": float64(1)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	var page offdata.Page
	if err := json.Unmarshal([]byte(resultText(t, res)), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 1 || len(page.Products) != 1 {
		t.Errorf("page = %+v", page)
	}
}
