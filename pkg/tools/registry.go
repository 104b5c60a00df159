// Package tools holds the fixed catalog of food-data tools the agent
// can call. Definitions use MCP tool schemas so the same catalog serves
// the gateway's tools/list, the LLM function declarations, and direct
// in-process execution.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/offdata"
	"github.com/foodscout/foodscout/pkg/resilience"
)

// DataSource is the slice of the Open Food Facts adapter the tools use.
type DataSource interface {
	GetProduct(ctx context.Context, barcode string) (*offdata.Product, error)
	Search(ctx context.Context, query string, page, pageSize int) (*offdata.Page, error)
	Category(ctx context.Context, category string, page, pageSize int) (*offdata.Page, error)
}

// Handler executes one tool call. Domain failures are reported through
// the result's IsError flag; a returned error means the call itself
// could not be dispatched.
type Handler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// Definition pairs an MCP tool schema with its handler.
type Definition struct {
	Tool    mcp.Tool
	Handler Handler
}

// maxCompareBarcodes caps a comparison to keep the concurrent lookup
// fan-out and the result payload small.
const maxCompareBarcodes = 5

// Registry is the fixed tool catalog. It is immutable after construction.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds the catalog over the given data source.
func NewRegistry(source DataSource) *Registry {
	r := &Registry{defs: make(map[string]Definition)}

	r.register(mcp.NewTool("get_product_by_barcode",
		mcp.WithDescription("Look up a food product by its barcode (EAN/UPC) and return its name, brand, ingredients, nutrition facts, Nutri-Score and NOVA group."),
		mcp.WithString("barcode", mcp.Required(), mcp.Description("Product barcode, e.g. 737628064502.")),
	), getProductHandler(source))

	r.register(mcp.NewTool("search_products",
		mcp.WithDescription("Search the food catalog by free-text keywords. Returns a paginated list of matching products."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search keywords, e.g. 'peanut butter'.")),
		mcp.WithNumber("page", mcp.Description("Result page, starting at 1.")),
		mcp.WithNumber("page_size", mcp.Description("Results per page, at most 50.")),
	), searchHandler(source))

	r.register(mcp.NewTool("browse_category",
		mcp.WithDescription("List products in a category, e.g. 'breakfast-cereals'. Returns a paginated list."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category slug, e.g. 'breakfast-cereals'.")),
		mcp.WithNumber("page", mcp.Description("Result page, starting at 1.")),
		mcp.WithNumber("page_size", mcp.Description("Results per page, at most 50.")),
	), categoryHandler(source))

	r.register(mcp.NewTool("compare_products",
		mcp.WithDescription("Fetch two or more products by barcode and return them side by side for nutritional comparison. Products that cannot be fetched are omitted."),
		mcp.WithString("barcodes", mcp.Required(), mcp.Description("Comma-separated list of 2 to 5 barcodes to compare.")),
	), compareHandler(source))

	r.register(mcp.NewTool("get_allergens",
		mcp.WithDescription("Return the declared allergens and possible traces for a product identified by barcode."),
		mcp.WithString("barcode", mcp.Required(), mcp.Description("Product barcode.")),
	), allergensHandler(source))

	return r
}

func (r *Registry) register(tool mcp.Tool, handler Handler) {
	r.defs[tool.Name] = Definition{Tool: tool, Handler: handler}
	r.order = append(r.order, tool.Name)
}

// List returns the tool schemas in registration order.
func (r *Registry) List() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].Tool)
	}
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call dispatches a tool by name. An unknown name or a missing required
// argument is a CodeInvalidInput error; failures inside the tool come
// back as an IsError result.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	for _, key := range def.Tool.InputSchema.Required {
		if _, present := args[key]; !present {
			return nil, errors.Newf(errors.CodeInvalidInput, "tool %s: missing required argument %q", name, key)
		}
	}
	return def.Handler(ctx, args)
}

func getProductHandler(source DataSource) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		barcode := argString(args, "barcode")
		product, err := source.GetProduct(ctx, barcode)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(product)
	}
}

func searchHandler(source DataSource) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		page, err := source.Search(ctx, argString(args, "query"), argInt(args, "page"), argInt(args, "page_size"))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(page)
	}
}

func categoryHandler(source DataSource) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		page, err := source.Category(ctx, argString(args, "category"), argInt(args, "page"), argInt(args, "page_size"))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(page)
	}
}

func compareHandler(source DataSource) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		barcodes := splitList(argString(args, "barcodes"))
		if len(barcodes) < 2 {
			return nil, errors.Newf(errors.CodeInvalidInput, "compare_products needs at least two barcodes")
		}
		if len(barcodes) > maxCompareBarcodes {
			return nil, errors.Newf(errors.CodeInvalidInput, "compare_products takes at most %d barcodes", maxCompareBarcodes)
		}

		products, results := resilience.TolerantJoin(ctx, barcodes,
			func(ctx context.Context, barcode string) (*offdata.Product, error) {
				return source.GetProduct(ctx, barcode)
			})
		if failed, err := resilience.AllFailed(results); failed {
			return toolError(err), nil
		}

		var omitted []string
		for _, r := range results {
			if r.Err != nil {
				omitted = append(omitted, r.Key)
			}
		}
		return jsonResult(map[string]any{
			"products": products,
			"omitted":  omitted,
		})
	}
}

func allergensHandler(source DataSource) Handler {
	return func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		barcode := argString(args, "barcode")
		product, err := source.GetProduct(ctx, barcode)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{
			"barcode":   product.Barcode,
			"name":      product.Name,
			"allergens": product.Allergens,
			"traces":    product.Traces,
		})
	}
}

func jsonResult(value any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to encode tool result", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", errors.CodeOf(err), err.Error()))
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
