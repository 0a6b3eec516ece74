package mcp

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/plant"
	"github.com/Aman-CERP/plantsearch/internal/search"
)

// Tool names.
const (
	ToolSearchPlants   = "search_plants"
	ToolFindPlantIDs   = "find_plant_ids"
	ToolGetPlant       = "get_plant"
	ToolPropertyValues = "property_values"
	ToolIndexStatus    = "index_status"
)

// SearchPlantsInput defines the input schema for the search_plants tool.
type SearchPlantsInput struct {
	Query   string   `json:"query,omitempty" jsonschema:"bleve query string, e.g. appel or gebruik:bijenplant; empty lists every plant"`
	Locale  string   `json:"locale,omitempty" jsonschema:"locale code such as nl or en; empty searches all locales"`
	Limit   int      `json:"limit,omitempty" jsonschema:"maximum number of results, at most 1000"`
	Offset  int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Require []string `json:"require,omitempty" jsonschema:"derived attributes that must hold, e.g. edible or sustainable"`
	Or      bool     `json:"or,omitempty" jsonschema:"match the query OR the locale instead of both"`
}

// SearchPlantsOutput defines the output schema for the search_plants tool.
type SearchPlantsOutput struct {
	Total uint64     `json:"total" jsonschema:"number of matching documents"`
	Hits  []PlantHit `json:"hits" jsonschema:"matching documents in score order"`
}

// PlantHit is one search result.
type PlantHit struct {
	DocID      string   `json:"doc_id"`
	PlantID    *int64   `json:"plant_id,omitempty" jsonschema:"source plant id; absent for minimal documents of plants without properties in the locale"`
	Locale     string   `json:"locale"`
	Identifier string   `json:"identifier,omitempty"`
	Name       string   `json:"name,omitempty"`
	Score      float64  `json:"score"`
	Flags      []string `json:"flags,omitempty" jsonschema:"derived attributes that hold, named in the hit's locale"`
}

// FindPlantIDsInput defines the input schema for the find_plant_ids tool.
type FindPlantIDsInput struct {
	Query  string `json:"query,omitempty" jsonschema:"bleve query string; empty matches every document"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of documents to skip"`
	Limit  int    `json:"limit,omitempty" jsonschema:"page size, at most 1000"`
}

// FindPlantIDsOutput defines the output schema for the find_plant_ids tool.
type FindPlantIDsOutput struct {
	IDs []int64 `json:"ids" jsonschema:"plant ids in hit order; a plant may appear once per locale"`
}

// GetPlantInput defines the input schema for the get_plant tool.
type GetPlantInput struct {
	ID     int64  `json:"id" jsonschema:"plant id"`
	Locale string `json:"locale" jsonschema:"locale whose properties to return"`
}

// PlantOutput defines the output schema for the get_plant tool.
type PlantOutput struct {
	ID         int64            `json:"id"`
	Identifier string           `json:"identifier"`
	Locale     string           `json:"locale"`
	Names      []string         `json:"names"`
	Properties []PropertyOutput `json:"properties"`
}

// PropertyOutput is one normalized property.
type PropertyOutput struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// PropertyValuesInput defines the input schema for the property_values tool.
type PropertyValuesInput struct {
	Property string `json:"property" jsonschema:"property name, e.g. gebruik or flower"`
}

// PropertyValuesOutput defines the output schema for the property_values tool.
type PropertyValuesOutput struct {
	Values []string `json:"values" jsonschema:"distinct values across all plants and locales, sorted"`
}

// IndexStatusInput defines the (empty) input schema for index_status.
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Documents       uint64   `json:"documents"`
	Generation      string   `json:"generation,omitempty"`
	Locales         []string `json:"locales"`
	DerivedConcepts []string `json:"derived_concepts"`
}

// generationer is implemented by indexes rebuilt by generation swap.
type generationer interface {
	Generation() string
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearchPlants,
		Description: "Search plants by name, identifier or property text, optionally restricted to a locale and to derived attributes such as edible. Matches partial words.",
	}, s.handleSearchPlants)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolFindPlantIDs,
		Description: "Return the plant ids matching a query across all locales, one page at a time.",
	}, s.handleFindPlantIDs)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetPlant,
		Description: "Read one plant with its names and properties in a locale.",
	}, s.handleGetPlant)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolPropertyValues,
		Description: "List the distinct values a property takes, useful for building field queries.",
	}, s.handlePropertyValues)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolIndexStatus,
		Description: "Report the number of indexed documents, the locales and the derived attributes that can be required.",
	}, s.handleIndexStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 5))
}

func (s *Server) handleSearchPlants(ctx context.Context, _ *mcp.CallToolRequest, input SearchPlantsInput) (
	*mcp.CallToolResult,
	SearchPlantsOutput,
	error,
) {
	start := time.Now()
	combinator := search.CombineAnd
	if input.Or {
		combinator = search.CombineOr
	}
	limit := input.Limit
	if limit == 0 {
		limit = min(s.defaultLimit, search.MaxLimit)
	}

	res, err := s.finder.Search(ctx, input.Query, strings.TrimSpace(input.Locale), search.SearchOptions{
		Limit:      limit,
		Offset:     input.Offset,
		Combinator: combinator,
		Require:    input.Require,
	})
	if err != nil {
		return nil, SearchPlantsOutput{}, MapError(err)
	}

	proxies := s.resolveHits(ctx, res.Hits)
	out := SearchPlantsOutput{Total: res.Total, Hits: make([]PlantHit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := PlantHit{
			DocID:      h.DocID,
			Locale:     h.Locale,
			Identifier: h.Identifier,
			Name:       h.Name(),
			Score:      h.Score,
			Flags:      h.Flags(s.mapper),
		}
		if h.HasPlantID {
			id := h.PlantID
			hit.PlantID = &id
			if p := proxies[h.Locale][id]; p != nil {
				hit.Name = p.Name()
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	s.logger.Info("mcp_search",
		slog.String("query", input.Query),
		slog.String("locale", input.Locale),
		slog.Int("hits", len(out.Hits)),
		slog.Duration("took", time.Since(start)))
	return nil, out, nil
}

// resolveHits loads the plants behind hits for their current names. A
// failure is logged and the stored names are used.
func (s *Server) resolveHits(ctx context.Context, hits []search.Hit) map[string]map[int64]*plant.Proxy {
	if s.resolver == nil {
		return nil
	}
	byLocale := make(map[string][]int64)
	for _, h := range hits {
		if h.HasPlantID {
			byLocale[h.Locale] = append(byLocale[h.Locale], h.PlantID)
		}
	}
	if len(byLocale) == 0 {
		return nil
	}

	resolved, err := s.resolver.PlantsByLocale(ctx, byLocale, len(byLocale))
	if err != nil {
		s.logger.Warn("mcp_resolve_failed", amerrors.FormatForLog(err)...)
		return nil
	}
	out := make(map[string]map[int64]*plant.Proxy, len(resolved))
	for loc, proxies := range resolved {
		out[loc] = make(map[int64]*plant.Proxy, len(proxies))
		for _, p := range proxies {
			out[loc][p.ID()] = p
		}
	}
	return out
}

func (s *Server) handleFindPlantIDs(ctx context.Context, _ *mcp.CallToolRequest, input FindPlantIDsInput) (
	*mcp.CallToolResult,
	FindPlantIDsOutput,
	error,
) {
	limit := input.Limit
	if limit == 0 {
		limit = min(s.defaultLimit, search.MaxLimit)
	}
	ids, err := s.finder.FindPaginated(ctx, input.Query, input.Offset, limit)
	if err != nil {
		return nil, FindPlantIDsOutput{}, MapError(err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return nil, FindPlantIDsOutput{IDs: ids}, nil
}

func (s *Server) handleGetPlant(ctx context.Context, _ *mcp.CallToolRequest, input GetPlantInput) (
	*mcp.CallToolResult,
	PlantOutput,
	error,
) {
	if s.resolver == nil {
		return nil, PlantOutput{}, &MCPError{Code: ErrCodeStoreUnavailable, Message: "plant database is not configured"}
	}
	if input.Locale == "" {
		return nil, PlantOutput{}, NewInvalidParamsError("locale is required")
	}

	proxies, err := s.resolver.Plants(ctx, []int64{input.ID}, input.Locale)
	if err != nil {
		return nil, PlantOutput{}, MapError(err)
	}
	if len(proxies) == 0 {
		return nil, PlantOutput{}, MapError(amerrors.NotFoundError("plant " + strconv.FormatInt(input.ID, 10)))
	}

	p := proxies[0]
	out := PlantOutput{
		ID:         p.ID(),
		Identifier: p.Identifier(),
		Locale:     input.Locale,
		Names:      p.Names(),
		Properties: []PropertyOutput{},
	}
	for _, prop := range p.Properties() {
		if prop.Name == plant.PropNames {
			continue
		}
		out.Properties = append(out.Properties, PropertyOutput{
			Name:   prop.Name,
			Type:   string(prop.Type),
			Values: prop.Values,
		})
	}
	return nil, out, nil
}

func (s *Server) handlePropertyValues(ctx context.Context, _ *mcp.CallToolRequest, input PropertyValuesInput) (
	*mcp.CallToolResult,
	PropertyValuesOutput,
	error,
) {
	if s.store == nil {
		return nil, PropertyValuesOutput{}, &MCPError{Code: ErrCodeStoreUnavailable, Message: "plant database is not configured"}
	}
	if strings.TrimSpace(input.Property) == "" {
		return nil, PropertyValuesOutput{}, NewInvalidParamsError("property is required")
	}

	values, err := s.store.PropertyValues(ctx, input.Property)
	if err != nil {
		return nil, PropertyValuesOutput{}, MapError(err)
	}
	if values == nil {
		values = []string{}
	}
	return nil, PropertyValuesOutput{Values: values}, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	n, err := s.index.DocCount(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	out := IndexStatusOutput{
		Documents:       n,
		Locales:         s.mapper.Locales(),
		DerivedConcepts: s.mapper.DerivedConcepts(),
	}
	if g, ok := s.index.(generationer); ok {
		out.Generation = g.Generation()
	}
	return nil, out, nil
}
