package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/aquasight/aquasight/internal/core/ports"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	seasonType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SeasonalArea",
		Fields: graphql.Fields{
			"season":     &graphql.Field{Type: graphql.String},
			"start":      &graphql.Field{Type: graphql.String},
			"end":        &graphql.Field{Type: graphql.String},
			"area_sq_km": &graphql.Field{Type: graphql.Float},
			"failed":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	analysisType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Analysis",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: geoPointType},
			"area":            &graphql.Field{Type: graphql.Float},
			"volume":          &graphql.Field{Type: graphql.Float},
			"max_volume":      &graphql.Field{Type: graphql.Float},
			"date":            &graphql.Field{Type: graphql.String},
			"avg_elevation_m": &graphql.Field{Type: graphql.Float},
			"shore_slope_deg": &graphql.Field{Type: graphql.Float},
			"seasons":         &graphql.Field{Type: graphql.NewList(seasonType)},
			"error":           &graphql.Field{Type: graphql.String},
		},
	})

	capacityRowType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CapacityRow",
		Fields: graphql.Fields{
			"elevation_m": &graphql.Field{Type: graphql.Float},
			"area_sq_km":  &graphql.Field{Type: graphql.Float},
			"volume_mcm":  &graphql.Field{Type: graphql.Float},
		},
	})

	capacityResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CapacityResult",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.String},
			"boundary_name":       &graphql.Field{Type: graphql.String},
			"boundary_area_sq_km": &graphql.Field{Type: graphql.Float},
			"sample_count":        &graphql.Field{Type: graphql.Int},
			"rows":                &graphql.Field{Type: graphql.NewList(capacityRowType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"analysis": &graphql.Field{
				Type:        analysisType,
				Description: "Get a stored analysis by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Analysis.GetByID(p.Context, id)
				},
			},
			"analyses": &graphql.Field{
				Type:        graphql.NewList(analysisType),
				Description: "List stored analyses, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					analyses, _, err := deps.Analysis.ListRecent(p.Context, limit, offset)
					return analyses, err
				},
			},
			"capacityResult": &graphql.Field{
				Type:        capacityResultType,
				Description: "Get a computed capacity curve (defaults to the latest)",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ports.LatestResultID},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Results.Get(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
