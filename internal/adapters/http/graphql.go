package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/pkg/geospatial"
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

	dmsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DMS",
		Fields: graphql.Fields{
			"degrees":   &graphql.Field{Type: graphql.Int},
			"minutes":   &graphql.Field{Type: graphql.Int},
			"seconds":   &graphql.Field{Type: graphql.Float},
			"direction": &graphql.Field{Type: graphql.String},
			"text": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(geospatial.DMS).String(), nil
				},
			},
		},
	})

	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat":     &graphql.Field{Type: graphql.Float},
			"lon":     &graphql.Field{Type: graphql.Float},
			"lat_dms": &graphql.Field{Type: dmsType},
			"lon_dms": &graphql.Field{Type: dmsType},
			"display": &graphql.Field{Type: graphql.String},
			"valid":   &graphql.Field{Type: graphql.Boolean},
		},
	})

	artifactType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Artifact",
		Fields: graphql.Fields{
			"name":         &graphql.Field{Type: graphql.String},
			"size":         &graphql.Field{Type: graphql.Float},
			"size_human":   &graphql.Field{Type: graphql.String},
			"content_type": &graphql.Field{Type: graphql.String},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Job",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"date":        &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"stage":       &graphql.Field{Type: graphql.String},
			"progress":    &graphql.Field{Type: graphql.Int},
			"error":       &graphql.Field{Type: graphql.String},
			"error_kind":  &graphql.Field{Type: graphql.String},
			"artifacts":   &graphql.Field{Type: graphql.NewList(artifactType)},
			"total_bytes": &graphql.Field{Type: graphql.Float},
			"distance":    &graphql.Field{Type: graphql.Float},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
			"finished_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"jobs": &graphql.Field{
				Type:        graphql.NewList(jobType),
				Description: "Recent super-resolution jobs, newest first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Processing.List(p.Context, p.Args["limit"].(int))
				},
			},
			"job": &graphql.Field{
				Type:        jobType,
				Description: "Get a job by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Processing.Get(p.Context, p.Args["id"].(string))
				},
			},
			"jobsNearby": &graphql.Field{
				Type:        graphql.NewList(jobType),
				Description: "Previous jobs near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 5000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Processing.Nearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
			"convert": &graphql.Field{
				Type:        coordinateType,
				Description: "Convert decimal degrees to DMS and validate the point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return newCoordinate(p.Args["lat"].(float64), p.Args["lon"].(float64)), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"submitJob": &graphql.Field{
				Type:        jobType,
				Description: "Queue a super-resolution job",
				Args: graphql.FieldConfigArgument{
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"date": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					loc := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					return deps.Processing.Submit(p.Context, loc, p.Args["date"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
