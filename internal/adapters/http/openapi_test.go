package http_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/superres/api"
)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return doc
}

// TestOpenAPISpec validates the embedded OpenAPI document.
func TestOpenAPISpec(t *testing.T) {
	doc := loadOpenAPI(t)

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/coordinates/convert",
		"/v1/coordinates/preview",
		"/v1/jobs",
		"/v1/jobs/nearby",
		"/v1/jobs/{id}",
		"/v1/jobs/{id}/artifacts",
		"/v1/jobs/{id}/artifacts/{name}",
		"/v1/jobs/{id}/artifacts/{name}/preview",
		"/v1/jobs/{id}/archive",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	if item := doc.Paths.Find("/v1/jobs/{id}/artifacts"); item != nil && item.Delete == nil {
		t.Error("expected DELETE on /v1/jobs/{id}/artifacts")
	}

	expectedSchemas := []string{
		"Job",
		"Artifact",
		"ArtifactList",
		"Coordinate",
		"DMS",
		"Preview",
		"SubmitJobRequest",
		"ProgressEvent",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	doc := loadOpenAPI(t)

	if doc.Info.Title != "Sentinel-2 Super-Resolution API" {
		t.Errorf("unexpected title %q", doc.Info.Title)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}
	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(doc.Servers) == 0 {
		t.Fatal("expected at least one server")
	}
}
