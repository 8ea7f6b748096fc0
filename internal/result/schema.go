package result

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed artifact.schema.json
var artifactSchema []byte

const rootField = "(root)"

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(artifactSchema))
})

// schemaViolation returns the first violation of the artifact schema, with
// violations ordered by field path so the choice is stable.
func schemaViolation(data []byte) (field, message string, err error) {
	schema, err := compiledSchema()
	if err != nil {
		return "", "", fmt.Errorf("compiling artifact schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return "", "", err
	}
	if res.Valid() {
		return "", "", nil
	}
	type violation struct{ field, message string }
	var violations []violation
	for _, desc := range res.Errors() {
		violations = append(violations, violation{fieldPath(desc), desc.Description()})
	}
	sort.Slice(violations, func(i, j int) bool {
		return violations[i].field < violations[j].field
	})
	return violations[0].field, violations[0].message, nil
}

// fieldPath joins the error context with the property a "required" rule
// names, so a missing key is reported as runs.0.scores, not runs.0.
func fieldPath(desc gojsonschema.ResultError) string {
	field := desc.Field()
	prop, ok := desc.Details()["property"].(string)
	if !ok || prop == "" {
		return field
	}
	if field == "" || field == rootField {
		return prop
	}
	return field + "." + prop
}
