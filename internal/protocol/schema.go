package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/forkcheck-go/internal/errors"
)

var (
	schemaOnce sync.Once
	schemas    map[Tag]*jsonschema.Resolved
	schemaErr  error
)

// resolve infers the JSON schema of T and resolves it for validation.
func resolve[T any]() (*jsonschema.Resolved, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}

	return schema.Resolve(nil)
}

func buildSchemas() {
	schemas = make(map[Tag]*jsonschema.Resolved, len(Tags))

	builders := map[Tag]func() (*jsonschema.Resolved, error){
		TagInit:        resolve[InitRequest],
		TagEmitFile:    resolve[EmitFileRequest],
		TagUpdateFile:  resolve[UpdateFileRequest],
		TagRemoveFile:  resolve[RemoveFileRequest],
		TagDiagnostics: resolve[DiagnosticsRequest],
		TagFiles:       resolve[FilesRequest],
	}

	for tag, build := range builders {
		resolved, err := build()
		if err != nil {
			schemaErr = fmt.Errorf("infer %s schema: %w", tag, err)

			return
		}

		schemas[tag] = resolved
	}
}

// Schema returns the resolved JSON schema of the request payload for tag.
func Schema(tag Tag) (*jsonschema.Resolved, error) {
	schemaOnce.Do(buildSchemas)

	if schemaErr != nil {
		return nil, schemaErr
	}

	resolved, ok := schemas[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownTag, tag)
	}

	return resolved, nil
}

// Validate checks the request payload against the schema for its tag.
// A missing payload is validated as an empty object.
func (r *Request) Validate() error {
	resolved, err := Schema(r.Tag)
	if err != nil {
		return err
	}

	instance := map[string]any{}

	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		if err := json.Unmarshal(r.Payload, &instance); err != nil {
			return fmt.Errorf("%s payload is not an object: %w", r.Tag, err)
		}
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("invalid %s payload: %w", r.Tag, err)
	}

	return nil
}
