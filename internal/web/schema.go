// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Request bodies. The jsonschema tags are compiled into the validators used
// by decodeJSON, so they are the single source of input rules.
type (
	registerRequest struct {
		Email    string  `json:"email" jsonschema:"format=email"`
		Password string  `json:"password" jsonschema:"minLength=6"`
		Name     *string `json:"name,omitempty"`
	}

	loginRequest struct {
		Email    string `json:"email" jsonschema:"format=email"`
		Password string `json:"password" jsonschema:"minLength=1"`
	}

	forgotPasswordRequest struct {
		Email string `json:"email" jsonschema:"format=email"`
	}

	resetPasswordRequest struct {
		Password string `json:"password" jsonschema:"minLength=6"`
	}

	changePasswordRequest struct {
		OldPassword string `json:"oldPassword" jsonschema:"minLength=1"`
		NewPassword string `json:"newPassword" jsonschema:"minLength=6"`
	}

	createTodoRequest struct {
		Task    string     `json:"task" jsonschema:"minLength=1"`
		DueDate *time.Time `json:"dueDate,omitempty"`
	}

	updateTodoRequest struct {
		Task      *string    `json:"task,omitempty" jsonschema:"minLength=1"`
		Completed *bool      `json:"completed,omitempty"`
		DueDate   *time.Time `json:"dueDate,omitempty"`
	}
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationError is returned by decodeJSON when the body does not satisfy
// the request schema.
type validationError struct {
	Fields []FieldError
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "input validation failed: " + strings.Join(parts, "; ")
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[reflect.Type]*jschema.Schema{}
	printer     = message.NewPrinter(language.English)
)

// compiledSchema returns the cached validator for the type of v.
func compiledSchema(v any) (*jschema.Schema, error) {
	t := reflect.TypeOf(v)

	schemaMu.Lock()
	defer schemaMu.Unlock()
	if sch, ok := schemaCache[t]; ok {
		return sch, nil
	}

	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("type", t.String()).Wrap(err)
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("type", t.String()).Wrap(err)
	}

	url := "mem://" + t.String() + ".json"
	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("type", t.String()).Wrap(err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("type", t.String()).Wrap(err)
	}

	schemaCache[t] = sch
	return sch, nil
}

// decodeJSON reads the request body, validates it against the schema of dst
// and decodes it into dst. dst must be a pointer to a request struct.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &validationError{Fields: []FieldError{{Field: "body", Message: "request body is too large or unreadable"}}}
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &validationError{Fields: []FieldError{{Field: "body", Message: "request body must be valid JSON"}}}
	}

	sch, err := compiledSchema(dst)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jschema.ValidationError
		if errors.As(err, &verr) {
			return &validationError{Fields: fieldErrors(verr)}
		}
		return oops.Code("SCHEMA_VALIDATE_FAILED").Wrap(err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &validationError{Fields: []FieldError{{Field: "body", Message: err.Error()}}}
	}
	return nil
}

// fieldErrors flattens a validation error tree into its leaf failures.
func fieldErrors(root *jschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(*jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := strings.Join(e.InstanceLocation, ".")
			if field == "" {
				field = "body"
			}
			out = append(out, FieldError{Field: field, Message: e.ErrorKind.LocalizedString(printer)})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(root)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
