package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	apigen "github.com/asimovlabs/egodata-portal/internal/adapters/http/openapi"
	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

const maxJSONBodyBytes = 1 << 20

type bodyValidator struct {
	schemas openapi3.Schemas
}

func newBodyValidator(ctx context.Context) (*bodyValidator, error) {
	doc, err := apigen.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &bodyValidator{schemas: doc.Components.Schemas}, nil
}

// decode reads a JSON body, checks it against the named component schema and
// unmarshals it into dst.
func (v *bodyValidator) decode(w http.ResponseWriter, r *http.Request, schemaName string, dst any) error {
	const op = "decode request body"

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.WrapError(domain.ErrTooLarge, op, err)
		}
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, errors.New("invalid json"))
	}

	schema, ok := v.schemas[schemaName]
	if !ok || schema.Value == nil {
		return fmt.Errorf("%s: unknown schema %q", op, schemaName)
	}
	if err := schema.Value.VisitJSON(generic, openapi3.MultiErrors()); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return nil
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(apigen.Document)
}
