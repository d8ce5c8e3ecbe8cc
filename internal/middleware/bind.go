package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"accizard/pkg/e"
	"accizard/pkg/validator"
)

const maxBodyBytes = 1 << 20

// BindJSON decodes exactly one JSON object from the request body into dst and
// validates it. Unknown fields and trailing data are rejected.
func BindJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w: %w", e.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: trailing data: %w", e.ErrInvalidInput)
	}
	return validator.Validate(dst)
}
