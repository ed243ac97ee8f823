package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/pipeline"
)

// ErrJobNotFound indicates the job does not exist
type ErrJobNotFound struct {
	JobID string
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// HTTPStatus maps an error from the store or pipeline to a response code.
func HTTPStatus(err error) int {
	var (
		notFound  *ErrJobNotFound
		fieldErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, pipeline.ErrJobNotFound):
		return http.StatusNotFound
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotApplied):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}
