package api

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/reconciler"
	"inventory-reconciliation-service/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// reconciliationParams are the query parameters of the reconciliation
// endpoint. Limit bounds are checked against the engine config separately.
type reconciliationParams struct {
	Search      string `query:"search" validate:"max=200"`
	Location    string `query:"location" validate:"max=64"`
	Discrepancy string `query:"discrepancy" validate:"omitempty,oneof=OK WARNING CRITICAL A_ONLY B_ONLY"`
	Page        int    `query:"page" validate:"min=1,max=1000000"`
	Limit       int    `query:"limit" validate:"min=1"`
}

// parseReconciliationQuery reads and validates the query string.
func parseReconciliationQuery(r *http.Request, config *reconciler.Config) (reconciler.Query, error) {
	values := r.URL.Query()

	page, err := parseQueryInt(values.Get("page"), "page", 1)
	if err != nil {
		return reconciler.Query{}, err
	}
	limit, err := parseQueryInt(values.Get("limit"), "limit", config.DefaultLimit)
	if err != nil {
		return reconciler.Query{}, err
	}

	params := reconciliationParams{
		Search:      strings.TrimSpace(values.Get("search")),
		Location:    strings.TrimSpace(values.Get("location")),
		Discrepancy: strings.ToUpper(strings.TrimSpace(values.Get("discrepancy"))),
		Page:        page,
		Limit:       limit,
	}
	if err := validate.Struct(params); err != nil {
		return reconciler.Query{}, formatValidationErrors(err)
	}
	if params.Limit > config.MaxLimit {
		return reconciler.Query{}, errors.ValidationError(errors.CodeOutOfRange, "limit", params.Limit, nil).
			WithSuggestion(fmt.Sprintf("limit must be between 1 and %d", config.MaxLimit))
	}

	return reconciler.Query{
		Search:      params.Search,
		Location:    params.Location,
		Discrepancy: models.DiscrepancyLevel(params.Discrepancy),
		Page:        params.Page,
		Limit:       params.Limit,
	}, nil
}

func parseQueryInt(raw, field string, defaultVal int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ValidationError(errors.CodeInvalidData, field, raw, err).
			WithSuggestion(fmt.Sprintf("%s must be an integer", field))
	}
	return value, nil
}

func formatValidationErrors(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return errors.ValidationError(errors.CodeInvalidData, "query", nil, err)
	}

	first := fieldErrs[0]
	result := errors.ValidationError(errors.CodeOutOfRange, first.Field(), first.Value(), nil).
		WithSuggestion(fmt.Sprintf("%s %s", first.Field(), validationMessage(first)))
	for _, fieldErr := range fieldErrs[1:] {
		result.WithContext(fieldErr.Field(), validationMessage(fieldErr))
	}
	return result
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
