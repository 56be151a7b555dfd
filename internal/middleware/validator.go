package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the `validate` tags on v. Failures wrap
// ErrInvalidArgument and name each offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.Invalidf("invalid input")
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(fields)
	return domain.Invalidf("validation failed: %s", strings.Join(fields, ", "))
}

// ParsePage reads page and page_size query values. Missing values fall back
// to the defaults; malformed ones are rejected.
func ParsePage(r *http.Request) (domain.Page, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		return domain.Page{}, err
	}
	size, err := queryInt(q.Get("page_size"), "page_size")
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Number: page, Size: size}.Normalize(), nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.Invalidf("%s must be a positive integer", name)
	}
	return n, nil
}
