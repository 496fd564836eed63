package serverutils

import (
	"fmt"
	"strings"

	"syllabus-calendar-be/internal/entity"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation and flattens the failures into a
// single readable message. Failures carry the validation category so the
// error handler answers with 400, not 500.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag()))
		}
		return entity.NewImportError(entity.ErrorCategoryValidation, strings.Join(msgs, "; "), "")
	}
	return nil
}
