// Package validation validates configuration and request structs through
// go-playground/validator struct tags and converts failures into
// errors.AppError values with per-field details.
//
//	type CreateItem struct {
//	    Name string `json:"name" validate:"required,max=100"`
//	}
//	if err := validation.Validate(req); err != nil { ... }
package validation
