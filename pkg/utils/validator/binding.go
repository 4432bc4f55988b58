package validator

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
)

type ginValidator struct {
	v *Validator
}

var _ binding.StructValidator = (*ginValidator)(nil)

// ValidateStruct validates structs and pointers to structs; other values pass.
func (g *ginValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return g.v.Validate(obj)
}

// Engine returns the underlying go-playground validator.
func (g *ginValidator) Engine() any {
	return g.v.Engine()
}

// InstallGinBinding makes gin's ShouldBind* methods use v, so request
// structs can carry the custom tags of this package.
func InstallGinBinding(v *Validator) {
	binding.Validator = &ginValidator{v: v}
}
