// Package schema decodes response bodies into typed shapes and checks them
// against their validate tags.
package schema

import (
	"encoding/json"
	"reflect"

	"github.com/go-playground/validator/v10"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type enveloped struct {
	target any
}

// Data marks out as the payload of a {"data": ...} envelope. Bodies that
// carry no envelope decode into out directly.
func Data(out any) any {
	return enveloped{target: out}
}

// Decode unmarshals body into out and validates the result. Failures are
// reported as RequestError("Could not validate response: ...").
func Decode(body []byte, out any) error {
	target := out
	data := body
	if e, ok := out.(enveloped); ok {
		target = e.target
		data = unwrap(body)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return sdkerrors.Validation(err)
	}
	if err := Validate(target); err != nil {
		return sdkerrors.Validation(err)
	}
	return nil
}

func unwrap(body []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if data, ok := env["data"]; ok {
		return data
	}
	return body
}

// Validate checks v when it is a struct or a slice of structs.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := Validate(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}
