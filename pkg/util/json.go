package util

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// AnyToStruct decodes arbitrary JSON-ish input into T and validates the
// result against T's validator tags. Used at trust boundaries where a
// third-party payload must have a known shape before it is handed on.
func AnyToStruct[T any](obj interface{}) (*T, error) {
	var err error
	asJson, ok := obj.([]byte)
	if !ok {
		asJson, err = json.Marshal(obj)
		if err != nil {
			return nil, err
		}
	}
	var result T
	err = json.Unmarshal(asJson, &result)
	if err != nil {
		return nil, err
	}
	validate := validator.New()
	err = validate.Struct(result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
