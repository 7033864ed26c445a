package task

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

const (
	decodeResultTemplateConstant = "decode result of %q: %w"
)

// DependencyResult returns the result produced by dependency within results.
func DependencyResult(results Results, dependency Task) (any, error) {
	if dependency == nil {
		return nil, dependencyResultMissingError("")
	}
	key := dependency.Key()
	value, found := results[key]
	if !found {
		return nil, dependencyResultMissingError(key)
	}
	return value, nil
}

// DecodeResult stores the dependency's result in target. Results that were reloaded
// from a persistent cache arrive as generic maps and are decoded field by field.
func DecodeResult(results Results, dependency Task, target any) error {
	value, lookupError := DependencyResult(results, dependency)
	if lookupError != nil {
		return lookupError
	}

	targetValue := reflect.ValueOf(target)
	sourceValue := reflect.ValueOf(value)
	if targetValue.Kind() == reflect.Pointer && !targetValue.IsNil() && sourceValue.IsValid() && sourceValue.Type().AssignableTo(targetValue.Elem().Type()) {
		targetValue.Elem().Set(sourceValue)
		return nil
	}

	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if decoderError != nil {
		return fmt.Errorf(decodeResultTemplateConstant, dependency.Key(), decoderError)
	}
	if decodeError := decoder.Decode(value); decodeError != nil {
		return fmt.Errorf(decodeResultTemplateConstant, dependency.Key(), decodeError)
	}
	return nil
}
