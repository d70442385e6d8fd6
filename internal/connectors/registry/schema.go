package registry

import (
	"reflect"
	"strings"
)

// ConfigSchema derives the catalog description of a typed configuration struct.
// Field keys come from `json` tags; `schema:"required,secret"` marks flags and the
// `desc` tag carries a human readable description.
func ConfigSchema(prototype any) []ConfigField {
	if prototype == nil {
		return nil
	}
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	fields := make([]ConfigField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				key = name
			}
		}

		field := ConfigField{
			Key:         key,
			Type:        schemaType(f.Type),
			Description: strings.TrimSpace(f.Tag.Get("desc")),
		}
		for _, flag := range strings.Split(f.Tag.Get("schema"), ",") {
			switch strings.TrimSpace(flag) {
			case "required":
				field.Required = true
			case "secret":
				field.Secret = true
			}
		}
		fields = append(fields, field)
	}
	return fields
}

func schemaType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		return "duration"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
