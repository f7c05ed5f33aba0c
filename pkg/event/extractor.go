// Package event extracts field values and change sets from structs by their
// json names, for activity metadata and event payloads.
package event

import (
	"reflect"
	"strings"
)

// Change is one field's before and after value.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// ExtractFields returns the named fields of obj keyed by json name. Pointer
// fields are dereferenced; nil pointers become nil.
func ExtractFields(obj interface{}, fields []string) map[string]interface{} {
	result := make(map[string]interface{})
	if obj == nil || len(fields) == 0 {
		return result
	}

	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return result
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}
	collect(val, fields, result)
	return result
}

func collect(val reflect.Value, fields []string, result map[string]interface{}) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collect(val.Field(i), fields, result)
			continue
		}
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		if jsonTag == "" {
			jsonTag = strings.ToLower(field.Name)
		}
		jsonTag = strings.Split(jsonTag, ",")[0]

		if contains(fields, jsonTag) {
			result[jsonTag] = deref(val.Field(i))
		}
	}
}

// ExtractChanges compares the named fields of old and new and returns only
// those that differ.
func ExtractChanges(old, new interface{}, fields []string) map[string]Change {
	changes := make(map[string]Change)
	if old == nil || new == nil || len(fields) == 0 {
		return changes
	}

	oldFields := ExtractFields(old, fields)
	newFields := ExtractFields(new, fields)

	for field, newValue := range newFields {
		if oldValue, exists := oldFields[field]; exists {
			if !reflect.DeepEqual(oldValue, newValue) {
				changes[field] = Change{Old: oldValue, New: newValue}
			}
		}
	}
	return changes
}

func deref(v reflect.Value) interface{} {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
