// Package naming converts configured entity and column names into GraphQL
// type, field, and mutation names.
package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// TypeName converts an entity name to a GraphQL type name (PascalCase).
// Example: "purchase_order" -> "PurchaseOrder".
func TypeName(entityName string) string {
	return toPascalCase(entityName)
}

// FieldName converts a column or relationship name to a GraphQL field name
// (camelCase). Example: "customer_id" -> "customerId".
func FieldName(name string) string {
	return toCamelCase(name)
}

// CreateOneMutationName names the single-item create mutation for an entity.
// Example: "Customer" -> "createCustomer".
func CreateOneMutationName(entityName string) string {
	return "create" + TypeName(inflection.Singular(entityName))
}

// CreateManyMutationName names the list create mutation for an entity.
// Example: "Customer" -> "createCustomers".
func CreateManyMutationName(entityName string) string {
	return "create" + inflection.Plural(TypeName(inflection.Singular(entityName)))
}

// InputTypeName names the create input object type for an entity.
func InputTypeName(entityName string) string {
	return TypeName(entityName) + "CreateInput"
}

// PayloadFieldName names the payload field wrapping a created entity.
// Example: "Customer" -> "customer".
func PayloadFieldName(entityName string) string {
	return toCamelCase(firstLower(TypeName(entityName)))
}

// PayloadListFieldName names the payload field wrapping a created entity list.
func PayloadListFieldName(entityName string) string {
	return inflection.Plural(PayloadFieldName(entityName))
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func firstLower(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
