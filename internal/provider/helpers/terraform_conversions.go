// Package helpers provides conversions between Terraform framework values
// and plain Go values shared by the data sources and functions.
package helpers

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// TerraformValueToGo converts a Terraform value to plain Go values: strings,
// int64, float64, bool, []any and map[string]any. Null becomes nil; unknown
// values are an error.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value == nil || value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		bigFloat := v.ValueBigFloat()
		if bigFloat == nil {
			return nil, fmt.Errorf("number value is nil")
		}
		if bigFloat.IsInt() {
			if i, accuracy := bigFloat.Int64(); accuracy == 0 {
				return i, nil
			}
		}
		floatVal, _ := bigFloat.Float64()
		return floatVal, nil
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Tuple:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

func elementsToGo(ctx context.Context, elements []attr.Value) ([]any, error) {
	result := make([]any, len(elements))
	for i, elem := range elements {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		result[i] = goVal
	}
	return result, nil
}

func attributesToGo(ctx context.Context, attributes map[string]attr.Value) (map[string]any, error) {
	result := make(map[string]any, len(attributes))
	for name, attrVal := range attributes {
		goVal, err := TerraformValueToGo(ctx, attrVal)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		result[name] = goVal
	}
	return result, nil
}

// DynamicValueToMap converts a dynamic value holding an object or map to a
// Go map.
func DynamicValueToMap(ctx context.Context, value types.Dynamic) (map[string]any, error) {
	if value.IsNull() || value.IsUnknown() || value.IsUnderlyingValueNull() || value.IsUnderlyingValueUnknown() {
		return nil, fmt.Errorf("value cannot be null or unknown")
	}

	switch v := value.UnderlyingValue().(type) {
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	default:
		return nil, fmt.Errorf("expected object or map value, got %T", v)
	}
}

// GoValueToTerraform converts Go values back to Terraform values. Mappings
// become objects and slices become tuples so that heterogeneous members are
// allowed.
func GoValueToTerraform(ctx context.Context, value any) (attr.Value, error) {
	if value == nil {
		return types.StringNull(), nil
	}

	switch v := value.(type) {
	case string:
		return types.StringValue(v), nil
	case int:
		return types.Int64Value(int64(v)), nil
	case int64:
		return types.Int64Value(v), nil
	case float64:
		return types.Float64Value(v), nil
	case bool:
		return types.BoolValue(v), nil
	case []string:
		return GoValueToTerraform(ctx, stringsToAny(v))
	case map[string]string:
		converted := make(map[string]any, len(v))
		for key, val := range v {
			converted[key] = val
		}
		return GoValueToTerraform(ctx, converted)
	case map[string]any:
		attrTypes := make(map[string]attr.Type, len(v))
		attrValues := make(map[string]attr.Value, len(v))

		for _, key := range slices.Sorted(maps.Keys(v)) {
			terraformVal, err := GoValueToTerraform(ctx, v[key])
			if err != nil {
				return nil, fmt.Errorf("failed to convert map element %s: %w", key, err)
			}
			attrValues[key] = terraformVal
			attrTypes[key] = terraformVal.Type(ctx)
		}

		obj, diags := types.ObjectValue(attrTypes, attrValues)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build object: %v", diags)
		}
		return obj, nil
	case []any:
		elements := make([]attr.Value, len(v))
		elementTypes := make([]attr.Type, len(v))

		for i, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert list element %d: %w", i, err)
			}
			elements[i] = terraformVal
			elementTypes[i] = terraformVal.Type(ctx)
		}

		tuple, diags := types.TupleValue(elementTypes, elements)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build tuple: %v", diags)
		}
		return tuple, nil
	default:
		return nil, fmt.Errorf("unsupported Go type for conversion: %T", value)
	}
}

func stringsToAny(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

// StringListValue converts a list of strings to a types.List of strings.
func StringListValue(values []string) types.List {
	elements := make([]attr.Value, len(values))
	for i, v := range values {
		elements[i] = types.StringValue(v)
	}
	return types.ListValueMust(types.StringType, elements)
}

// StringMapValue converts a string mapping to a types.Map of strings.
func StringMapValue(values map[string]string) types.Map {
	elements := make(map[string]attr.Value, len(values))
	for k, v := range values {
		elements[k] = types.StringValue(v)
	}
	return types.MapValueMust(types.StringType, elements)
}
