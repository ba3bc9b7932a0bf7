package graphql

import (
	"encoding/json"
	"fmt"
	"strconv"

	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/vellum-cms/vellum/internal/schema"
)

// jsonScalar carries arbitrary JSON values: json attributes and component input.
var jsonScalar = gql.NewScalar(gql.ScalarConfig{
	Name:         "JSON",
	Description:  "Arbitrary JSON value.",
	Serialize:    func(v interface{}) interface{} { return v },
	ParseValue:   func(v interface{}) interface{} { return v },
	ParseLiteral: literal,
})

func literal(v ast.Value) interface{} {
	switch v := v.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	case *ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			out[i] = literal(item)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = literal(f.Value)
		}
		return out
	default:
		return nil
	}
}

func scalarType(t schema.ScalarType) gql.Output {
	switch t {
	case schema.TypeInteger:
		return gql.Int
	case schema.TypeFloat:
		return gql.Float
	case schema.TypeBoolean:
		return gql.Boolean
	case schema.TypeJSON:
		return jsonScalar
	default:
		// biginteger and decimal travel as strings to keep their precision.
		return gql.String
	}
}

func scalarInput(t schema.ScalarType) gql.Input {
	return scalarType(t).(gql.Input)
}

// scalarValue converts a stored value into what the GraphQL type serializes.
func scalarValue(t schema.ScalarType, v interface{}) interface{} {
	n, isNumber := v.(json.Number)
	switch {
	case v == nil:
		return nil
	case t == schema.TypeInteger && isNumber:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	case t == schema.TypeFloat && isNumber:
		f, _ := n.Float64()
		return f
	case t == schema.TypeBigInteger || t == schema.TypeDecimal:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
	return v
}
