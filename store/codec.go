package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Encode converts a field value into its wire representation.
// A nil value encodes as NULL regardless of the field type.
func Encode(t FieldType, v any) (types.AttributeValue, error) {
	if v == nil {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	switch t {
	case Number:
		return encodeNumber(v)
	case Boolean:
		return encodeBoolean(v)
	case DateTime:
		return encodeDateTime(v)
	case Guid:
		return encodeGuid(v)
	case Array, Object:
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		return &types.AttributeValueMemberS{Value: string(buf)}, nil
	default:
		if s, ok := v.(string); ok {
			return &types.AttributeValueMemberS{Value: s}, nil
		}
		return &types.AttributeValueMemberS{Value: fmt.Sprint(v)}, nil
	}
}

// Decode converts a wire value into the Go value for the field type.
// Numbers decode to float64 whether they arrive as N or as a numeric S.
// Arrays and objects decode from JSON text; absent or null decodes to an empty value.
func Decode(t FieldType, av types.AttributeValue) (any, error) {
	if isNull(av) {
		switch t {
		case Array:
			return []any{}, nil
		case Object:
			return map[string]any{}, nil
		}
		return nil, nil
	}

	switch t {
	case Number:
		return decodeNumber(av)
	case Boolean:
		return decodeBoolean(av)
	case DateTime:
		s, err := wireString(t, av)
		if err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ts, nil
	case Guid:
		s, err := wireString(t, av)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return id, nil
	case Array:
		return decodeArray(av)
	case Object:
		return decodeObject(av)
	default:
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			return v.Value, nil
		case *types.AttributeValueMemberN:
			return v.Value, nil
		case *types.AttributeValueMemberBOOL:
			return strconv.FormatBool(v.Value), nil
		}
		return nil, fmt.Errorf("decode %s: unsupported wire type %T", t, av)
	}
}

func isNull(av types.AttributeValue) bool {
	if av == nil {
		return true
	}
	n, ok := av.(*types.AttributeValueMemberNULL)
	return ok && n.Value
}

func encodeNumber(v any) (types.AttributeValue, error) {
	var s string
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("encode number: %v is not representable", n)
		}
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return encodeNumber(float64(n))
	case int:
		s = strconv.FormatInt(int64(n), 10)
	case int8:
		s = strconv.FormatInt(int64(n), 10)
	case int16:
		s = strconv.FormatInt(int64(n), 10)
	case int32:
		s = strconv.FormatInt(int64(n), 10)
	case int64:
		s = strconv.FormatInt(n, 10)
	case uint:
		s = strconv.FormatUint(uint64(n), 10)
	case uint8:
		s = strconv.FormatUint(uint64(n), 10)
	case uint16:
		s = strconv.FormatUint(uint64(n), 10)
	case uint32:
		s = strconv.FormatUint(uint64(n), 10)
	case uint64:
		s = strconv.FormatUint(n, 10)
	case json.Number:
		s = n.String()
	case string:
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return nil, fmt.Errorf("encode number: %w", err)
		}
		s = n
	default:
		return nil, fmt.Errorf("encode number: unsupported value type %T", v)
	}
	return &types.AttributeValueMemberN{Value: s}, nil
}

func encodeBoolean(v any) (types.AttributeValue, error) {
	switch b := v.(type) {
	case bool:
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, fmt.Errorf("encode boolean: %w", err)
		}
		return &types.AttributeValueMemberBOOL{Value: parsed}, nil
	}
	return nil, fmt.Errorf("encode boolean: unsupported value type %T", v)
}

func encodeDateTime(v any) (types.AttributeValue, error) {
	switch ts := v.(type) {
	case time.Time:
		return &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)}, nil
	case *time.Time:
		if ts == nil {
			return &types.AttributeValueMemberNULL{Value: true}, nil
		}
		return encodeDateTime(*ts)
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("encode datetime: %w", err)
		}
		return encodeDateTime(parsed)
	}
	return nil, fmt.Errorf("encode datetime: unsupported value type %T", v)
}

func encodeGuid(v any) (types.AttributeValue, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return &types.AttributeValueMemberS{Value: id.String()}, nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("encode guid: %w", err)
		}
		return &types.AttributeValueMemberS{Value: parsed.String()}, nil
	}
	return nil, fmt.Errorf("encode guid: unsupported value type %T", v)
}

func decodeNumber(av types.AttributeValue) (any, error) {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	default:
		return nil, fmt.Errorf("decode number: unsupported wire type %T", av)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("decode number: %w", err)
	}
	return f, nil
}

func decodeBoolean(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberS:
		b, err := strconv.ParseBool(v.Value)
		if err != nil {
			return nil, fmt.Errorf("decode boolean: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("decode boolean: unsupported wire type %T", av)
}

func decodeArray(av types.AttributeValue) (any, error) {
	if l, ok := av.(*types.AttributeValueMemberL); ok {
		out := []any{}
		if err := attributevalue.Unmarshal(l, &out); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return out, nil
	}
	s, err := wireString(Array, av)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	if out == nil {
		return []any{}, nil
	}
	return out, nil
}

func decodeObject(av types.AttributeValue) (any, error) {
	if m, ok := av.(*types.AttributeValueMemberM); ok {
		out := map[string]any{}
		if err := attributevalue.Unmarshal(m, &out); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return out, nil
	}
	s, err := wireString(Object, av)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if out == nil {
		return map[string]any{}, nil
	}
	return out, nil
}

func wireString(t FieldType, av types.AttributeValue) (string, error) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("decode %s: unsupported wire type %T", t, av)
	}
	return s.Value, nil
}
