package bolt

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tablestore/store"
)

// value is the on-disk form of a types.AttributeValue: exactly one member is set.
type value struct {
	S    *string          `json:"S,omitempty"`
	N    *string          `json:"N,omitempty"`
	BOOL *bool            `json:"BOOL,omitempty"`
	NULL bool             `json:"NULL,omitempty"`
	B    []byte           `json:"B,omitempty"`
	SS   []string         `json:"SS,omitempty"`
	NS   []string         `json:"NS,omitempty"`
	BS   [][]byte         `json:"BS,omitempty"`
	L    []value          `json:"L,omitempty"`
	M    map[string]value `json:"M,omitempty"`

	// IsL and IsM keep empty lists and maps distinguishable from absent ones.
	IsL bool `json:"isL,omitempty"`
	IsM bool `json:"isM,omitempty"`
}

func marshalRecord(r store.Record) ([]byte, error) {
	out := make(map[string]value, len(r))
	for k, av := range r {
		v, err := toValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func unmarshalRecord(data []byte) (store.Record, error) {
	var in map[string]value
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := make(store.Record, len(in))
	for k, v := range in {
		out[k] = v.attributeValue()
	}
	return out, nil
}

func toValue(av types.AttributeValue) (value, error) {
	switch tv := av.(type) {
	case *types.AttributeValueMemberS:
		return value{S: &tv.Value}, nil
	case *types.AttributeValueMemberN:
		return value{N: &tv.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return value{BOOL: &tv.Value}, nil
	case *types.AttributeValueMemberNULL:
		return value{NULL: true}, nil
	case *types.AttributeValueMemberB:
		return value{B: tv.Value}, nil
	case *types.AttributeValueMemberSS:
		return value{SS: tv.Value}, nil
	case *types.AttributeValueMemberNS:
		return value{NS: tv.Value}, nil
	case *types.AttributeValueMemberBS:
		return value{BS: tv.Value}, nil
	case *types.AttributeValueMemberL:
		v := value{IsL: true, L: make([]value, 0, len(tv.Value))}
		for _, item := range tv.Value {
			iv, err := toValue(item)
			if err != nil {
				return value{}, err
			}
			v.L = append(v.L, iv)
		}
		return v, nil
	case *types.AttributeValueMemberM:
		v := value{IsM: true, M: make(map[string]value, len(tv.Value))}
		for k, item := range tv.Value {
			iv, err := toValue(item)
			if err != nil {
				return value{}, err
			}
			v.M[k] = iv
		}
		return v, nil
	}
	return value{}, fmt.Errorf("unsupported attribute value %T", av)
}

func (v value) attributeValue() types.AttributeValue {
	switch {
	case v.S != nil:
		return &types.AttributeValueMemberS{Value: *v.S}
	case v.N != nil:
		return &types.AttributeValueMemberN{Value: *v.N}
	case v.BOOL != nil:
		return &types.AttributeValueMemberBOOL{Value: *v.BOOL}
	case v.B != nil:
		return &types.AttributeValueMemberB{Value: v.B}
	case v.SS != nil:
		return &types.AttributeValueMemberSS{Value: v.SS}
	case v.NS != nil:
		return &types.AttributeValueMemberNS{Value: v.NS}
	case v.BS != nil:
		return &types.AttributeValueMemberBS{Value: v.BS}
	case v.IsL:
		l := make([]types.AttributeValue, len(v.L))
		for i, item := range v.L {
			l[i] = item.attributeValue()
		}
		return &types.AttributeValueMemberL{Value: l}
	case v.IsM:
		m := make(map[string]types.AttributeValue, len(v.M))
		for k, item := range v.M {
			m[k] = item.attributeValue()
		}
		return &types.AttributeValueMemberM{Value: m}
	}
	return &types.AttributeValueMemberNULL{Value: true}
}
