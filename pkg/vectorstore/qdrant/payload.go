package qdrant

import (
	"encoding/json"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
)

func toStruct(m map[string]interface{}) (*pb.Struct, error) {
	fields := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = val
	}
	return &pb.Struct{Fields: fields}, nil
}

func toValue(v interface{}) (*pb.Value, error) {
	switch t := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}, nil
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: t}}, nil
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: t}}, nil
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(t)}}, nil
	case int32:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(t)}}, nil
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: t}}, nil
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(t)}}, nil
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: t}}, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: i}}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: f}}, nil
	case map[string]interface{}:
		s, err := toStruct(t)
		if err != nil {
			return nil, err
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: s}}, nil
	case []interface{}:
		values := make([]*pb.Value, len(t))
		for i, item := range t {
			val, err := toValue(item)
			if err != nil {
				return nil, err
			}
			values[i] = val
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

func fromStruct(s *pb.Struct) map[string]interface{} {
	out := make(map[string]interface{}, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *pb.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_StructValue:
		return fromStruct(k.StructValue)
	case *pb.Value_ListValue:
		items := make([]interface{}, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			items[i] = fromValue(item)
		}
		return items
	default:
		return nil
	}
}
