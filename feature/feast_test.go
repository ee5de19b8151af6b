package feature

import (
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/rankproxy/core"
)

func TestValueToFloat64(t *testing.T) {
	tests := []struct {
		name string
		val  *feasttypes.Value
		want float64
		ok   bool
	}{
		{"double", &feasttypes.Value{Val: &feasttypes.Value_DoubleVal{DoubleVal: 1.5}}, 1.5, true},
		{"float", &feasttypes.Value{Val: &feasttypes.Value_FloatVal{FloatVal: 2.5}}, 2.5, true},
		{"int64", &feasttypes.Value{Val: &feasttypes.Value_Int64Val{Int64Val: 7}}, 7, true},
		{"int32", &feasttypes.Value{Val: &feasttypes.Value_Int32Val{Int32Val: 3}}, 3, true},
		{"bool true", &feasttypes.Value{Val: &feasttypes.Value_BoolVal{BoolVal: true}}, 1, true},
		{"bool false", &feasttypes.Value{Val: &feasttypes.Value_BoolVal{BoolVal: false}}, 0, true},
		{"string is not numeric", &feasttypes.Value{Val: &feasttypes.Value_StringVal{StringVal: "42"}}, 0, false},
		{"empty value", &feasttypes.Value{}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := valueToFloat64(tt.val)
			if ok != tt.ok || got != tt.want {
				t.Errorf("valueToFloat64 = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMergeFeatures(t *testing.T) {
	rows := []core.FeatureRow{
		{AnimalID: "a"},
		{AnimalID: "b"},
	}
	values := []feastsdk.Row{
		{
			"animal_stats:like_count": {Val: &feasttypes.Value_Int64Val{Int64Val: 12}},
			"animal_stats:view_count": {Val: &feasttypes.Value_DoubleVal{DoubleVal: 340}},
		},
		{
			"animal_stats:like_count": {Val: &feasttypes.Value_StringVal{StringVal: "oops"}},
			// view_count 缺失
		},
	}
	names := []string{"animal_stats:like_count", "animal_stats:view_count"}

	merged := mergeFeatures(rows, values, names)

	if got := merged[0].Features["animal_stats:like_count"]; got != 12 {
		t.Errorf("row 0 like_count = %v, want 12", got)
	}
	if got := merged[0].Features["animal_stats:view_count"]; got != 340 {
		t.Errorf("row 0 view_count = %v, want 340", got)
	}
	// 非数值与缺失的特征都跳过，该行不产生 Features
	if merged[1].Features != nil {
		t.Errorf("row 1 features = %v, want none", merged[1].Features)
	}
}

func TestMergeFeatures_PreservesRowOrder(t *testing.T) {
	rows := []core.FeatureRow{{AnimalID: "x"}, {AnimalID: "y"}, {AnimalID: "z"}}
	values := []feastsdk.Row{{}, {}, {}}

	merged := mergeFeatures(rows, values, []string{"f"})
	for i, want := range []string{"x", "y", "z"} {
		if merged[i].AnimalID != want {
			t.Errorf("row %d id = %s, want %s", i, merged[i].AnimalID, want)
		}
	}
}
