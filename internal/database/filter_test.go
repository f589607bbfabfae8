package database

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestConvertFilter_Nil(t *testing.T) {
	got := ConvertFilter(nil)
	if len(got) != 0 {
		t.Errorf("nil-фильтр: ожидался пустой bson.M, получено %v", got)
	}
}

func TestConvertFilter_PlainEquality(t *testing.T) {
	got := ConvertFilter(Filter{"data.name": "users"})
	want := bson.M{"data.name": "users"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ожидалось %v, получено %v", want, got)
	}
}

func TestConvertFilter_PassthroughOps(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   bson.M
	}{
		{
			name:   "$eq",
			filter: Filter{"uid": map[string]any{"$eq": "abc"}},
			want:   bson.M{"uid": bson.M{"$eq": "abc"}},
		},
		{
			name:   "$ne",
			filter: Filter{"isDeleted": map[string]any{"$ne": true}},
			want:   bson.M{"isDeleted": bson.M{"$ne": true}},
		},
		{
			name:   "$gt и $lte вместе",
			filter: Filter{"data.size": map[string]any{"$gt": 10, "$lte": 100}},
			want:   bson.M{"data.size": bson.M{"$gt": 10, "$lte": 100}},
		},
		{
			name:   "$in",
			filter: Filter{"uid": map[string]any{"$in": []any{"a", "b"}}},
			want:   bson.M{"uid": bson.M{"$in": []any{"a", "b"}}},
		},
		{
			name:   "$nin",
			filter: Filter{"data.status": map[string]any{"$nin": []any{"fail"}}},
			want:   bson.M{"data.status": bson.M{"$nin": []any{"fail"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertFilter(tt.filter)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ожидалось %v, получено %v", tt.want, got)
			}
		})
	}
}

func TestConvertFilter_Like(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bson.M
	}{
		{
			name:    "звёздочка в конце",
			pattern: "doc*",
			want:    bson.M{"$regex": "^doc.*$", "$options": "i"},
		},
		{
			name:    "звёздочки с обеих сторон",
			pattern: "*report*",
			want:    bson.M{"$regex": "^.*report.*$", "$options": "i"},
		},
		{
			name:    "без звёздочек — точное совпадение",
			pattern: "exact",
			want:    bson.M{"$regex": "^exact$", "$options": "i"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertFilter(Filter{"data.name": map[string]any{"$like": tt.pattern}})
			cond, ok := got["data.name"].(bson.M)
			if !ok {
				t.Fatalf("ожидался bson.M, получено %T", got["data.name"])
			}
			if !reflect.DeepEqual(cond, tt.want) {
				t.Errorf("ожидалось %v, получено %v", tt.want, cond)
			}
		})
	}
}

func TestConvertFilter_Regex(t *testing.T) {
	t.Run("только $reg", func(t *testing.T) {
		got := ConvertFilter(Filter{"data.name": map[string]any{"$reg": "^abc"}})
		want := bson.M{"data.name": bson.M{"$regex": "^abc"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ожидалось %v, получено %v", want, got)
		}
	})

	t.Run("$reg с $flags", func(t *testing.T) {
		got := ConvertFilter(Filter{
			"data.name": map[string]any{"$reg": "^abc", "$flags": "im"},
		})
		want := bson.M{"data.name": bson.M{"$regex": "^abc", "$options": "im"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ожидалось %v, получено %v", want, got)
		}
	})
}

func TestConvertFilter_OrAnd(t *testing.T) {
	t.Run("$or из []Filter", func(t *testing.T) {
		got := ConvertFilter(Filter{
			"$or": []Filter{
				{"data.name": "a"},
				{"data.name": "b"},
			},
		})
		branches, ok := got["$or"].([]bson.M)
		if !ok {
			t.Fatalf("ожидался []bson.M, получено %T", got["$or"])
		}
		if len(branches) != 2 {
			t.Fatalf("ожидалось 2 ветви, получено %d", len(branches))
		}
	})

	t.Run("$and из []any с вложенными операторами", func(t *testing.T) {
		got := ConvertFilter(Filter{
			"$and": []any{
				map[string]any{"data.size": map[string]any{"$gt": 0}},
				map[string]any{"isDeleted": map[string]any{"$ne": true}},
			},
		})
		branches, ok := got["$and"].([]bson.M)
		if !ok {
			t.Fatalf("ожидался []bson.M, получено %T", got["$and"])
		}
		if len(branches) != 2 {
			t.Fatalf("ожидалось 2 ветви, получено %d", len(branches))
		}
		first := branches[0]["data.size"].(bson.M)
		if first["$gt"] != 0 {
			t.Errorf("вложенный $gt не транслирован: %v", branches[0])
		}
	})

	t.Run("пустой $or даёт пустой список", func(t *testing.T) {
		got := ConvertFilter(Filter{"$or": []any{}})
		branches, ok := got["$or"].([]bson.M)
		if !ok || len(branches) != 0 {
			t.Errorf("ожидался пустой []bson.M, получено %v", got["$or"])
		}
	})
}

func TestConvertFilter_UnknownOpsKeptRaw(t *testing.T) {
	// Объект без известных операторов передаётся как есть —
	// равенство по вложенному документу.
	raw := map[string]any{"nested": "value"}
	got := ConvertFilter(Filter{"data.meta": raw})
	if !reflect.DeepEqual(got["data.meta"], raw) {
		t.Errorf("ожидалось сырое значение %v, получено %v", raw, got["data.meta"])
	}
}

func TestConvertSort(t *testing.T) {
	tests := []struct {
		name string
		dir  any
		want int
	}{
		{"asc строкой", "asc", 1},
		{"desc строкой", "desc", -1},
		{"DESC в верхнем регистре", "DESC", -1},
		{"единица", 1, 1},
		{"минус единица", -1, -1},
		{"float64 после JSON-декодирования", float64(-1), -1},
		{"int64", int64(-1), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSort(Sort{"createdAt": tt.dir})
			if len(got) != 1 {
				t.Fatalf("ожидался один элемент, получено %d", len(got))
			}
			if got[0].Key != "createdAt" {
				t.Errorf("ожидался ключ 'createdAt', получено %q", got[0].Key)
			}
			if got[0].Value != tt.want {
				t.Errorf("ожидалось направление %d, получено %v", tt.want, got[0].Value)
			}
		})
	}
}
