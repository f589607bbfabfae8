package database

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Filter — абстрактный фильтр запроса. Поддерживаемые операторы:
// $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin — передаются в MongoDB как есть;
// $like — шаблон с '*' (регистронезависимый);
// $reg (+ $flags) — произвольное регулярное выражение;
// $or, $and — рекурсивные комбинаторы.
// Значение-не-объект означает равенство.
type Filter map[string]any

// Sort — порядок сортировки: поле -> asc|desc|1|-1.
type Sort map[string]any

// Операторы сравнения, транслируемые в MongoDB без изменений.
var passthroughOps = map[string]bool{
	"$eq": true, "$ne": true,
	"$gt": true, "$gte": true,
	"$lt": true, "$lte": true,
	"$in": true, "$nin": true,
}

// ConvertFilter транслирует абстрактный фильтр в нативный фильтр MongoDB.
// Nil-фильтр означает «все документы».
func ConvertFilter(f Filter) bson.M {
	out := bson.M{}
	if f == nil {
		return out
	}
	for key, value := range f {
		if key == "$or" || key == "$and" {
			out[key] = convertBranches(value)
			continue
		}
		cond, ok := asCondition(value)
		if !ok {
			out[key] = value
			continue
		}
		converted := convertCondition(cond)
		if len(converted) > 0 {
			out[key] = converted
		} else {
			out[key] = value
		}
	}
	return out
}

// convertBranches рекурсивно транслирует ветви $or/$and.
func convertBranches(value any) []bson.M {
	var branches []bson.M
	switch list := value.(type) {
	case []Filter:
		for _, f := range list {
			branches = append(branches, ConvertFilter(f))
		}
	case []map[string]any:
		for _, f := range list {
			branches = append(branches, ConvertFilter(Filter(f)))
		}
	case []any:
		for _, item := range list {
			if f, ok := asCondition(item); ok {
				branches = append(branches, ConvertFilter(Filter(f)))
			}
		}
	}
	if branches == nil {
		branches = []bson.M{}
	}
	return branches
}

// asCondition распознаёт значение-объект (набор операторов).
func asCondition(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case Filter:
		return v, true
	case bson.M:
		return v, true
	}
	return nil, false
}

// convertCondition транслирует операторы одного поля.
func convertCondition(cond map[string]any) bson.M {
	out := bson.M{}
	for op, v := range cond {
		switch {
		case passthroughOps[op]:
			out[op] = v
		case op == "$like":
			pattern, _ := v.(string)
			out["$regex"] = "^" + strings.ReplaceAll(pattern, "*", ".*") + "$"
			out["$options"] = "i"
		case op == "$reg":
			out["$regex"] = v
			if flags, ok := cond["$flags"].(string); ok && flags != "" {
				out["$options"] = flags
			}
		case op == "$flags":
			// обрабатывается вместе с $reg
		}
	}
	return out
}

// ConvertSort транслирует порядок сортировки в нативный вид MongoDB.
// Принимает asc|desc и 1|-1 (в том числе числовые типы после декодирования).
func ConvertSort(s Sort) bson.D {
	out := bson.D{}
	for field, dir := range s {
		out = append(out, bson.E{Key: field, Value: sortDirection(dir)})
	}
	return out
}

func sortDirection(dir any) int {
	switch v := dir.(type) {
	case string:
		if strings.EqualFold(v, "desc") {
			return -1
		}
	case int:
		if v < 0 {
			return -1
		}
	case int32:
		if v < 0 {
			return -1
		}
	case int64:
		if v < 0 {
			return -1
		}
	case float64:
		if v < 0 {
			return -1
		}
	}
	return 1
}
