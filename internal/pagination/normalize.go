package pagination

import (
	"encoding/json"
	"strconv"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/tidwall/gjson"
)

// 一种已知的响应结构：从响应中取出数据数组和分页信息，meta 不存在时返回空的 Result
type probe func(root gjson.Result, key string) (items gjson.Result, meta gjson.Result, ok bool)

// 按固定的优先级探测后端可能返回的结构
var probes = []probe{
	// {key: {data: [...], meta: {...}}}
	func(root gjson.Result, key string) (gjson.Result, gjson.Result, bool) {
		if key == "" {
			return gjson.Result{}, gjson.Result{}, false
		}
		obj := root.Get(key)
		data, meta := obj.Get("data"), obj.Get("meta")
		return data, meta, data.IsArray() && meta.IsObject()
	},
	// {key: {data: [...], last_page: ..., total: ...}}
	func(root gjson.Result, key string) (gjson.Result, gjson.Result, bool) {
		if key == "" {
			return gjson.Result{}, gjson.Result{}, false
		}
		obj := root.Get(key)
		data := obj.Get("data")
		return data, obj, data.IsArray() && obj.Get("last_page").Exists()
	},
	// {data: [...], meta: {...}}
	func(root gjson.Result, _ string) (gjson.Result, gjson.Result, bool) {
		data, meta := root.Get("data"), root.Get("meta")
		return data, meta, data.IsArray() && meta.IsObject()
	},
	// {key: [...]}
	func(root gjson.Result, key string) (gjson.Result, gjson.Result, bool) {
		if key == "" {
			return gjson.Result{}, gjson.Result{}, false
		}
		data := root.Get(key)
		return data, gjson.Result{}, data.IsArray()
	},
	// {key: {data: [...]}}
	func(root gjson.Result, key string) (gjson.Result, gjson.Result, bool) {
		if key == "" {
			return gjson.Result{}, gjson.Result{}, false
		}
		data := root.Get(key).Get("data")
		return data, gjson.Result{}, data.IsArray()
	},
	// {data: [...]}
	func(root gjson.Result, _ string) (gjson.Result, gjson.Result, bool) {
		data := root.Get("data")
		return data, gjson.Result{}, data.IsArray()
	},
	// [...]
	func(root gjson.Result, _ string) (gjson.Result, gjson.Result, bool) {
		return root, gjson.Result{}, root.IsArray()
	},
}

// Normalize 把各种形状的列表响应统一为 PagedResult。
// 无法识别的响应不会报错，而是退化为只有一页的空列表。
func Normalize[T any](body []byte, key string, requestedPage int) *domain.PagedResult[T] {
	if !gjson.ValidBytes(body) {
		return Empty[T]()
	}
	root := gjson.ParseBytes(body)

	for _, p := range probes {
		items, meta, ok := p(root, key)
		if !ok {
			continue
		}
		return build(decodeItems[T](items), meta, requestedPage)
	}

	return Empty[T]()
}

func Empty[T any]() *domain.PagedResult[T] {
	return &domain.PagedResult[T]{
		Items:      []T{},
		Page:       1,
		TotalPages: 1,
	}
}

// 逐个解码，单条数据损坏时跳过而不是让整页失败
func decodeItems[T any](arr gjson.Result) []T {
	items := make([]T, 0)
	for _, elem := range arr.Array() {
		var item T
		if err := json.Unmarshal([]byte(elem.Raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func build[T any](items []T, meta gjson.Result, requestedPage int) *domain.PagedResult[T] {
	result := &domain.PagedResult[T]{Items: items}

	if !meta.Exists() {
		// 没有分页信息时整个数组就是唯一的一页
		result.Page = 1
		result.TotalPages = 1
		result.TotalRecords = len(items)
		if len(items) > 0 {
			result.RangeStart, result.RangeEnd = 1, len(items)
		}
		return result
	}

	perPage := intOr(meta.Get("per_page"), len(items))
	result.TotalRecords = intOr(meta.Get("total"), len(items))

	lastPage := intOr(meta.Get("last_page"), 0)
	if lastPage <= 0 && perPage > 0 {
		lastPage = (result.TotalRecords + perPage - 1) / perPage
	}
	result.TotalPages = max(lastPage, 1)
	result.Page = Clamp(intOr(meta.Get("current_page"), max(requestedPage, 1)), result.TotalPages)

	from, to := meta.Get("from"), meta.Get("to")
	if isNumeric(from) && isNumeric(to) {
		result.RangeStart, result.RangeEnd = intOr(from, 0), intOr(to, 0)
	} else {
		result.RangeStart, result.RangeEnd = Range(result.Page, perPage, result.TotalRecords)
	}

	return result
}

func isNumeric(r gjson.Result) bool {
	switch r.Type {
	case gjson.Number:
		return true
	case gjson.String:
		_, err := strconv.Atoi(r.Str)
		return err == nil
	default:
		return false
	}
}

func intOr(r gjson.Result, def int) int {
	switch r.Type {
	case gjson.Number:
		return int(r.Int())
	case gjson.String:
		if n, err := strconv.Atoi(r.Str); err == nil {
			return n
		}
	}
	return def
}
