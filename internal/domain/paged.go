package domain

// PagedResult 是服务端返回的一页数据
type PagedResult[T any] struct {
	Items        []T
	Page         int
	TotalPages   int
	TotalRecords int
	RangeStart   int
	RangeEnd     int
}
