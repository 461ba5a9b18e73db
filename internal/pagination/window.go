package pagination

// WindowSize 是页码选择器中同时显示的页码个数
const WindowSize = 5

// Window 返回以 current 为中心、长度为 min(WindowSize, total) 的连续页码，
// 靠近两端时窗口会贴边滑动
func Window(current, total int) []int {
	if total < 1 {
		return nil
	}
	current = Clamp(current, total)

	start := max(1, current-WindowSize/2)
	end := min(total, start+WindowSize-1)
	start = max(1, end-WindowSize+1)

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Clamp 把页码限制在 [1, total] 内，total 小于 1 时视为只有一页
func Clamp(page, total int) int {
	if total < 1 {
		total = 1
	}
	return min(max(page, 1), total)
}

func HasPrev(current int) bool {
	return current > 1
}

func HasNext(current, total int) bool {
	return current < total
}

// Range 计算当前页的第一条和最后一条记录的序号（从 1 开始），没有记录时都为 0
func Range(page, perPage, total int) (int, int) {
	if total <= 0 || perPage <= 0 || page < 1 {
		return 0, 0
	}
	start := (page-1)*perPage + 1
	if start > total {
		return 0, 0
	}
	return start, min(page*perPage, total)
}
