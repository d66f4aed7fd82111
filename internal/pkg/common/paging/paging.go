package paging

type PagingQuery struct {
	Paging   bool `form:"paging" json:"paging"`
	Page     int  `form:"page" json:"page" validate:"omitempty,gte=1"`
	PageSize int  `form:"page_size" json:"page_size" validate:"omitempty,gte=1,lte=1000"`
}

// SetDefaults 设置默认分页, 限制每页项目最大数
func (p *PagingQuery) SetDefaults(defaultPage, defaultSize, maxSize int) {
	if p.Page <= 0 {
		p.Page = defaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
}

// Slice 返回第 page 页(从 1 开始)的元素, 超出范围时返回空切片.
func Slice[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
