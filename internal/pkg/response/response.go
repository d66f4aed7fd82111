package response

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Response 所有接口统一的响应格式. 出错时只设置 Detail.
type Response struct {
	Count    int         `json:"count"`
	Previous url.URL     `json:"previous"`
	Next     url.URL     `json:"next"`
	Results  interface{} `json:"results"`
	Detail   string      `json:"detail"`
}

// Errorf 只包含错误信息的响应.
func Errorf(format string, args ...any) Response {
	return Response{Detail: fmt.Sprintf(format, args...)}
}

// MarshalJSON renders Previous and Next as URL strings instead of struct fields.
func (r Response) MarshalJSON() ([]byte, error) {
	type alias struct {
		Count    int         `json:"count"`
		Previous string      `json:"previous"`
		Next     string      `json:"next"`
		Results  interface{} `json:"results"`
		Detail   string      `json:"detail"`
	}
	return json.Marshal(alias{
		Count:    r.Count,
		Previous: r.Previous.String(),
		Next:     r.Next.String(),
		Results:  r.Results,
		Detail:   r.Detail,
	})
}

// BuildPageLinks constructs previous and next page URLs based on the provided
// base URL and paging parameters. It does not modify the input URL.
func BuildPageLinks(base *url.URL, page, pageSize, total int) (prev, next url.URL) {
	if base == nil || pageSize <= 0 {
		return url.URL{}, url.URL{}
	}
	lastPage := (total + pageSize - 1) / pageSize

	makeURL := func(p int) url.URL {
		if p < 1 {
			p = 1
		}
		u := *base
		q := u.Query()
		q.Set("paging", "true")
		q.Set("page", strconv.Itoa(p))
		q.Set("page_size", strconv.Itoa(pageSize))
		u.RawQuery = q.Encode()
		return u
	}

	if page > 1 {
		prev = makeURL(min(page-1, lastPage))
	}
	if page < lastPage {
		next = makeURL(page + 1)
	}
	return
}
