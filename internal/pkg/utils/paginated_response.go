package utils

type PageResponse[T any] struct {
	Items         []T   `json:"items"`
	NextPageToken int64 `json:"nextPageToken,omitempty"`
	ItemCount     int64 `json:"itemCount"`
}

// NewPageResponse wraps one page of items out of total. Items is never null
// on the wire so clients can range over it unconditionally.
func NewPageResponse[T any](page PageRequest, items []T, total int64) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{
		Items:         items,
		NextPageToken: page.NextToken(total),
		ItemCount:     total,
	}
}
