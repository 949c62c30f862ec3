package domain

// OffsetQuery is the generic offset-paginated read query.
type OffsetQuery struct {
	Offset int `json:"offset" form:"offset"`
	Limit  int `json:"limit" form:"limit"`
}

// OffsetResult carries one page of entities plus the total match count.
type OffsetResult[E any] struct {
	Items   []E   `json:"items"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}
