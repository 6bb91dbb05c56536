package wikipedia

// ExtractResponse is the body of a prop=extracts query.
type ExtractResponse struct {
	Query ExtractQuery `json:"query"`
}

// ExtractQuery holds the pages keyed by page id; "-1" marks a missing page.
type ExtractQuery struct {
	Pages map[string]Page `json:"pages"`
}

// Page is one article with its lead-section extract.
type Page struct {
	PageID  int     `json:"pageid"`
	Title   string  `json:"title"`
	Extract string  `json:"extract"`
	Missing *string `json:"missing,omitempty"`
}
