package bangumi

// SearchResult represents a search result item
type SearchResult struct {
	ID      int    `json:"id"`
	Type    int    `json:"type"`
	Name    string `json:"name"`
	NameCN  string `json:"name_cn"`
	AirDate string `json:"air_date"`
}

type Subject struct {
	ID     int    `json:"id"`
	Type   int    `json:"type"`
	Name   string `json:"name"`
	NameCN string `json:"name_cn"`
	Date   string `json:"date"`
	Eps    int    `json:"eps"`
}
