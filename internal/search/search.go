package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultMonster ResultType = "monster"
	ResultFeature ResultType = "feature"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Snippet  string     `json:"snippet"`
	Category string     `json:"category,omitempty"`
}

// Query describes a search request. UserID is mandatory; results never cross
// user boundaries.
type Query struct {
	UserID     string
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MonsterRecord is the data we index for a monster.
type MonsterRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Type        string `json:"monsterType"`
	Challenge   string `json:"challenge"`
	Description string `json:"description"`
}

// FeatureRecord is the data we index for a feature.
type FeatureRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Category string `json:"category"`
}
