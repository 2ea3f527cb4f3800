package models

// FieldRow is one flattened leaf of a decoded document.
type FieldRow struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// FieldPage is a window of FieldRows plus the total number of matches.
type FieldPage struct {
	Rows   []FieldRow `json:"rows"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
