package entity

// Annotation is a free-text note attached to a run report.
type Annotation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}
