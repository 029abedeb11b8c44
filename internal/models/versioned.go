package models

// Versioned carries the optimistic-lock counter. Embed it anonymously;
// repositories bump it on every guarded write.
type Versioned struct {
	RowVersion int64 `json:"row_version"`
}
