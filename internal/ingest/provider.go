package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	SetsReceived int   `json:"sets_received"`
	SetsInserted int64 `json:"sets_inserted"`
	Exercises    int   `json:"exercises"`

	// Date (YYYY-MM-DD) and Location of the session the sets belong to.
	Date     string `json:"date,omitempty"`
	Location string `json:"location,omitempty"`

	Message string `json:"message,omitempty"`
}
