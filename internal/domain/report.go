package domain

// ProcessingStatus enumerates pipeline milestones for a single post.
type ProcessingStatus string

const (
	StatusFetched    ProcessingStatus = "fetched"
	StatusClassified ProcessingStatus = "classified"
	StatusExtracted  ProcessingStatus = "extracted"
	StatusPersisted  ProcessingStatus = "persisted"
)

// PostResult is the outcome of running one post through the pipeline.
// Status is the last milestone reached; Err is set when it stopped early.
type PostResult struct {
	Raw      RawPost
	Status   ProcessingStatus
	Post     Post
	Genre    Genre
	Entities Entities
	Book     *Book
	Saved    SavedSkeet
	Err      error
}

// RunReport aggregates a batch run.
type RunReport struct {
	RunID     string
	Results   []PostResult
	Processed int
	Failed    int
}

// Failures returns the results that did not reach StatusPersisted.
func (r RunReport) Failures() []PostResult {
	var out []PostResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// ShelvedBooks returns the books persisted during the run, in order.
func (r RunReport) ShelvedBooks() []Book {
	var out []Book
	for _, res := range r.Results {
		if res.Err == nil && res.Book != nil {
			out = append(out, *res.Book)
		}
	}
	return out
}
