package domain

// AnalysisFields are the upstream analysis results for one video.
type AnalysisFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Transcript  string   `json:"transcript"`
	Entities    []string `json:"entities"`
}

// AnalysisRecord is one processed video. Records are append-only: they are
// created together with their embedding and never updated in place.
type AnalysisRecord struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Transcript  string   `json:"transcript"`
	Entities    []string `json:"entities"`
}

// NewAnalysisRecord builds a record from upstream analysis fields.
func NewAnalysisRecord(id, filename string, fields AnalysisFields) AnalysisRecord {
	return AnalysisRecord{
		ID:          id,
		Filename:    filename,
		Title:       fields.Title,
		Description: fields.Description,
		Tags:        copyStrings(fields.Tags),
		Transcript:  fields.Transcript,
		Entities:    copyStrings(fields.Entities),
	}
}

// copyStrings never returns nil so records always encode lists as [].
func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Fields returns the analysis portion of the record.
func (r AnalysisRecord) Fields() AnalysisFields {
	return AnalysisFields{
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		Transcript:  r.Transcript,
		Entities:    r.Entities,
	}
}

// SearchResult is a record matched by a query. Score is the cosine
// similarity between the query and the record transcript, higher is better.
type SearchResult struct {
	Record AnalysisRecord `json:"record"`
	Score  float64        `json:"score"`
}

// Fingerprint identifies the embedding space stored vectors belong to.
// Vectors produced under different fingerprints are not comparable.
type Fingerprint struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// IsZero reports whether no fingerprint has been recorded.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Stats summarises the state of the search service.
type Stats struct {
	Records   int    `json:"records"`
	Indexed   int    `json:"indexed"`
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
	Backend   string `json:"backend"`
}
