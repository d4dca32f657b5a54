package client

// QueryRequest represents the query API request.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// Source is a citation attached to an answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// QueryResponse represents the query API response.
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
	Truncated bool     `json:"truncated,omitempty"`
}

// TransitionEvent is a streamed generation state change.
type TransitionEvent struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Trigger   string   `json:"trigger"`
	ToolNames []string `json:"tool_names,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// CourseStatsResponse represents the course catalog summary.
type CourseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// LessonResponse is one lesson of an outline.
type LessonResponse struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// OutlineResponse represents a course outline.
type OutlineResponse struct {
	Title      string           `json:"title"`
	Link       string           `json:"course_link,omitempty"`
	Instructor string           `json:"instructor,omitempty"`
	Lessons    []LessonResponse `json:"lessons"`
}

// IngestJobResponse represents an uploaded document's ingest job.
type IngestJobResponse struct {
	ID           string  `json:"id"`
	DocumentName string  `json:"document_name"`
	Source       string  `json:"source"`
	Status       string  `json:"status"`
	Retries      int32   `json:"retries"`
	Error        string  `json:"error,omitempty"`
	CourseTitle  string  `json:"course_title,omitempty"`
	ChunkCount   int     `json:"chunk_count"`
	DownloadURL  string  `json:"download_url,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ProcessedAt  *string `json:"processed_at,omitempty"`
}

// IngestedCourse is one course of a folder ingest.
type IngestedCourse struct {
	CourseTitle string `json:"course_title"`
	Lessons     int    `json:"lessons"`
	Chunks      int    `json:"chunks"`
}

// IngestFailure is one file a folder ingest could not process.
type IngestFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// IngestResponse represents the folder ingest API response.
type IngestResponse struct {
	Courses     []IngestedCourse `json:"courses"`
	Skipped     []string         `json:"skipped"`
	Failed      []IngestFailure  `json:"failed"`
	TotalChunks int              `json:"total_chunks"`
}

// JobPageResponse is one page of the ingest job listing.
type JobPageResponse struct {
	Items   []IngestJobResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}
