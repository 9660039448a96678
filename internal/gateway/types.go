package gateway

import "encoding/json"

// GenerateRequest is the body of a streamed generation request
type GenerateRequest struct {
	FilePaths     []string `json:"file_paths"`
	UserQuery     string   `json:"user_query"`
	UserID        string   `json:"user_id"`
	SystemPrompt  string   `json:"systemPrompt"`
	DefaultPrompt string   `json:"defaultPrompt"`
	SlugID        string   `json:"slug_id"`
	ExtractedText string   `json:"extracted_text"`
	IsFileSingle  string   `json:"is_file_single"`
	StructureType string   `json:"structure_type"`
	ActionType    string   `json:"actiontype"`
	Selected      string   `json:"selected"`
	QueryType     string   `json:"querytype"` // "true" or "false"
}

// StopResponse is returned by the stop endpoint
type StopResponse struct {
	Status string `json:"status"`
}

// UserLogRequest selects the server-side interaction log
type UserLogRequest struct {
	SlugID      string `json:"slugid,omitempty"`
	UserID      int64  `json:"userid"`
	OutlineType string `json:"outlinetype,omitempty"`
}

// LogEntry is one server-recorded exchange
type LogEntry struct {
	ID            int64  `json:"id"`
	UserQuery     string `json:"userquery"`
	ModelResponse string `json:"modelresponse"`
	ActionType    string `json:"actiontype"`
	Selected      string `json:"selected"`
}

// CourseRecord is the outline payload stored per course slug. Each detail
// field holds the accepted output of one authoring stage.
type CourseRecord struct {
	UserQuery     string `json:"user_query"`
	OutlineType   string `json:"outlinetype"`
	ProgramDetail string `json:"programdetail"`
	CourseDetail  string `json:"coursedetail"`
	ChapterDetail string `json:"chapterdetail"`
	PPTDetail     string `json:"pptdetail"`
	QuizDetail    string `json:"quizdetail"`
	UserID        string `json:"userid"`
	SlugID        string `json:"slugid"`
}

// CourseKey addresses a single course
type CourseKey struct {
	UserID string `json:"userid"`
	SlugID string `json:"slugid"`
}

// PreviewRequest asks for the assembled document preview
type PreviewRequest struct {
	UserID int64  `json:"userid"`
	SlugID string `json:"slugid"`
}

// PromptRequest asks for stored prompt templates
type PromptRequest struct {
	UserQuery   string `json:"user_query,omitempty"`
	OutlineType string `json:"outlinetype"`
	ParentID    string `json:"parentid"`
}

// Prompt is a stored system/default prompt pair
type Prompt struct {
	ID            int64  `json:"id"`
	OutlineType   string `json:"outlinetype"`
	SystemPrompt  string `json:"systemPrompt"`
	DefaultPrompt string `json:"defaultPrompt"`
}

// UserRequest registers a user with the backend
type UserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	OrgID  int64  `json:"orgid"`
	Status int    `json:"status"`
	UserID int64  `json:"user_id"`
}

// Ack is the generic JSON acknowledgement returned by mutating endpoints
type Ack struct {
	Status  any             `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Attachment is an optional feedback file
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// FeedbackForm is posted as multipart/form-data
type FeedbackForm struct {
	UserID      string
	Name        string
	Email       string
	Rating      int
	Comments    string
	CreatedDate string
	Attachment  *Attachment
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
