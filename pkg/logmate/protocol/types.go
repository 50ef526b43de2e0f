package protocol

import "time"

// Task is the queue envelope that asks a worker to process one file.
type Task struct {
	JobID    string `json:"job_id"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	Attempt  int    `json:"attempt"`
	// NotBefore delays a retried task until its backoff has elapsed.
	NotBefore time.Time `json:"not_before,omitempty"`
	Version   string    `json:"version"` // producer's LogmateVersion
}

// UploadResponse is returned after a file is accepted for processing.
type UploadResponse struct {
	TaskID   string `json:"task_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	Message  string `json:"message"`
}

// UploadAcceptedMessage is the UploadResponse message for a queued file.
const UploadAcceptedMessage = "File uploaded. Processing in background."

// CSRFTokenResponse carries a freshly issued anti-forgery token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   string `json:"queue"`
}
