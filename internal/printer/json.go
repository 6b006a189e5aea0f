package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/meshup-sh/meshup/internal/model"
)

// JSONPrinter prints deployment session information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a session in the list output (subset of fields).
type listItem struct {
	ID        string    `json:"id"`
	Workspace string    `json:"workspace"`
	Status    string    `json:"status"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// statusOutput represents the full session status output.
type statusOutput struct {
	ID             string          `json:"id"`
	Workspace      string          `json:"workspace"`
	ProjectDir     string          `json:"project_dir"`
	Status         string          `json:"status"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	Endpoint       string          `json:"endpoint,omitempty"`
	Error          string          `json:"error,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	Ownership      ownershipOutput `json:"ownership"`
	CreatedAt      time.Time       `json:"created_at"`
	FinishedAt     *time.Time      `json:"finished_at"`
}

// ownershipOutput represents session resource ownership output.
type ownershipOutput struct {
	ProjectCreated  bool   `json:"project_created"`
	MeshCreatedFor  string `json:"mesh_created_for,omitempty"`
	MeshPreexisting bool   `json:"mesh_preexisting"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints sessions in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(sessions []model.Session) error {
	items := make([]listItem, len(sessions))
	for i, s := range sessions {
		items[i] = listItem{
			ID:        s.ID,
			Workspace: s.Workspace,
			Status:    string(s.Status),
			Attempt:   s.Attempt,
			CreatedAt: s.CreatedAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintStatus prints detailed session status in JSON format.
func (j *JSONPrinter) PrintStatus(s model.Session) error {
	output := statusOutput{
		ID:             s.ID,
		Workspace:      s.Workspace,
		ProjectDir:     s.ProjectDir,
		Status:         string(s.Status),
		Attempt:        s.Attempt,
		MaxAttempts:    s.MaxAttempts,
		ElapsedSeconds: s.ElapsedSeconds(),
		Endpoint:       s.Endpoint,
		Error:          s.ErrMessage,
		Warnings:       s.Warnings,
		Ownership: ownershipOutput{
			ProjectCreated:  s.Ownership.ProjectCreatedThisSession,
			MeshCreatedFor:  s.Ownership.MeshCreatedForWorkspace,
			MeshPreexisting: s.Ownership.MeshExistedBeforeSession,
		},
		CreatedAt: s.CreatedAt.UTC(),
	}

	if s.FinishedAt != nil {
		utcTime := s.FinishedAt.UTC()
		output.FinishedAt = &utcTime
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
