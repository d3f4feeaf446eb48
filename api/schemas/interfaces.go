// api/schemas/interfaces.go
package schemas

import (
	"context"
)

// AskOptions tunes a single oracle call. Zero values fall back to the
// provider's configured defaults.
type AskOptions struct {
	Retries   int   `json:"retries"`
	TimeoutMs int64 `json:"timeout_ms"`
	// ForceJSON asks the provider to constrain output to JSON where the
	// backing API supports it. The content is still treated as untrusted
	// free text by every consumer.
	ForceJSON   bool    `json:"force_json"`
	Temperature float64 `json:"temperature"`
}

// OracleResponse is the opaque result of one oracle call. Content is
// untrusted free text; consumers must extract and validate any embedded
// structure themselves.
type OracleResponse struct {
	Success    bool   `json:"success"`
	Content    string `json:"content"`
	ProviderID string `json:"provider_id"`
	LatencyMs  int64  `json:"latency_ms"`
}

// Oracle is any external LLM completion service, treated as an untrusted
// text-in/text-out function. Implementations must honor ctx cancellation
// and the per-call timeout; a timeout is reported as an error, never as a
// fabricated response.
type Oracle interface {
	Ask(ctx context.Context, prompt, systemPrompt string, opts AskOptions) (OracleResponse, error)
	// ProviderID identifies the backing provider instance, recorded as a
	// candidate's origin.
	ProviderID() string
}

// FileStore is the narrow filesystem surface the orchestrator consumes.
// Every Write the orchestrator performs is preceded by a successful Backup
// of the previous content under a derived name.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Exists(path string) bool
	// Backup copies the current content of path to its derived backup name
	// and returns that name.
	Backup(path string) (string, error)
	// Restore copies the derived backup back over path.
	Restore(path string) error
	// BackupPath returns the derived backup name for path without touching
	// the filesystem.
	BackupPath(path string) string
}
