// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SessionState is the per-user engine state that outlives a single request:
// the selected generation backend, knowledge collection, base prompt and
// active project. It is what the session store persists.
type SessionState struct {
	Model      string `json:"model"`
	Collection string `json:"collection"`
	BasePrompt string `json:"base_prompt"`

	// ProjectID is NoProject when no project is active.
	ProjectID int64 `json:"project_id"`
}
