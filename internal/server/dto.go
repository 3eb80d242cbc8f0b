// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pdiddy/aiwrite/pkg/types"
)

type setupRequest struct {
	Concept string `json:"concept"`
}

func (r setupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Concept, validation.Required),
	)
}

type sectionRequest struct {
	Name string `json:"name"`
}

func (r sectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// updateRequest carries editor text. Empty text is allowed and ignored by
// the engine.
type updateRequest struct {
	Text string `json:"text"`
}

type modelRequest struct {
	Model string `json:"model"`
}

func (r modelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Model, validation.Required),
	)
}

type collectionRequest struct {
	Collection string `json:"collection"`
}

func (r collectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Collection, validation.Required),
	)
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (r promptRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.Required),
	)
}

type embedRequest struct {
	Path string `json:"path"`
}

func (r embedRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// folderRequest embeds a folder; an empty Dir uses the active project's
// documents folder.
type folderRequest struct {
	Dir string `json:"dir"`
}

type projectRequest struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Language        string `json:"language"`
	Model           string `json:"model"`
	DocumentsFolder string `json:"documents_folder"`
	Collection      string `json:"collection"`
	ManuscriptID    *int64 `json:"manuscript_id"`
}

func (r projectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Min(int64(0))),
		validation.Field(&r.Language, validation.In(types.Languages...)),
	)
}

func (r projectRequest) project() *types.Project {
	return &types.Project{
		ID:              r.ID,
		Name:            r.Name,
		Language:        r.Language,
		Model:           r.Model,
		DocumentsFolder: r.DocumentsFolder,
		Collection:      r.Collection,
		ManuscriptID:    r.ManuscriptID,
	}
}

type critiqueResponse struct {
	Status   string `json:"status"`
	Critique string `json:"critique"`
}

type manuscriptResponse struct {
	Status     string            `json:"status"`
	Manuscript *types.Manuscript `json:"manuscript"`
}

type embedResponse struct {
	Status  string             `json:"status"`
	Summary types.EmbedSummary `json:"summary"`
}
