// Package revision is the client side of the remote revision service: the
// request payloads, the typed stream events and a line-delimited decoder.
package revision

import "ai-editorial-be/pkg/ledger"

// StartRequest begins a pipeline run over the selected stages.
type StartRequest struct {
	Content          string   `json:"content"`
	SelectedStageIDs []string `json:"selected_stage_ids"`
	Sequential       bool     `json:"sequential"`
}

// ContinueRequest resumes a sequential pipeline at its next stage.
type ContinueRequest struct {
	ThreadRef      string                     `json:"thread_ref"`
	ParagraphEdits []ledger.ParagraphEdit     `json:"paragraph_edits"`
	Decisions      []ledger.ParagraphDecision `json:"decisions"`
	AcceptAll      bool                       `json:"accept_all"`
	RejectAll      bool                       `json:"reject_all"`
}

// FinalizeRequest asks the service to merge the decided edits into the final
// article.
type FinalizeRequest struct {
	OriginalContent      string                     `json:"original_content"`
	ParagraphEdits       []ledger.ParagraphEdit     `json:"paragraph_edits"`
	Decisions            []ledger.ParagraphDecision `json:"decisions"`
	IncludeQualityChecks bool                       `json:"include_quality_checks"`
	IncludeCopyCheck     bool                       `json:"include_copy_check"`
}

// BlockTypeInfo describes the structural role of one paragraph of the final
// article.
type BlockTypeInfo struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Level int    `json:"level"`
}

type FinalizeResponse struct {
	FinalArticle string          `json:"final_article"`
	BlockTypes   []BlockTypeInfo `json:"block_types"`
}

type extractResponse struct {
	Text string `json:"text"`
}
