package workflow

import (
	"errors"

	"ai-editorial-be/pkg/ledger"
	"ai-editorial-be/pkg/revision"
)

// CopyStageID is the stage whose presence turns on the final copy check.
const CopyStageID = "copy"

var (
	ErrNotAllDecided = errors.New("every edit and feedback item must be approved or rejected first")
	ErrNoThreadRef   = errors.New("no thread reference available to continue the pipeline")
	ErrNoNextStage   = errors.New("no editor stages remain, generate the final output instead")
)

// BuildContinueRequest prepares the follow-up request for the next stage.
// threadRef overrides the one held in s when non-empty.
func BuildContinueRequest(s State, threadRef string) (revision.ContinueRequest, error) {
	if s.Continuation.IsLastStage {
		return revision.ContinueRequest{}, ErrNoNextStage
	}
	if threadRef == "" {
		threadRef = s.Continuation.ThreadRef
	}
	if threadRef == "" {
		return revision.ContinueRequest{}, ErrNoThreadRef
	}
	if !s.Ledger.AllDecided() {
		return revision.ContinueRequest{}, ErrNotAllDecided
	}

	decisions := s.Ledger.Decisions(false)
	acceptAll, rejectAll := uniform(decisions)
	return revision.ContinueRequest{
		ThreadRef:      threadRef,
		ParagraphEdits: s.Ledger.Paragraphs(),
		Decisions:      decisions,
		AcceptAll:      acceptAll,
		RejectAll:      rejectAll,
	}, nil
}

// BuildFinalizeRequest prepares the request that merges the ledger into the
// final article. The original content is rebuilt from the ledger when it was
// not kept.
func BuildFinalizeRequest(s State, includeQualityChecks bool) (revision.FinalizeRequest, error) {
	if !s.Ledger.AllDecided() {
		return revision.FinalizeRequest{}, ErrNotAllDecided
	}

	original := s.OriginalContent
	if original == "" {
		original = s.Ledger.ReconstructOriginal()
	}

	return revision.FinalizeRequest{
		OriginalContent:      original,
		ParagraphEdits:       s.Ledger.Paragraphs(),
		Decisions:            s.Ledger.Decisions(true),
		IncludeQualityChecks: includeQualityChecks,
		IncludeCopyCheck:     s.HasCopyStage(),
	}, nil
}

func uniform(decisions []ledger.ParagraphDecision) (acceptAll, rejectAll bool) {
	if len(decisions) == 0 {
		return false, false
	}
	acceptAll, rejectAll = true, true
	for _, d := range decisions {
		if d.Approved {
			rejectAll = false
		} else {
			acceptAll = false
		}
	}
	return acceptAll, rejectAll
}
