package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"unicode"

	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/ledger"
	"ai-editorial-be/pkg/revision"
)

const stubThreadRef = "sim-thread"

// stubService answers the revision endpoints with deterministic edits, one
// stage per request.
type stubService struct {
	server    *httptest.Server
	catalog   *editor.Catalog
	failStage string

	mu         sync.Mutex
	stages     []string
	next       int
	paragraphs []string
}

func newStubService(catalog *editor.Catalog, failStage string) *stubService {
	s := &stubService{catalog: catalog, failStage: failStage}

	mux := http.NewServeMux()
	mux.HandleFunc("/revise", s.handleStart)
	mux.HandleFunc("/revise/continue", s.handleContinue)
	mux.HandleFunc("/revise/finalize", s.handleFinalize)
	s.server = httptest.NewServer(mux)
	return s
}

func (s *stubService) URL() string { return s.server.URL }

func (s *stubService) Close() { s.server.Close() }

func (s *stubService) handleStart(w http.ResponseWriter, r *http.Request) {
	var req revision.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid start request"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.stages = req.SelectedStageIDs
	s.next = 0
	s.paragraphs = ledger.SplitParagraphs(req.Content)
	s.mu.Unlock()

	s.streamStage(w)
}

func (s *stubService) handleContinue(w http.ResponseWriter, r *http.Request) {
	var req revision.ContinueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid continue request"}`, http.StatusBadRequest)
		return
	}
	if req.ThreadRef != stubThreadRef {
		http.Error(w, `{"detail":"unknown thread"}`, http.StatusNotFound)
		return
	}

	s.mu.Lock()
	s.paragraphs = merge(req.ParagraphEdits, req.Decisions)
	s.mu.Unlock()

	s.streamStage(w)
}

func (s *stubService) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req revision.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid finalize request"}`, http.StatusBadRequest)
		return
	}

	paragraphs := merge(req.ParagraphEdits, req.Decisions)
	blocks := make([]revision.BlockTypeInfo, 0, len(paragraphs))
	for i, p := range req.ParagraphEdits {
		blocks = append(blocks, revision.BlockTypeInfo{Index: i, Type: string(p.BlockType), Level: p.Level})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(revision.FinalizeResponse{
		FinalArticle: strings.Join(paragraphs, "\n\n"),
		BlockTypes:   blocks,
	})
}

// streamStage emits progress, one stage result and the end marker.
func (s *stubService) streamStage(w http.ResponseWriter) {
	s.mu.Lock()
	index := s.next
	s.next++
	total := len(s.stages)
	paragraphs := append([]string(nil), s.paragraphs...)
	var stageID string
	if index < total {
		stageID = s.stages[index]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	emit := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if stageID == "" {
		emit(map[string]any{"type": "stage_error", "stage": "", "error": "no stages remain"})
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}

	emit(map[string]any{
		"type":         "stage_progress",
		"stage":        stageID,
		"stage_index":  index,
		"total_stages": total,
		"message":      s.catalog.DisplayName(stageID) + " is reviewing the document",
	})

	if stageID == s.failStage {
		emit(map[string]any{"type": "stage_error", "stage": stageID, "error": "stub failure requested"})
	}

	edits := make([]map[string]any, 0, len(paragraphs))
	for i, p := range paragraphs {
		edited := tidy(p)
		edit := map[string]any{
			"index":    i,
			"original": p,
			"edited":   edited,
		}
		if edited != p {
			edit["editorial_feedback"] = map[string]any{
				stageID: []map[string]any{{
					"issue":    "Inconsistent spacing, capitalisation or end punctuation",
					"fix":      edited,
					"rule":     "house-style",
					"priority": "low",
				}},
			}
		}
		edits = append(edits, edit)
	}

	emit(map[string]any{
		"type":            "stage_complete",
		"stage":           stageID,
		"stage_index":     index,
		"total_stages":    total,
		"thread_ref":      stubThreadRef,
		"sequential":      true,
		"is_last_stage":   index == total-1,
		"paragraph_edits": edits,
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
}

// merge applies decisions: approved paragraphs take the edit, the rest keep
// their original text.
func merge(edits []ledger.ParagraphEdit, decisions []ledger.ParagraphDecision) []string {
	approved := make(map[int]bool, len(decisions))
	for _, d := range decisions {
		approved[d.Index] = d.Approved
	}
	out := make([]string, 0, len(edits))
	for _, e := range edits {
		if approved[e.Index] {
			out = append(out, e.Edited)
		} else {
			out = append(out, e.Original)
		}
	}
	return out
}

// tidy collapses whitespace, capitalises the first letter and ends prose
// with a full stop.
func tidy(p string) string {
	text := strings.Join(strings.Fields(p), " ")
	if text == "" {
		return p
	}
	if strings.HasPrefix(text, "#") || strings.HasPrefix(text, "- ") || strings.HasPrefix(text, "* ") {
		return text
	}

	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	text = string(runes)

	last := runes[len(runes)-1]
	if !unicode.IsPunct(last) {
		text += "."
	}
	return text
}
