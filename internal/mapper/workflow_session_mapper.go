package mapper

import (
	"ai-editorial-be/internal/dto"
	"ai-editorial-be/internal/entity"
	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/workflow"
)

type WorkflowSessionMapper struct {
	catalog *editor.Catalog
}

func NewWorkflowSessionMapper(catalog *editor.Catalog) *WorkflowSessionMapper {
	return &WorkflowSessionMapper{catalog: catalog}
}

func (m *WorkflowSessionMapper) ToResponse(s *entity.WorkflowSession) *dto.WorkflowSessionResponse {
	if s == nil {
		return nil
	}
	st := s.State

	res := &dto.WorkflowSessionResponse{
		Id:               s.Id,
		Step:             st.Step,
		SelectedStageIds: append([]string{}, st.SelectedStageIDs...),
		CurrentStageId:   st.CurrentStageID,
		HasContent:       st.UploadedContent != "" || st.OriginalContent != "",
		Progress:         append([]workflow.StageProgress{}, st.Progress...),
		Continuation:     st.Continuation,
		Failures:         st.Failures,
		FinalDocument:    st.FinalDocument,
		Revision:         st.Revision,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if !st.Ledger.IsEmpty() {
		review := workflow.ReviewOf(st, m.catalog)
		res.Review = &review
	}
	return res
}

func (m *WorkflowSessionMapper) ToCatalogResponse() *dto.CatalogResponse {
	stages := m.catalog.Stages()
	res := &dto.CatalogResponse{
		Stages: make([]dto.StageResponse, 0, len(stages)),
		Menu:   m.catalog.Menu(),
	}
	for i, s := range stages {
		res.Stages = append(res.Stages, dto.StageResponse{
			Number:    i + 1,
			Id:        s.ID,
			Name:      s.Name,
			Mandatory: s.Mandatory,
		})
	}
	return res
}

func ToRevisedDocumentResponse(d *entity.RevisedDocument) dto.RevisedDocumentResponse {
	return dto.RevisedDocumentResponse{
		Id:              d.Id,
		SessionId:       d.SessionId,
		StageIds:        append([]string{}, d.StageIds...),
		OriginalContent: d.OriginalContent,
		FinalDocument:   d.FinalDocument,
		ParagraphCount:  len(d.Paragraphs),
		CreatedAt:       d.CreatedAt,
	}
}

func ToActivityResponses(entries []entity.ActivityEntry) []dto.ActivityResponse {
	out := make([]dto.ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.ActivityResponse{
			Type:       e.Type,
			Data:       e.Data,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
