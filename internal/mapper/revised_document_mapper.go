package mapper

import (
	"encoding/json"
	"fmt"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/model"
	"ai-editorial-be/pkg/ledger"

	"gorm.io/datatypes"
)

type RevisedDocumentMapper struct{}

func NewRevisedDocumentMapper() *RevisedDocumentMapper {
	return &RevisedDocumentMapper{}
}

func (m *RevisedDocumentMapper) ToEntity(d *model.RevisedDocument) (*entity.RevisedDocument, error) {
	if d == nil {
		return nil, nil
	}

	var paragraphs []ledger.ParagraphEdit
	if len(d.Paragraphs) > 0 {
		if err := json.Unmarshal(d.Paragraphs, &paragraphs); err != nil {
			return nil, fmt.Errorf("decode paragraphs of document %s: %w", d.Id, err)
		}
	}

	return &entity.RevisedDocument{
		Id:              d.Id,
		SessionId:       d.SessionId,
		OwnerId:         d.OwnerId,
		StageIds:        []string(d.StageIds),
		OriginalContent: d.OriginalContent,
		FinalDocument:   d.FinalDocument,
		Paragraphs:      paragraphs,
		CreatedAt:       d.CreatedAt,
	}, nil
}

func (m *RevisedDocumentMapper) ToModel(d *entity.RevisedDocument) (*model.RevisedDocument, error) {
	if d == nil {
		return nil, nil
	}

	paragraphs, err := json.Marshal(ledger.New(d.Paragraphs))
	if err != nil {
		return nil, fmt.Errorf("encode paragraphs of document %s: %w", d.Id, err)
	}

	return &model.RevisedDocument{
		Id:              d.Id,
		SessionId:       d.SessionId,
		OwnerId:         d.OwnerId,
		StageIds:        datatypes.JSONSlice[string](d.StageIds),
		OriginalContent: d.OriginalContent,
		FinalDocument:   d.FinalDocument,
		Paragraphs:      datatypes.JSON(paragraphs),
		CreatedAt:       d.CreatedAt,
	}, nil
}

func (m *RevisedDocumentMapper) ToEntities(models []*model.RevisedDocument) ([]*entity.RevisedDocument, error) {
	out := make([]*entity.RevisedDocument, 0, len(models))
	for _, d := range models {
		e, err := m.ToEntity(d)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
