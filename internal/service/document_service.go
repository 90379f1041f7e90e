package service

import (
	"context"
	"errors"

	"ai-editorial-be/internal/dto"
	"ai-editorial-be/internal/mapper"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/internal/repository/specification"
)

// ErrArchiveDisabled is returned when no document store is configured.
var ErrArchiveDisabled = errors.New("document archive is not configured")

const (
	defaultDocumentLimit = 20
	maxDocumentLimit     = 100
)

type IDocumentService interface {
	List(ctx context.Context, ownerId string, page, limit int) (*dto.RevisedDocumentListResponse, error)
}

type documentService struct {
	documents contract.RevisedDocumentRepository
}

// NewDocumentService lists archived final documents. documents may be nil.
func NewDocumentService(documents contract.RevisedDocumentRepository) IDocumentService {
	return &documentService{documents: documents}
}

func (s *documentService) List(ctx context.Context, ownerId string, page, limit int) (*dto.RevisedDocumentListResponse, error) {
	if s.documents == nil {
		return nil, ErrArchiveDisabled
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultDocumentLimit
	}
	if limit > maxDocumentLimit {
		limit = maxDocumentLimit
	}

	byOwner := specification.ByOwner{OwnerId: ownerId}

	total, err := s.documents.Count(ctx, byOwner)
	if err != nil {
		return nil, err
	}

	docs, err := s.documents.FindAll(ctx,
		byOwner,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.RevisedDocumentListResponse{
		Documents: make([]dto.RevisedDocumentResponse, 0, len(docs)),
		Total:     total,
		Page:      page,
		Limit:     limit,
	}
	for _, d := range docs {
		res.Documents = append(res.Documents, mapper.ToRevisedDocumentResponse(d))
	}
	return res, nil
}
