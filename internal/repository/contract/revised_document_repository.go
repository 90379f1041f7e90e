package contract

import (
	"context"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/repository/specification"
)

type RevisedDocumentRepository interface {
	Create(ctx context.Context, doc *entity.RevisedDocument) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RevisedDocument, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RevisedDocument, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
