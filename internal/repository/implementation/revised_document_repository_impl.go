package implementation

import (
	"context"
	"errors"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/mapper"
	"ai-editorial-be/internal/model"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/internal/repository/specification"

	"gorm.io/gorm"
)

type RevisedDocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RevisedDocumentMapper
}

func NewRevisedDocumentRepository(db *gorm.DB) contract.RevisedDocumentRepository {
	return &RevisedDocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewRevisedDocumentMapper(),
	}
}

func (r *RevisedDocumentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RevisedDocumentRepositoryImpl) Create(ctx context.Context, doc *entity.RevisedDocument) error {
	m, err := r.mapper.ToModel(doc)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	created, err := r.mapper.ToEntity(m)
	if err != nil {
		return err
	}
	*doc = *created
	return nil
}

func (r *RevisedDocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RevisedDocument, error) {
	var m model.RevisedDocument
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *RevisedDocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RevisedDocument, error) {
	var models []*model.RevisedDocument
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models)
}

func (r *RevisedDocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.RevisedDocument{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
