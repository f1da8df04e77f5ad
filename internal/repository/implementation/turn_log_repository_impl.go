package implementation

import (
	"context"
	"errors"

	"ai-command-arbiter/internal/entity"
	"ai-command-arbiter/internal/mapper"
	"ai-command-arbiter/internal/model"
	"ai-command-arbiter/internal/repository/contract"
	"ai-command-arbiter/internal/repository/specification"

	"gorm.io/gorm"
)

type TurnLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TurnLogMapper
}

func NewTurnLogRepository(db *gorm.DB) contract.TurnLogRepository {
	return &TurnLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewTurnLogMapper(),
	}
}

func (r *TurnLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TurnLogRepositoryImpl) Create(ctx context.Context, log *entity.TurnLog) error {
	m, err := r.mapper.ToModel(log)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *TurnLogRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TurnLog, error) {
	var m model.TurnLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TurnLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TurnLog, error) {
	var models []*model.TurnLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *TurnLogRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.TurnLog{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
