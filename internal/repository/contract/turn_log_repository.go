package contract

import (
	"context"

	"ai-command-arbiter/internal/entity"
	"ai-command-arbiter/internal/repository/specification"
)

type TurnLogRepository interface {
	Create(ctx context.Context, log *entity.TurnLog) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TurnLog, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TurnLog, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
