package validationlog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tarotware/paywall/internal/models"
	"github.com/tarotware/paywall/pkg/logctx"
	"github.com/tarotware/paywall/pkg/tool"
)

// Service writes the boundary audit log. Saves are best-effort: a failed
// audit row must never fail the validation call it describes.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

func (s *Service) Save(ctx context.Context, entry *models.ValidationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to save validation log", "err", err, "transaction_id", entry.TransactionID)
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
