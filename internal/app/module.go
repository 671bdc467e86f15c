package app

import (
	"time"

	"github.com/tarotware/paywall/internal/app/api/server"
	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/orchestrator"
	"github.com/tarotware/paywall/internal/app/service/scheduler"
	"github.com/tarotware/paywall/internal/app/service/validationlog"
	"github.com/tarotware/paywall/internal/app/service/validator"
	"github.com/tarotware/paywall/internal/platform/cache"
	"github.com/tarotware/paywall/internal/platform/db"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	server.Module,
	entitlement.Module,
	validationlog.Module,
	validator.Module,
	orchestrator.Module,
	scheduler.Module,
)
