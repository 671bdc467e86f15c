package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/scheduler"
	"github.com/tarotware/paywall/pkg/response"
	"github.com/tarotware/paywall/pkg/types"

	"github.com/gin-gonic/gin"
)

type allowanceResponse struct {
	Kind    types.UsageKind `json:"kind"`
	Allowed bool            `json:"allowed"`
}

// @Summary      Get entitlement
// @Description  Returns the current entitlement record, the first-run default when nothing was ever purchased.
// @Tags         Entitlement
// @Produce      json
// @Success      200  {object}  handlers.RespEntitlement
// @Router       /api/v1/entitlement [get]
func ApiGetEntitlement(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.GetEntitlement(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// @Summary      Stream entitlement changes
// @Description  Server-sent event stream; one "entitlement" event per change until the client disconnects.
// @Tags         Entitlement
// @Produce      text/event-stream
// @Success      200
// @Router       /api/v1/entitlement/events [get]
func ApiEntitlementEvents(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := svc.Notifier().Subscribe()
		defer cancel()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case change, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("entitlement", change)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

// @Summary      Refresh entitlement
// @Description  Runs the scheduled entitlement check immediately (foreground trigger) and returns the resulting record.
// @Tags         Entitlement
// @Produce      json
// @Success      200  {object}  handlers.RespEntitlement
// @Router       /api/v1/entitlement/refresh [post]
func ApiRefreshEntitlement(sched *scheduler.Scheduler, svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sched.CheckNow(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		rec, err := svc.GetEntitlement(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// @Summary      Check usage allowance
// @Description  Reports whether a new resource of the kind (session, journal_entry) may be created under the free-tier caps.
// @Tags         Usage
// @Produce      json
// @Param        kind path string true "Usage kind"
// @Success      200  {object}  handlers.RespAllowance
// @Router       /api/v1/usage/{kind}/allowance [get]
func ApiCheckAllowance(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := types.UsageKind(c.Param("kind"))
		allowed, err := svc.CheckUsageLimit(c.Request.Context(), kind)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(allowanceResponse{Kind: kind, Allowed: allowed}))
	}
}

// @Summary      Record usage
// @Description  Bumps the usage counter for the kind after a resource was created.
// @Tags         Usage
// @Produce      json
// @Param        kind path string true "Usage kind"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/usage/{kind} [post]
func ApiRecordUsage(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := types.UsageKind(c.Param("kind"))
		if err := svc.RecordUsage(c.Request.Context(), kind); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Export backup
// @Description  Snapshots all stored records into one versioned portable document.
// @Tags         Backup
// @Produce      json
// @Success      200  {object}  handlers.RespBackup
// @Router       /api/v1/backup/export [get]
func ApiExportBackup(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := svc.ExportAllData(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(doc))
	}
}

// @Summary      Import backup
// @Description  Validates a backup document and destructively replaces the local dataset with it.
// @Tags         Backup
// @Accept       json
// @Produce      json
// @Param        request body entitlement.BackupDocument true "Backup document"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/backup/import [post]
func ApiImportBackup(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc entitlement.BackupDocument
		if err := c.ShouldBindJSON(&doc); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := svc.ImportAllData(c.Request.Context(), &doc); err != nil {
			code := response.APIResponseCodeError
			if errors.Is(err, entitlement.ErrBackupVersion) || errors.Is(err, entitlement.ErrBackupShape) {
				code = response.APIResponseCodeBadRequest
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Simulate entitlement
// @Description  Force-sets the entitlement record without store interaction. Rejected outside dev builds.
// @Tags         Dev
// @Accept       json
// @Produce      json
// @Param        request body types.EntitlementRecord true "Entitlement record to apply"
// @Success      200  {object}  handlers.RespEntitlement
// @Router       /api/v1/dev/simulate [post]
func ApiSimulateEntitlement(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rec types.EntitlementRecord
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := svc.SimulateEntitlement(c.Request.Context(), &rec); err != nil {
			code := response.APIResponseCodeError
			if errors.Is(err, entitlement.ErrSimulationDisabled) {
				code = response.APIResponseCodeForbidden
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&rec))
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, svc *entitlement.Service, sched *scheduler.Scheduler) {
	r.GET("/entitlement", ApiGetEntitlement(svc))
	r.GET("/entitlement/events", ApiEntitlementEvents(svc))
	r.POST("/entitlement/refresh", ApiRefreshEntitlement(sched, svc))
	r.GET("/usage/:kind/allowance", ApiCheckAllowance(svc))
	r.POST("/usage/:kind", ApiRecordUsage(svc))
	r.GET("/backup/export", ApiExportBackup(svc))
	r.POST("/backup/import", ApiImportBackup(svc))
	r.POST("/dev/simulate", ApiSimulateEntitlement(svc))
}
