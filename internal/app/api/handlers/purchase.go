package handlers

import (
	"errors"
	"net/http"

	"github.com/tarotware/paywall/internal/app/service/orchestrator"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/response"
	"github.com/tarotware/paywall/pkg/types"

	"github.com/gin-gonic/gin"
)

type purchaseRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type restoreResponse struct {
	Restored bool `json:"restored"`
}

// purchaseErrorCode maps the failure taxonomy onto response codes. The
// cancelled code matters most: the client suppresses its error dialog
// for it.
func purchaseErrorCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, orchestrator.ErrUserCancelled):
		return response.APIResponseCodeCancelled
	case errors.Is(err, orchestrator.ErrPurchaseInProgress):
		return response.APIResponseCodeInProgress
	case errors.Is(err, orchestrator.ErrStoreUnavailable), errors.Is(err, orchestrator.ErrDisposed):
		return response.APIResponseCodeUnavailable
	case errors.Is(err, orchestrator.ErrItemUnavailable):
		return response.APIResponseCodeBadRequest
	default:
		return response.APIResponseCodeError
	}
}

// @Summary      Purchase a subscription
// @Description  Starts a purchase for the given product id and blocks until the purchase pipeline completes, fails or times out.
// @Tags         Purchase
// @Accept       json
// @Produce      json
// @Param        request body handlers.purchaseRequest true "Purchase request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/purchase [post]
func ApiPurchase(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req purchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		if err := orch.Purchase(c.Request.Context(), req.ProductID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](purchaseErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Restore purchases
// @Description  Replays previously completed purchases through validation and reports whether anything was restored.
// @Tags         Purchase
// @Produce      json
// @Success      200  {object}  handlers.RespRestore
// @Router       /api/v1/purchase/restore [post]
func ApiRestorePurchases(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		restored, err := orch.RestorePurchases(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](purchaseErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(restoreResponse{Restored: restored}))
	}
}

// @Summary      List subscription products
// @Description  Fetches the configured subscription products from the store. Returns an empty list when the store has nothing to offer.
// @Tags         Purchase
// @Produce      json
// @Success      200  {object}  handlers.RespProducts
// @Router       /api/v1/products [get]
func ApiListProducts(orch *orchestrator.Orchestrator, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := orch.LoadProducts(c.Request.Context(), cfg.ProductIDs())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](purchaseErrorCode(err), err.Error()))
			return
		}
		if products == nil {
			products = []*types.ProductDescriptor{}
		}
		c.JSON(http.StatusOK, response.OKT(products))
	}
}

func RegisterPurchaseRoutes(r gin.IRouter, orch *orchestrator.Orchestrator, cfg *config.Config) {
	r.POST("/purchase", ApiPurchase(orch))
	r.POST("/purchase/restore", ApiRestorePurchases(orch))
	r.GET("/products", ApiListProducts(orch, cfg))
}
