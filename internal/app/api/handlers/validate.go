package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tarotware/paywall/internal/app/service/validationlog"
	"github.com/tarotware/paywall/internal/app/service/validator"
	"github.com/tarotware/paywall/internal/models"
	"github.com/tarotware/paywall/internal/platform/apple/applenotify"
	"github.com/tarotware/paywall/internal/platform/apple/appleiap"
	"github.com/tarotware/paywall/internal/platform/google/playiap"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/logctx"
	"github.com/tarotware/paywall/pkg/response"
	"github.com/tarotware/paywall/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ValidateDeps wires the trusted-boundary endpoints. Store credentials
// (the Apple shared secret, the Play service account) live only behind
// these handlers.
type ValidateDeps struct {
	Cfg       *config.Config
	Log       *zap.SugaredLogger
	Audit     *validationlog.Service
	Validator *validator.Service
}

// @Summary      Validate a receipt
// @Description  Verifies an opaque store receipt against the selected provider and returns the entitlement window verdict. This is the trusted boundary: verification secrets are used here and nowhere else.
// @Tags         Validation
// @Accept       json
// @Produce      json
// @Param        request body types.ValidateRequest true "Validation request"
// @Success      200  {object}  types.ValidationResult
// @Router       /validate [post]
func ApiValidateReceipt(deps ValidateDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.ValidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Provider == "" {
			req.Provider = types.ProviderForPlatform(deps.Cfg.Platform)
		}

		entry := newAuditEntry(c, string(req.Provider), req.TransactionID, &req)

		result, err := verifyWithProvider(c, deps.Cfg, req)
		if err != nil {
			entry.Status = models.ValidationLogStatusHandleFailed
			deps.Audit.Save(c.Request.Context(), entry)
			logctx.FromCtx(c.Request.Context(), deps.Log).Errorw("receipt verification failed",
				"provider", req.Provider, "transaction_id", req.TransactionID, "err", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		entry.Status = models.ValidationLogStatusHandled
		if raw, err := json.Marshal(result); err == nil {
			res := datatypes.JSON(raw)
			entry.Result = &res
		}
		deps.Audit.Save(c.Request.Context(), entry)

		// The boundary client decodes the bare result, no envelope.
		c.JSON(http.StatusOK, result)
	}
}

func verifyWithProvider(c *gin.Context, cfg *config.Config, req types.ValidateRequest) (*types.ValidationResult, error) {
	ctx := c.Request.Context()
	now := time.Now()
	switch req.Provider {
	case types.PaymentProviderGoogle:
		return playiap.Verify(ctx, req.ReceiptPayload, &playiap.Options{
			PackageName:        cfg.GoogleIAP.PackageName,
			ServiceAccountJSON: cfg.GoogleIAP.ServiceAccountJSON,
		}, now)
	default:
		receipt, err := appleiap.Verify(ctx, req.ReceiptPayload, &appleiap.Options{
			BundleID:     cfg.AppleIAP.BundleID,
			SharedSecret: cfg.AppleIAP.SharedSecret,
			Sandbox:      !cfg.AppleIAP.IsProd,
		})
		if err != nil {
			return nil, err
		}
		return receipt.ToValidationResult(req.TransactionID, now), nil
	}
}

// @Summary      App Store server notification
// @Description  Accepts an App Store Server Notification V2 JWS payload, verifies its signature chain and applies the carried transaction state to the entitlement record.
// @Tags         Validation
// @Accept       json
// @Produce      json
// @Param        payload body string true "Signed JWS payload"
// @Success      200  {object}  handlers.RespOK
// @Router       /validate/notification [post]
func ApiAppleNotification(deps ValidateDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		payload := extractSignedPayload(body)

		notif, err := applenotify.New(payload)
		if err != nil {
			logctx.FromCtx(c.Request.Context(), deps.Log).Errorw("failed to parse apple notification", "err", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		entry := newAuditEntry(c, string(types.PaymentProviderApple), "", notif.Payload)
		if notif.TransactionInfo != nil {
			entry.TransactionID = notif.TransactionInfo.TransactionID
		}

		if notif.IsTestNotification {
			entry.Status = models.ValidationLogStatusHandled
			deps.Audit.Save(c.Request.Context(), entry)
			c.JSON(http.StatusOK, response.OKT[any](nil))
			return
		}

		if err := applyNotification(c, deps, notif); err != nil {
			entry.Status = models.ValidationLogStatusHandleFailed
			deps.Audit.Save(c.Request.Context(), entry)
			logctx.FromCtx(c.Request.Context(), deps.Log).Errorw("failed to apply apple notification",
				"type", notif.Payload.NotificationType, "err", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		entry.Status = models.ValidationLogStatusHandled
		deps.Audit.Save(c.Request.Context(), entry)
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// applyNotification reduces a verified notification to an entitlement
// sync. Revoked or expired transactions write non-premium; everything
// else refreshes the expiry window.
func applyNotification(c *gin.Context, deps ValidateDeps, notif *applenotify.Notification) error {
	info := notif.TransactionInfo
	if info == nil {
		// Notifications without transaction info carry nothing applicable.
		return nil
	}

	now := time.Now()
	result := &types.ValidationResult{
		IsValid:     notif.IsValid,
		Environment: types.EnvironmentProduction,
	}
	if notif.IsSandbox {
		result.Environment = types.EnvironmentSandbox
	}
	if info.ExpiresDate > 0 {
		exp := time.UnixMilli(info.ExpiresDate)
		result.ExpirationDate = &exp
		result.IsActive = exp.After(now) && info.RevocationDate == 0
	}

	ref := validator.TransactionRef{
		TransactionID:         info.TransactionID,
		OriginalTransactionID: info.OriginalTransactionID,
	}
	if info.PurchaseDate > 0 {
		purchased := time.UnixMilli(info.PurchaseDate)
		ref.PurchasedAt = &purchased
	}
	return deps.Validator.SyncSubscriptionStatus(c.Request.Context(), result, info.ProductID, ref)
}

// extractSignedPayload accepts both the documented JSON body
// {"signedPayload": "..."} and a raw JWS string.
func extractSignedPayload(body []byte) string {
	var wrapper struct {
		SignedPayload string `json:"signedPayload"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.SignedPayload != "" {
		return wrapper.SignedPayload
	}
	return string(body)
}

func newAuditEntry(c *gin.Context, provider, transactionID string, data any) *models.ValidationLog {
	entry := &models.ValidationLog{
		ProviderID:    provider,
		TransactionID: transactionID,
		TraceID:       c.GetString("traceID"),
		ReceivedAt:    time.Now(),
		Status:        models.ValidationLogStatusReceived,
	}
	if raw, err := json.Marshal(data); err == nil {
		entry.Data = datatypes.JSON(raw)
	}
	return entry
}

func RegisterValidateRoutes(r gin.IRouter, deps ValidateDeps) {
	r.POST("/validate", ApiValidateReceipt(deps))
	r.POST("/validate/notification", ApiAppleNotification(deps))
}
