// Package applenotify parses App Store server notifications (v2) that the
// app backend forwards into the validation endpoint. The JWS payload is
// verified against Apple's root certificate before any field is trusted.
package applenotify

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt"
)

const appleRootCAG3RootPem = `-----BEGIN CERTIFICATE-----
MIICQzCCAcmgAwIBAgIILcX8iNLFS5UwCgYIKoZIzj0EAwMwZzEbMBkGA1UEAwwS
QXBwbGUgUm9vdCBDQSAtIEczMSYwJAYDVQQLDB1BcHBsZSBDZXJ0aWZpY2F0aW9u
IEF1dGhvcml0eTETMBEGA1UECgwKQXBwbGUgSW5jLjELMAkGA1UEBhMCVVMwHhcN
MTQwNDMwMTgxOTA2WhcNMzkwNDMwMTgxOTA2WjBnMRswGQYDVQQDDBJBcHBsZSBS
b290IENBIC0gRzMxJjAkBgNVBAsMHUFwcGxlIENlcnRpZmljYXRpb24gQXV0aG9y
aXR5MRMwEQYDVQQKDApBcHBsZSBJbmMuMQswCQYDVQQGEwJVUzB2MBAGByqGSM49
AgEGBSuBBAAiA2IABJjpLz1AcqTtkyJygRMc3RCV8cWjTnHcFBbZDuWmBSp3ZHtf
TjjTuxxEtX/1H7YyYl3J6YRbTzBPEVoA/VhYDKX1DyxNB0cTddqXl5dvMVztK517
IDvYuVTZXpmkOlEKMaNCMEAwHQYDVR0OBBYEFLuw3qFYM4iapIqZ3r6966/ayySr
MA8GA1UdEwEB/wQFMAMBAf8wDgYDVR0PAQH/BAQDAgEGMAoGCCqGSM49BAMDA2gA
MGUCMQCD6cHEFl4aXTQY2e3v9GwOAEZLuN+yRhHFD/3meoyhpmvOwgPUnPWTxnS4
at+qIxUCMG1mihDK1A3UT82NQz60imOlM27jbdoXt2QfyFMm+YhidDkLF1vLUagM
6BgD56KyKA==
-----END CERTIFICATE-----`

type notificationHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// NotificationData is the signed data block of a v2 notification.
type NotificationData struct {
	AppAppleID            int64  `json:"appAppleId"`
	BundleID              string `json:"bundleId"`
	Environment           string `json:"environment"`
	SignedTransactionInfo string `json:"signedTransactionInfo"`
	SignedRenewalInfo     string `json:"signedRenewalInfo"`
}

// NotificationPayload is the outer signed payload.
type NotificationPayload struct {
	jwt.StandardClaims
	NotificationType string           `json:"notificationType"`
	Subtype          string           `json:"subtype"`
	NotificationUUID string           `json:"notificationUUID"`
	Data             NotificationData `json:"data"`
}

// TransactionInfo is the signed transaction inside a notification.
type TransactionInfo struct {
	jwt.StandardClaims
	ProductID             string `json:"productId"`
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	PurchaseDate          int64  `json:"purchaseDate"`
	ExpiresDate           int64  `json:"expiresDate"`
	RevocationDate        int64  `json:"revocationDate"`
	RevocationReason      *int   `json:"revocationReason"`
	Environment           string `json:"environment"`
	Type                  string `json:"type"`
}

// RenewalInfo is the signed renewal status inside a notification.
type RenewalInfo struct {
	jwt.StandardClaims
	ProductID           string `json:"productId"`
	AutoRenewProductID  string `json:"autoRenewProductId"`
	AutoRenewStatus     int    `json:"autoRenewStatus"`
	ExpirationIntent    int    `json:"expirationIntent"`
	GracePeriodExpires  int64  `json:"gracePeriodExpiresDate"`
	IsInBillingRetry    *bool  `json:"isInBillingRetryPeriod"`
	RenewalDate         int64  `json:"renewalDate"`
	OriginalTransaction string `json:"originalTransactionId"`
}

// Notification is a parsed, signature-verified server notification.
type Notification struct {
	IsValid            bool
	IsTestNotification bool
	IsSandbox          bool
	Payload            *NotificationPayload
	TransactionInfo    *TransactionInfo
	RenewalInfo        *RenewalInfo

	appleRootCert string
}

func New(payload string) (*Notification, error) {
	n := &Notification{appleRootCert: appleRootCAG3RootPem}
	if err := n.parseJWTSignedPayload(payload); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notification) extractHeaderByIndex(payload string, index int) ([]byte, error) {
	payloadArr := strings.Split(payload, ".")
	if len(payloadArr) < 2 {
		return nil, errors.New("invalid JWS payload")
	}

	headerByte, err := base64.RawStdEncoding.DecodeString(payloadArr[0])
	if err != nil {
		return nil, err
	}

	var header notificationHeader
	if err := json.Unmarshal(headerByte, &header); err != nil {
		return nil, err
	}
	if index >= len(header.X5c) {
		return nil, errors.New("x5c chain shorter than expected")
	}

	certByte, err := base64.StdEncoding.DecodeString(header.X5c[index])
	if err != nil {
		return nil, err
	}

	return certByte, nil
}

func (n *Notification) verifyCertificate(certByte []byte, intermediateCert []byte) error {
	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM([]byte(n.appleRootCert)); !ok {
		return errors.New("root certificate couldn't be parsed")
	}

	interCert, err := x509.ParseCertificate(intermediateCert)
	if err != nil {
		return errors.New("intermediate certificate couldn't be parsed")
	}
	intermediate := x509.NewCertPool()
	intermediate.AddCert(interCert)

	cert, err := x509.ParseCertificate(certByte)
	if err != nil {
		return err
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediate,
	}
	if _, err := cert.Verify(opts); err != nil {
		return err
	}

	return nil
}

func (n *Notification) extractPublicKeyFromPayload(payload string) (*ecdsa.PublicKey, error) {
	certStr, err := n.extractHeaderByIndex(payload, 0)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(certStr)
	if err != nil {
		return nil, err
	}

	switch pk := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		return pk, nil
	default:
		return nil, errors.New("appstore public key must be of type ecdsa.PublicKey")
	}
}

func (n *Notification) parseJWTSignedPayload(payload string) error {
	rootCertStr, err := n.extractHeaderByIndex(payload, 2)
	if err != nil {
		return err
	}

	intermediateCertStr, err := n.extractHeaderByIndex(payload, 1)
	if err != nil {
		return err
	}

	if err = n.verifyCertificate(rootCertStr, intermediateCertStr); err != nil {
		return err
	}

	notificationPayload := &NotificationPayload{}
	_, err = jwt.ParseWithClaims(payload, notificationPayload, func(token *jwt.Token) (interface{}, error) {
		return n.extractPublicKeyFromPayload(payload)
	})
	if err != nil {
		return err
	}
	n.Payload = notificationPayload
	n.IsTestNotification = notificationPayload.NotificationType == "TEST"
	n.IsSandbox = notificationPayload.Data.Environment == "Sandbox"

	if n.IsTestNotification {
		n.IsValid = true
		return nil
	}

	transactionInfo := &TransactionInfo{}
	signed := n.Payload.Data.SignedTransactionInfo
	_, err = jwt.ParseWithClaims(signed, transactionInfo, func(token *jwt.Token) (interface{}, error) {
		return n.extractPublicKeyFromPayload(signed)
	})
	if err != nil {
		return err
	}
	n.TransactionInfo = transactionInfo

	if n.Payload.Data.SignedRenewalInfo != "" {
		renewalInfo := &RenewalInfo{}
		signed = n.Payload.Data.SignedRenewalInfo
		_, err = jwt.ParseWithClaims(signed, renewalInfo, func(token *jwt.Token) (interface{}, error) {
			return n.extractPublicKeyFromPayload(signed)
		})
		if err != nil {
			return err
		}
		n.RenewalInfo = renewalInfo
	}

	n.IsValid = true
	return nil
}
