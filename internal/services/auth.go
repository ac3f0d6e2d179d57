package services

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"payment-webhooks/internal/models"
)

// CredentialVerifier checks the Basic credentials Payme sends.
// Only the password is compared, the login is ignored.
type CredentialVerifier struct {
	secret []byte
}

// NewCredentialVerifier 创建凭证验证器
func NewCredentialVerifier(secret string) *CredentialVerifier {
	return &CredentialVerifier{secret: []byte(secret)}
}

// Verify validates an Authorization header value
func (v *CredentialVerifier) Verify(header string) error {
	if header == "" {
		return newCallbackError(ErrAuth, "Missing authentication credentials")
	}

	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "basic") {
		return newCallbackError(ErrAuth, "Invalid authentication format")
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return newCallbackError(ErrAuth, "Invalid authentication format")
	}

	_, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return newCallbackError(ErrAuth, "Invalid authentication format")
	}

	if len(v.secret) == 0 || subtle.ConstantTimeCompare([]byte(password), v.secret) != 1 {
		return newCallbackError(ErrAuth, "Invalid merchant key")
	}
	return nil
}

// ClickSignatureVerifier checks the service id and md5 sign_string of Click callbacks
type ClickSignatureVerifier struct {
	serviceID string
	secret    string
}

// NewClickSignatureVerifier 创建签名验证器
func NewClickSignatureVerifier(serviceID, secret string) *ClickSignatureVerifier {
	return &ClickSignatureVerifier{serviceID: serviceID, secret: secret}
}

// Verify validates req. Fields are signed as received, without normalization.
func (v *ClickSignatureVerifier) Verify(req *models.ClickRequest) error {
	if strings.TrimSpace(req.ServiceID) != v.serviceID {
		return newCallbackError(ErrAuth, "Invalid service ID")
	}
	if v.secret == "" || req.SignString == "" {
		return newCallbackError(ErrAuth, "Invalid signature")
	}

	expected := v.Sign(req)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(req.SignString)), []byte(expected)) != 1 {
		return newCallbackError(ErrAuth, "Invalid signature")
	}
	return nil
}

// Sign computes the hex md5 signature for req
func (v *ClickSignatureVerifier) Sign(req *models.ClickRequest) string {
	var b strings.Builder
	b.WriteString(req.ClickTransID)
	b.WriteString(req.ServiceID)
	b.WriteString(v.secret)
	b.WriteString(req.MerchantTransID)
	b.WriteString(req.Amount)
	b.WriteString(req.Action)
	b.WriteString(req.SignTime)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
