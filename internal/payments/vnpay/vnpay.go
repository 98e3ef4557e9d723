// Package vnpay implements the redirect-based gateway protocol: signed
// pay-URL construction outbound and signature/response-code interpretation
// on the return callback.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/phamdt/aurora-backend/pkg/config"
)

const (
	paramVersion     = "vnp_Version"
	paramCommand     = "vnp_Command"
	paramTmnCode     = "vnp_TmnCode"
	paramAmount      = "vnp_Amount"
	paramCreateDate  = "vnp_CreateDate"
	paramExpireDate  = "vnp_ExpireDate"
	paramCurrCode    = "vnp_CurrCode"
	paramIPAddr      = "vnp_IpAddr"
	paramLocale      = "vnp_Locale"
	paramOrderInfo   = "vnp_OrderInfo"
	paramOrderType   = "vnp_OrderType"
	paramReturnURL   = "vnp_ReturnUrl"
	paramTxnRef      = "vnp_TxnRef"
	paramBankCode    = "vnp_BankCode"
	paramRespCode    = "vnp_ResponseCode"
	paramTxnStatus   = "vnp_TransactionStatus"
	paramSecureHash  = "vnp_SecureHash"
	paramSecureHType = "vnp_SecureHashType"

	// ResponseCodeSuccess is the gateway's code for a captured payment.
	ResponseCodeSuccess = "00"

	timeLayout = "20060102150405"
)

// Outcome is the business interpretation of a return callback.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDeclined Outcome = "declined"
	OutcomeExpired  Outcome = "expired"
)

// PayRequest describes one payment attempt to redirect the customer to.
type PayRequest struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	IPAddr    string
	CreatedAt time.Time
}

// Return is the parsed callback query string.
type Return struct {
	TxnRef            string
	Amount            int64
	ResponseCode      string
	TransactionStatus string
	BankCode          string
	SignatureValid    bool
}

// Gateway signs pay URLs and validates return callbacks.
type Gateway struct {
	cfg          config.VNPayConfig
	expiredCodes map[string]struct{}
}

// New builds a gateway from configuration. The expired-code set is
// configuration-driven because the split between "expired" and plain
// "declined" varies across gateway versions.
func New(cfg config.VNPayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" {
		return nil, fmt.Errorf("vnpay tmn code required")
	}
	if strings.TrimSpace(cfg.HashSecret) == "" {
		return nil, fmt.Errorf("vnpay hash secret required")
	}
	if strings.TrimSpace(cfg.PayURL) == "" {
		return nil, fmt.Errorf("vnpay pay url required")
	}
	if strings.TrimSpace(cfg.ReturnURL) == "" {
		return nil, fmt.Errorf("vnpay return url required")
	}

	expired := map[string]struct{}{}
	for _, code := range cfg.ExpiredCodes {
		code = strings.TrimSpace(code)
		if code != "" {
			expired[code] = struct{}{}
		}
	}
	return &Gateway{cfg: cfg, expiredCodes: expired}, nil
}

// BuildPayURL produces the signed redirect URL for one payment attempt.
// Amounts are multiplied by 100 on the wire per the gateway convention.
func (g *Gateway) BuildPayURL(req PayRequest) (string, error) {
	if strings.TrimSpace(req.TxnRef) == "" {
		return "", fmt.Errorf("txn ref required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	ip := req.IPAddr
	if ip == "" {
		ip = "127.0.0.1"
	}
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + req.TxnRef
	}

	params := url.Values{}
	params.Set(paramVersion, g.cfg.Version)
	params.Set(paramCommand, "pay")
	params.Set(paramTmnCode, g.cfg.TmnCode)
	params.Set(paramAmount, fmt.Sprintf("%d", req.Amount*100))
	params.Set(paramCurrCode, "VND")
	params.Set(paramTxnRef, req.TxnRef)
	params.Set(paramOrderInfo, orderInfo)
	params.Set(paramOrderType, "other")
	params.Set(paramLocale, "vn")
	params.Set(paramReturnURL, g.cfg.ReturnURL)
	params.Set(paramIPAddr, ip)
	params.Set(paramCreateDate, createdAt.Format(timeLayout))
	params.Set(paramExpireDate, createdAt.Add(g.cfg.ExpireIn).Format(timeLayout))

	query := canonicalQuery(params)
	signed := query + "&" + paramSecureHash + "=" + g.sign(query)
	return g.cfg.PayURL + "?" + signed, nil
}

// ParseReturn validates the callback signature and extracts the fields the
// verifier needs. Unknown or missing fields degrade to an invalid or
// unsuccessful result, never a crash.
func (g *Gateway) ParseReturn(values url.Values) Return {
	ret := Return{
		TxnRef:            values.Get(paramTxnRef),
		ResponseCode:      values.Get(paramRespCode),
		TransactionStatus: values.Get(paramTxnStatus),
		BankCode:          values.Get(paramBankCode),
	}

	if raw := values.Get(paramAmount); raw != "" {
		var wire int64
		if _, err := fmt.Sscanf(raw, "%d", &wire); err == nil {
			ret.Amount = wire / 100
		}
	}

	signature := values.Get(paramSecureHash)
	if signature == "" || ret.TxnRef == "" {
		return ret
	}

	filtered := url.Values{}
	for key, vals := range values {
		if key == paramSecureHash || key == paramSecureHType {
			continue
		}
		for _, v := range vals {
			filtered.Add(key, v)
		}
	}

	expected := g.sign(canonicalQuery(filtered))
	ret.SignatureValid = hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
	return ret
}

// Outcome maps a response code to its business meaning.
func (g *Gateway) Outcome(responseCode string) Outcome {
	if responseCode == ResponseCodeSuccess {
		return OutcomeSuccess
	}
	if _, ok := g.expiredCodes[responseCode]; ok {
		return OutcomeExpired
	}
	return OutcomeDeclined
}

// sign computes the lowercase hex HMAC-SHA512 of the canonical query.
func (g *Gateway) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery sorts keys and query-escapes values the way the gateway
// computes its own hash. Both sides must produce identical bytes.
func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(key)))
	}
	return b.String()
}
