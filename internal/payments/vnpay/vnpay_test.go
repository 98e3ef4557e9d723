package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdt/aurora-backend/pkg/config"
)

func testConfig() config.VNPayConfig {
	return config.VNPayConfig{
		TmnCode:      "AURORA01",
		HashSecret:   "topsecretsigningkey",
		PayURL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:    "https://shop.example.com/payments/vnpay/return",
		Version:      "2.1.0",
		ExpireIn:     15 * time.Minute,
		ExpiredCodes: []string{"11", "15"},
	}
}

func signValues(t *testing.T, secret string, values url.Values) string {
	t.Helper()
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonicalQuery(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestBuildPayURLCarriesSignedParams(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	raw, err := gw.BuildPayURL(PayRequest{
		TxnRef:    "ORD123-1",
		Amount:    800_000,
		IPAddr:    "203.0.113.7",
		CreatedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	query := parsed.Query()

	assert.Equal(t, "AURORA01", query.Get("vnp_TmnCode"))
	assert.Equal(t, "80000000", query.Get("vnp_Amount"))
	assert.Equal(t, "ORD123-1", query.Get("vnp_TxnRef"))
	assert.Equal(t, "20250314093000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20250314094500", query.Get("vnp_ExpireDate"))

	signature := query.Get("vnp_SecureHash")
	require.NotEmpty(t, signature)

	query.Del("vnp_SecureHash")
	assert.Equal(t, signValues(t, "topsecretsigningkey", query), signature)
}

func buildReturn(t *testing.T, secret string, overrides map[string]string) url.Values {
	t.Helper()
	values := url.Values{}
	values.Set("vnp_TxnRef", "ORD123-1")
	values.Set("vnp_Amount", "80000000")
	values.Set("vnp_ResponseCode", "00")
	values.Set("vnp_TransactionStatus", "00")
	values.Set("vnp_BankCode", "NCB")
	for key, val := range overrides {
		values.Set(key, val)
	}
	values.Set("vnp_SecureHash", signValues(t, secret, values))
	return values
}

func TestParseReturnAcceptsValidSignature(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	ret := gw.ParseReturn(buildReturn(t, "topsecretsigningkey", nil))

	assert.True(t, ret.SignatureValid)
	assert.Equal(t, "ORD123-1", ret.TxnRef)
	assert.Equal(t, int64(800_000), ret.Amount)
	assert.Equal(t, "00", ret.ResponseCode)
}

func TestParseReturnRejectsTamperedAmount(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	values := buildReturn(t, "topsecretsigningkey", nil)
	values.Set("vnp_Amount", "1000000")

	ret := gw.ParseReturn(values)
	assert.False(t, ret.SignatureValid)
}

func TestParseReturnRejectsWrongSecret(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	ret := gw.ParseReturn(buildReturn(t, "someotherkey", nil))
	assert.False(t, ret.SignatureValid)
}

func TestParseReturnToleratesMissingFields(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	ret := gw.ParseReturn(url.Values{})
	assert.False(t, ret.SignatureValid)
	assert.Empty(t, ret.TxnRef)
}

func TestOutcomeMapping(t *testing.T) {
	gw, err := New(testConfig())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, gw.Outcome("00"))
	assert.Equal(t, OutcomeExpired, gw.Outcome("11"))
	assert.Equal(t, OutcomeExpired, gw.Outcome("15"))
	assert.Equal(t, OutcomeDeclined, gw.Outcome("24"))
	assert.Equal(t, OutcomeDeclined, gw.Outcome("99"))
}

func TestNewTrimsExpiredCodeEntries(t *testing.T) {
	cfg := testConfig()
	cfg.ExpiredCodes = []string{" 11 ", "", "15"}

	gw, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, OutcomeExpired, gw.Outcome("11"))
	assert.Equal(t, OutcomeExpired, gw.Outcome("15"))
	assert.Equal(t, OutcomeDeclined, gw.Outcome(""))
}

func TestNewRejectsMissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.HashSecret = ""
	_, err := New(cfg)
	assert.Error(t, err)
}
