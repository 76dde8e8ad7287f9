package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"exam-access/internal/domain"
	"exam-access/internal/domain/ports/adapter"
)

var (
	externalIDKeys = []string{"externalId", "externalreference", "utilityref"}
	statusKeys     = []string{"transactionstatus", "transactionStatus", "status"}
	referenceKeys  = []string{"transactionId", "transid", "reference", "mnoreference"}
)

// ParseCallback turns an AzamPay callback body into a CallbackNotice. Field
// names vary between AzamPay products, so each value is looked up under
// several keys. The raw body is kept for audit.
func ParseCallback(body []byte) (adapter.CallbackNotice, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return adapter.CallbackNotice{}, fmt.Errorf("%w: malformed body", domain.ErrMissingExternalID)
	}
	n := adapter.CallbackNotice{
		ExternalID: firstString(fields, externalIDKeys),
		Status:     firstString(fields, statusKeys),
		Reference:  firstString(fields, referenceKeys),
		Raw:        json.RawMessage(body),
	}
	if n.ExternalID == "" {
		return adapter.CallbackNotice{}, domain.ErrMissingExternalID
	}
	return n, nil
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// VerifyCallbackSignature checks a hex HMAC-SHA256 of the body. An empty
// secret disables the check.
func VerifyCallbackSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
