package models

import (
	"fmt"
	"slices"
	"strings"
)

// Legacy rows use mixed casing and several names for the same concept
// ('success' vs 'COMPLETED', 'PAYOUT' vs 'mentor_payout'). These functions map
// every known spelling onto the canonical enums.

var txStatusAliases = map[string]TransactionStatus{
	"success":        TxSuccess,
	"succeeded":      TxSuccess,
	"completed":      TxSuccess,
	"complete":       TxSuccess,
	"paid":           TxSuccess,
	"pending":        TxPending,
	"processing":     TxPending,
	"failed":         TxFailed,
	"failure":        TxFailed,
	"payment_failed": TxFailed,
	"rejected":       TxFailed,
	"cancelled":      TxFailed,
	"canceled":       TxFailed,
}

var payoutStatusAliases = map[string]PayoutStatus{
	"pending":                  PayoutPending,
	"approved_pending_payment": PayoutApprovedPendingPayment,
	"approved":                 PayoutApprovedPendingPayment,
	"paid":                     PayoutPaid,
	"completed":                PayoutPaid,
	"success":                  PayoutPaid,
	"rejected":                 PayoutRejected,
	"payment_failed":           PayoutPaymentFailed,
	"failed":                   PayoutPaymentFailed,
}

var txTypeAliases = map[string]TransactionType{
	"topup":               TxTopUp,
	"top_up":              TxTopUp,
	"deposit":             TxTopUp,
	"payout":              TxPayout,
	"mentor_payout":       TxPayout,
	"provider_payout":     TxPayout,
	"withdrawal":          TxPayout,
	"refund":              TxRefund,
	"subscription":        TxSubscription,
	"provider_commission": TxProviderCommission,
	"commission":          TxProviderCommission,
	"adjustment":          TxAdjustment,
}

// NormalizeTransactionStatus maps a stored status onto its canonical value.
func NormalizeTransactionStatus(s string) (TransactionStatus, error) {
	if v, ok := txStatusAliases[key(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// NormalizeTransactionType maps a stored type onto its canonical value.
func NormalizeTransactionType(s string) (TransactionType, error) {
	if v, ok := txTypeAliases[key(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// NormalizePayoutStatus accepts lowercase and legacy spellings of payout states.
func NormalizePayoutStatus(s string) (PayoutStatus, error) {
	if v, ok := payoutStatusAliases[key(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown payout status %q", s)
}

// TransactionStatusSpellings lists every normalized spelling (see StatusKeySQL)
// that means s, sorted.
func TransactionStatusSpellings(s TransactionStatus) []string {
	return spellings(txStatusAliases, s)
}

// PayoutStatusSpellings lists every normalized spelling that means s, sorted.
func PayoutStatusSpellings(s PayoutStatus) []string {
	return spellings(payoutStatusAliases, s)
}

func spellings[T comparable](aliases map[string]T, v T) []string {
	var out []string
	for k, canon := range aliases {
		if canon == v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// StatusKeySQL is the SQL form of key: compare it against the spellings
// above with = ANY.
func StatusKeySQL(column string) string {
	return "replace(lower(trim(" + column + ")), '-', '_')"
}

func key(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}
