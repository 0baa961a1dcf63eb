// Package beneficiary encodes requested reward splits into chain
// beneficiaries.
//
// Shares come in as percentages and leave as basis points clamped to
// [1, 10000]. Each recipient appears once: the first occurrence wins and
// later duplicates are ignored. The configured platform recipient is
// appended only when the author did not already list it. The aggregate is
// not checked against 10000 here; the chain enforces the ceiling and callers
// that want to fail early can use Total.
package beneficiary

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/hivepress/internal/bridge"
)

const (
	MinWeight = 1
	MaxWeight = 10000
)

// Default is the configured platform recipient.
type Default struct {
	Account string
	Percent float64
}

// Encode validates reqs and returns the finalized split list, in input
// order, with def appended when applicable.
//
// Returns a VALIDATION error for an empty recipient or a non-numeric share.
func Encode(reqs []bridge.SplitRequest, def *Default) ([]bridge.RewardSplit, error) {
	all := make([]bridge.RewardSplit, 0, len(reqs)+1)
	for i, req := range reqs {
		account := NormalizeAccount(req.Account)
		if account == "" {
			return nil, bridge.NewValidationError("split %d: recipient is empty", i+1)
		}
		pct, err := parsePercent(req.Share)
		if err != nil {
			return nil, bridge.NewValidationError("split %d (%s): share %q is not a number", i+1, account, req.Share)
		}
		all = append(all, bridge.RewardSplit{Account: account, Weight: Weight(pct)})
	}

	if def != nil {
		if account := NormalizeAccount(def.Account); account != "" && def.Percent > 0 {
			all = append(all, bridge.RewardSplit{Account: account, Weight: Weight(def.Percent)})
		}
	}

	// UniqBy keeps the first occurrence, so a listed default recipient wins
	// over the appended one.
	return lo.UniqBy(all, func(s bridge.RewardSplit) string { return s.Account }), nil
}

// Duplicates returns the normalized accounts that appear more than once
// in reqs, in first-seen order.
func Duplicates(reqs []bridge.SplitRequest) []string {
	accounts := lo.FilterMap(reqs, func(r bridge.SplitRequest, _ int) (string, bool) {
		a := NormalizeAccount(r.Account)
		return a, a != ""
	})
	return lo.FindDuplicates(accounts)
}

// Weight converts a percentage to basis points clamped to [1, 10000].
func Weight(percent float64) uint16 {
	bp := math.Round(percent * 100)
	if bp < MinWeight {
		return MinWeight
	}
	if bp > MaxWeight {
		return MaxWeight
	}
	return uint16(bp)
}

// Total sums the weights of splits.
func Total(splits []bridge.RewardSplit) int {
	total := 0
	for _, s := range splits {
		total += int(s.Weight)
	}
	return total
}

// NormalizeAccount trims whitespace and a leading "@" and lower-cases.
func NormalizeAccount(account string) string {
	account = strings.TrimSpace(account)
	account = strings.TrimPrefix(account, "@")
	return strings.ToLower(strings.TrimSpace(account))
}

func parsePercent(share string) (float64, error) {
	share = strings.TrimSuffix(strings.TrimSpace(share), "%")
	pct, err := strconv.ParseFloat(strings.TrimSpace(share), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, strconv.ErrSyntax
	}
	return pct, nil
}
