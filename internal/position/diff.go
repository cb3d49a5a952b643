// internal/position/diff.go
package position

import (
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// Diff compares the last accepted snapshot of a trader with a freshly fetched one.
//
// When seen is false the trader has no accepted snapshot yet and the outcome is
// OutcomeInit without any comparison. Otherwise positions are paired greedily:
// every current position, in list order, takes the first still unmatched prior
// position with the same (symbol, side). Duplicated identities inside one snapshot
// are therefore resolved by list order, which keeps the output deterministic.
func Diff(previous domain.Snapshot, seen bool, current domain.Snapshot) domain.Outcome {
	if !seen {
		return domain.Outcome{Kind: domain.OutcomeInit}
	}

	remaining := previous.Clone()
	var result domain.DiffResult

	for _, p := range current {
		idx := firstSameType(remaining, p)
		if idx < 0 {
			result.Added = append(result.Added, p)
			continue
		}
		cp := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		if !cp.SamePosition(p) {
			result.Changed = append(result.Changed, domain.Change{From: cp, To: p})
		}
	}
	if len(remaining) > 0 {
		result.Removed = remaining
	}

	if result.Empty() {
		return domain.Outcome{Kind: domain.OutcomeNoChange}
	}
	return domain.Outcome{Kind: domain.OutcomeChanged, Diff: result}
}

func firstSameType(list domain.Snapshot, p domain.Position) int {
	for i := range list {
		if list[i].SameType(p) {
			return i
		}
	}
	return -1
}
