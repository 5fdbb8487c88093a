package trace

import (
	"errors"
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// ErrNoMatch reports that no node in the tree corresponds to the protocol
// invocation. A missing trace match is an expected, tolerated outcome;
// callers skip the event rather than failing the batch.
var ErrNoMatch = errors.New("trace: no matching call")

const selectorLen = 10 // "0x" + 4 bytes

// SelectorSet holds the candidate function selectors of one protocol
// entrypoint family, keyed by the lowercased 4-byte prefix.
type SelectorSet map[string]struct{}

func NewSelectorSet(selectors ...string) SelectorSet {
	set := make(SelectorSet, len(selectors))
	for _, s := range selectors {
		set[strings.ToLower(s)] = struct{}{}
	}
	return set
}

func (s SelectorSet) matches(input string) bool {
	if len(input) < selectorLen {
		return false
	}
	_, ok := s[strings.ToLower(input[:selectorLen])]
	return ok
}

// matchStrategy is one step of the matching policy. Strategies are tried
// in a fixed order; the first hit wins.
type matchStrategy func(root *model.TraceCall, exchange string, selectors SelectorSet, occurrence int) *model.TraceCall

var strategies = []matchStrategy{
	matchRoot,
	matchNested,
	matchAnySelector,
}

// FindProtocolCall locates the trace node for the protocol invocation of
// exchange. occurrence is the running count of previously matched trades
// in the same transaction for the same exchange, so batched fills resolve
// to successive nodes in traversal order.
func FindProtocolCall(root *model.TraceCall, exchange string, selectors SelectorSet, occurrence int) (*model.TraceCall, error) {
	if root == nil {
		return nil, ErrNoMatch
	}
	exchange = strings.ToLower(exchange)
	for _, strategy := range strategies {
		if node := strategy(root, exchange, selectors, occurrence); node != nil {
			return node, nil
		}
	}
	return nil, ErrNoMatch
}

// matchRoot checks whether the root itself is the exchange call. Both a
// direct call (to == exchange) and a delegatecall (from == exchange) count,
// since some protocols execute via delegation.
func matchRoot(root *model.TraceCall, exchange string, selectors SelectorSet, _ int) *model.TraceCall {
	if !selectors.matches(root.Input) {
		return nil
	}
	if strings.ToLower(root.To) == exchange || strings.ToLower(root.From) == exchange {
		return root
	}
	return nil
}

// matchNested searches direct and nested child calls (root excluded) for a
// CALL to the exchange with a matching selector, returning the Nth
// occurrence in depth-first order.
func matchNested(root *model.TraceCall, exchange string, selectors SelectorSet, occurrence int) *model.TraceCall {
	seen := 0
	var dfs func(node *model.TraceCall) *model.TraceCall
	dfs = func(node *model.TraceCall) *model.TraceCall {
		if node == nil {
			return nil
		}
		if strings.EqualFold(node.Type, "call") &&
			strings.ToLower(node.To) == exchange &&
			selectors.matches(node.Input) {
			if seen == occurrence {
				return node
			}
			seen++
		}
		for _, child := range node.Calls {
			if found := dfs(child); found != nil {
				return found
			}
		}
		return nil
	}
	for _, child := range root.Calls {
		if found := dfs(child); found != nil {
			return found
		}
	}
	return nil
}

// matchAnySelector is the exhaustive fallback: an unrestricted depth-first
// search over the whole tree for any node whose input matches a selector,
// ignoring the exchange-address constraint. This deliberately trades
// precision for recall (selector collisions across unrelated contracts can
// produce false positives) against the cost of losing the event entirely.
func matchAnySelector(root *model.TraceCall, _ string, selectors SelectorSet, _ int) *model.TraceCall {
	var dfs func(node *model.TraceCall) *model.TraceCall
	dfs = func(node *model.TraceCall) *model.TraceCall {
		if node == nil {
			return nil
		}
		if selectors.matches(node.Input) {
			return node
		}
		for _, child := range node.Calls {
			if found := dfs(child); found != nil {
				return found
			}
		}
		return nil
	}
	return dfs(root)
}
