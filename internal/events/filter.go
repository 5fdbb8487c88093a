package events

import (
	"strings"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// FilterByCollection narrows a batch to one contract of interest and
// returns a new batch, leaving the input untouched. Directly-relevant
// events (transfers, approvals, fills, mint/fill infos on the focus
// contract) are kept, together with companion signals — ft transfers and
// swaps from the same transactions — which carry the payment side of a
// kept NFT event.
//
// Cancels and order/maker status updates pass through unfiltered: the
// storage layer only mutates pre-existing order rows, so non-focus entries
// are safe no-ops. Permits are dropped unconditionally in focus mode.
func FilterByCollection(data *OnChainData, focusContract string) *OnChainData {
	focus := strings.ToLower(focusContract)
	out := New()
	relevantTxs := make(map[string]struct{})

	keepTx := func(p model.BaseEventParams) {
		relevantTxs[p.TxHash] = struct{}{}
	}

	for _, e := range data.NftTransferEvents {
		if strings.ToLower(e.BaseEventParams.Address) == focus {
			keepTx(e.BaseEventParams)
			out.NftTransferEvents = append(out.NftTransferEvents, e)
		}
	}
	for _, e := range data.NftApprovalEvents {
		if strings.ToLower(e.BaseEventParams.Address) == focus {
			keepTx(e.BaseEventParams)
			out.NftApprovalEvents = append(out.NftApprovalEvents, e)
		}
	}

	keepFills := func(in []model.FillEvent) []model.FillEvent {
		var kept []model.FillEvent
		for _, e := range in {
			if strings.ToLower(e.Contract) == focus {
				keepTx(e.BaseEventParams)
				kept = append(kept, e)
			}
		}
		return kept
	}
	out.FillEvents = keepFills(data.FillEvents)
	out.FillEventsPartial = keepFills(data.FillEventsPartial)
	out.FillEventsOnChain = keepFills(data.FillEventsOnChain)

	for _, e := range data.MintInfos {
		if strings.ToLower(e.Contract) == focus {
			out.MintInfos = append(out.MintInfos, e)
		}
	}
	for _, e := range data.Mints {
		if strings.ToLower(e.Contract) == focus {
			out.Mints = append(out.Mints, e)
		}
	}
	for _, e := range data.MintComments {
		if strings.ToLower(e.Token) == focus {
			out.MintComments = append(out.MintComments, e)
		}
	}
	for _, e := range data.FillInfos {
		if strings.ToLower(e.Contract) == focus {
			out.FillInfos = append(out.FillInfos, e)
		}
	}

	// Companion signals: same transaction as an explicitly kept item.
	for _, e := range data.FtTransferEvents {
		if _, ok := relevantTxs[e.BaseEventParams.TxHash]; ok {
			out.FtTransferEvents = append(out.FtTransferEvents, e)
		}
	}
	for _, e := range data.Swaps {
		if _, ok := relevantTxs[e.BaseEventParams.TxHash]; ok {
			out.Swaps = append(out.Swaps, e)
		}
	}

	// Pass-throughs: cancel and order/maker status updates only touch
	// existing rows, so focus deployments behave identically to wide mode.
	out.CancelEvents = append(out.CancelEvents, data.CancelEvents...)
	out.CancelEventsOnChain = append(out.CancelEventsOnChain, data.CancelEventsOnChain...)
	out.BulkCancelEvents = append(out.BulkCancelEvents, data.BulkCancelEvents...)
	out.NonceCancelEvents = append(out.NonceCancelEvents, data.NonceCancelEvents...)
	out.OrderInfos = append(out.OrderInfos, data.OrderInfos...)
	out.MakerInfos = append(out.MakerInfos, data.MakerInfos...)
	out.Orders = append(out.Orders, data.Orders...)

	// TODO: scope permits by contract instead of dropping them all.
	out.PermitInfos = nil

	return out
}
