// Package events holds the per-unit accumulator of typed on-chain event
// batches and the focus-mode filter applied before persistence.
package events

import "github.com/d347h-eth/indexer-public/internal/domain/model"

// OnChainData accumulates every event kind produced while scanning one
// block range. A unit is created empty, appended to by protocol handlers,
// consumed exactly once by the persistence pipeline, then discarded.
type OnChainData struct {
	// Fills
	FillEvents        []model.FillEvent
	FillEventsPartial []model.FillEvent
	FillEventsOnChain []model.FillEvent

	// Cancels
	CancelEvents        []model.CancelEvent
	CancelEventsOnChain []model.CancelEvent
	BulkCancelEvents    []model.BulkCancelEvent
	NonceCancelEvents   []model.NonceCancelEvent

	// Approvals. Ft approvals are handled elsewhere: they can decrease
	// implicitly when the spender transfers from the owner's balance,
	// without any event getting emitted.
	NftApprovalEvents []model.NftApprovalEvent

	// Transfers
	FtTransferEvents  []model.FtTransferEvent
	NftTransferEvents []model.NftTransferEvent

	// Mints and last sales
	FillInfos    []model.FillInfo
	MintInfos    []model.MintInfo
	Mints        []model.MintDetails
	MintComments []model.MintComment

	// Order revalidation
	OrderInfos []model.OrderInfo
	MakerInfos []model.MakerInfo

	// Permit revalidation
	PermitInfos []model.PermitInfo

	// Swaps
	Swaps []model.Swap

	// Orders picked up for ingestion
	Orders []model.GenericOrderInfo
}

// New returns an empty accumulator for one processing unit.
func New() *OnChainData {
	return &OnChainData{}
}

// AllFills concatenates the three fill variants in persistence order.
func (d *OnChainData) AllFills() []model.FillEvent {
	out := make([]model.FillEvent, 0, len(d.FillEvents)+len(d.FillEventsPartial)+len(d.FillEventsOnChain))
	out = append(out, d.FillEvents...)
	out = append(out, d.FillEventsPartial...)
	out = append(out, d.FillEventsOnChain...)
	return out
}
