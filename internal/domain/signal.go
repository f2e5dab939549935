package domain

// SignalProposal is the shape of a trade signal handed to the engine by the
// AI generation pipeline. The engine treats the generator as an external
// collaborator: a proposal is only a suggestion until it is turned into a
// tracked Position.
type SignalProposal struct {
	Symbol     string   `json:"symbol"`
	Direction  string   `json:"direction"` // "buy"/"long" or "sell"/"short"
	EntryPrice float64  `json:"entry_price"`
	Size       float64  `json:"size"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}
