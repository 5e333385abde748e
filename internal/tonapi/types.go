package tonapi

// Event represents a TonAPI event
type Event struct {
	EventID   string   `json:"event_id"`
	Timestamp int64    `json:"timestamp"`
	Actions   []Action `json:"actions"`
	IsScam    bool     `json:"is_scam"`
}

// Action represents an action within an event
type Action struct {
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	TonTransfer *TonTransfer `json:"TonTransfer,omitempty"`
}

// TonTransfer represents a TON transfer action
type TonTransfer struct {
	Sender    Account `json:"sender"`
	Recipient Account `json:"recipient"`
	Amount    int64   `json:"amount"` // in nanoTON
	Comment   string  `json:"comment,omitempty"`
}

// Account represents an account/wallet
type Account struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	IsScam   bool   `json:"is_scam,omitempty"`
	IsWallet bool   `json:"is_wallet,omitempty"`
}

// EventsResponse is the response from events endpoint
type EventsResponse struct {
	Events []Event `json:"events"`
}
