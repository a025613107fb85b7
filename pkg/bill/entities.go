package bill

import "time"

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon,omitempty"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type DebtStatus string

const (
	DebtStatusOpen DebtStatus = "open"
	DebtStatusPaid DebtStatus = "paid"
)

// Debt is one debtor's share of a bill. Settlement happens on-chain; the
// store only mirrors the outcome.
type Debt struct {
	Debtor   string     `json:"debtor"`
	Amount   uint64     `json:"amount"`
	Status   DebtStatus `json:"status"`
	TxDigest string     `json:"txDigest,omitempty"`
}

type Bill struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	Title     string    `json:"title"`
	Creditor  string    `json:"creditor"`
	Debts     []Debt    `json:"debts"`
	CreatedAt time.Time `json:"createdAt"`
}
