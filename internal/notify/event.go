// Package notify delivers wallet and result events to live client connections.
//
// Services publish through the Notifier port after their unit of work has
// committed. The Dispatcher queues events and fans them out to sinks: the
// local WebSocket Hub, the Redis relay that feeds the hubs of other
// instances, and the Kafka event stream.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// EventType tags the payload of an Event.
type EventType string

const (
	EventWalletUpdate      EventType = "wallet_update"
	EventTransactionStatus EventType = "transaction_status"
	EventMarketResult      EventType = "market_result"
	EventOptionGameResult  EventType = "option_game_result"
)

// Event is the message pushed to clients. Fields not relevant to Type are omitted.
type Event struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	UserID        int64             `json:"userId,omitempty"`
	Amount        int64             `json:"amount,omitempty"`
	Balance       *int64            `json:"balance,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	TransactionID int64             `json:"transactionId,omitempty"`
	Kind          model.EntryKind   `json:"kind,omitempty"`
	Status        model.EntryStatus `json:"status,omitempty"`
	EntityID      int64             `json:"entityId,omitempty"`
	ResultValue   string            `json:"resultValue,omitempty"`
	WinningTeam   model.Team        `json:"winningTeam,omitempty"`
	At            time.Time         `json:"at"`
}

func newEvent(t EventType) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: t,
		At:   time.Now().UTC(),
	}
}

// WalletUpdate announces a balance change of amount, leaving balance.
func WalletUpdate(userID, amount, balance int64, reason string) Event {
	e := newEvent(EventWalletUpdate)
	e.UserID = userID
	e.Amount = amount
	e.Balance = &balance
	e.Reason = reason
	return e
}

// TransactionStatus announces that a deposit or withdrawal request changed status.
func TransactionStatus(entry *model.LedgerEntry, balance int64) Event {
	e := newEvent(EventTransactionStatus)
	e.UserID = entry.UserID
	e.TransactionID = entry.ID
	e.Kind = entry.Kind
	e.Status = entry.Status
	e.Amount = entry.Amount
	e.Balance = &balance
	return e
}

// MarketResult announces a declared market result.
func MarketResult(marketID int64, result string) Event {
	e := newEvent(EventMarketResult)
	e.EntityID = marketID
	e.ResultValue = result
	return e
}

// OptionGameResult announces a declared option game winner.
func OptionGameResult(gameID int64, winner model.Team) Event {
	e := newEvent(EventOptionGameResult)
	e.EntityID = gameID
	e.WinningTeam = winner
	return e
}
