package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"disparos/internal/core"
)

// SummaryRow is one aggregate as carried on the queue.
type SummaryRow struct {
	Date    string          `json:"date"`
	Time    string          `json:"time"`
	Partner string          `json:"partner"`
	Product string          `json:"product"`
	Count   int             `json:"count"`
	Channel string          `json:"channel"`
	Cost    decimal.Decimal `json:"cost"`
}

// AppendRequestMessage asks the worker to append one run's summary to the store.
// The worker plans the append itself, against the store as it is when the
// message is handled.
type AppendRequestMessage struct {
	RunID     string       `json:"run_id"`
	Source    string       `json:"source,omitempty"`
	Header    []string     `json:"header"`
	Rows      []SummaryRow `json:"rows"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewAppendRequestMessage(runID, source string, header []string, records []core.AggregateRecord) *AppendRequestMessage {
	rows := make([]SummaryRow, len(records))
	for i, r := range records {
		rows[i] = SummaryRow{
			Date:    r.DateKey,
			Time:    r.TimeKey,
			Partner: r.Partner,
			Product: r.Product,
			Count:   r.Count,
			Channel: r.Channel,
			Cost:    r.Cost,
		}
	}
	return &AppendRequestMessage{
		RunID:     runID,
		Source:    source,
		Header:    append([]string(nil), header...),
		Rows:      rows,
		Timestamp: time.Now(),
	}
}

// Records converts the carried rows back to aggregates.
func (m *AppendRequestMessage) Records() []core.AggregateRecord {
	out := make([]core.AggregateRecord, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = core.AggregateRecord{
			DateKey: r.Date,
			TimeKey: r.Time,
			Partner: r.Partner,
			Product: r.Product,
			Count:   r.Count,
			Channel: r.Channel,
			Cost:    r.Cost,
		}
	}
	return out
}

func (m *AppendRequestMessage) Validate() error {
	if m.RunID == "" {
		return errors.New("append request without run id")
	}
	if len(m.Rows) == 0 {
		return errors.New("append request without rows")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *AppendRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AppendRequestMessageFromJSON decodes and validates a message.
func AppendRequestMessageFromJSON(data []byte) (*AppendRequestMessage, error) {
	var msg AppendRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
