package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"xbt_book/internal/domain"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
)

// ErrKeepAlive is returned for the empty frames the stream sends to keep the
// connection open. Callers skip them.
var ErrKeepAlive = errors.New("keep-alive frame")

// sequence accepts both "24352" and 24352.
type sequence string

func (s *sequence) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = sequence(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("sequence %s: %w", n, err)
	}
	*s = sequence(n.String())
	return nil
}

type rawMessage struct {
	Sequence     sequence     `json:"sequence"`
	Asks         *[]Entry     `json:"asks"`
	Bids         *[]Entry     `json:"bids"`
	Timestamp    *int64       `json:"timestamp"`
	CreateUpdate *CreateEntry `json:"create_update"`
	TradeUpdates []TradeEntry `json:"trade_updates"`
	DeleteUpdate *DeleteEntry `json:"delete_update"`
}

// Decode parses one stream frame. A frame carrying both asks and bids is a
// Snapshot, anything else with a sequence is an Update.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) {
		return nil, ErrKeepAlive
	}

	var raw rawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnknownMessage, err)
	}
	if raw.Sequence == "" {
		return nil, fmt.Errorf("%w: missing sequence", domain.ErrUnknownMessage)
	}

	if raw.Asks != nil && raw.Bids != nil {
		return decodeSnapshot(&raw)
	}
	return decodeUpdate(&raw)
}

func decodeSnapshot(raw *rawMessage) (*Snapshot, error) {
	for _, side := range [][]Entry{*raw.Asks, *raw.Bids} {
		for _, e := range side {
			if e.ID == "" {
				return nil, fmt.Errorf("%w: snapshot entry without id", domain.ErrUnknownMessage)
			}
			if err := checkVolume(e.Volume); err != nil {
				return nil, fmt.Errorf("%w: snapshot entry %s: %v", domain.ErrUnknownMessage, e.ID, err)
			}
		}
	}
	return &Snapshot{
		Seq:       string(raw.Sequence),
		Asks:      *raw.Asks,
		Bids:      *raw.Bids,
		Timestamp: raw.Timestamp,
	}, nil
}

func decodeUpdate(raw *rawMessage) (*Update, error) {
	if raw.Timestamp == nil {
		return nil, fmt.Errorf("%w: update %s without timestamp", domain.ErrUnknownMessage, raw.Sequence)
	}
	if c := raw.CreateUpdate; c != nil {
		if c.OrderID == "" || !c.Side.Valid() {
			return nil, fmt.Errorf("%w: malformed create_update in %s", domain.ErrUnknownMessage, raw.Sequence)
		}
		if err := checkVolume(c.Volume); err != nil {
			return nil, fmt.Errorf("%w: create_update in %s: %v", domain.ErrUnknownMessage, raw.Sequence, err)
		}
	}
	for _, tr := range raw.TradeUpdates {
		if tr.OrderID == "" || !tr.Base.IsPositive() {
			return nil, fmt.Errorf("%w: malformed trade_update in %s", domain.ErrUnknownMessage, raw.Sequence)
		}
		if err := checkVolume(tr.Base); err != nil {
			return nil, fmt.Errorf("%w: trade_update in %s: %v", domain.ErrUnknownMessage, raw.Sequence, err)
		}
	}
	if d := raw.DeleteUpdate; d != nil && d.OrderID == "" {
		return nil, fmt.Errorf("%w: malformed delete_update in %s", domain.ErrUnknownMessage, raw.Sequence)
	}
	return &Update{
		Seq:       string(raw.Sequence),
		Timestamp: *raw.Timestamp,
		Create:    raw.CreateUpdate,
		Trades:    raw.TradeUpdates,
		Delete:    raw.DeleteUpdate,
	}, nil
}

// checkVolume rejects volumes the book cannot hold as satoshis.
func checkVolume(v decimal.Decimal) error {
	_, err := quant.FromDecimal(v)
	return err
}
