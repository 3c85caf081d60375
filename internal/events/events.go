// Package events publishes order lifecycle events to a message broker.
package events

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// Encode renders e as a JSON object.
func Encode(e order.Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("type")
	w.Str(string(e.Type))
	w.FieldStart("orderId")
	w.Str(e.OrderID.String())
	w.FieldStart("orderNumber")
	w.Str(e.Number)
	w.FieldStart("userId")
	w.Str(e.UserID.String())
	w.FieldStart("status")
	w.Str(string(e.Status))
	if e.PrevStatus != "" {
		w.FieldStart("previousStatus")
		w.Str(string(e.PrevStatus))
	}
	w.FieldStart("totalAmount")
	w.Str(e.Total.StringFixed(2))
	w.FieldStart("occurredAt")
	w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.ObjEnd()
	return w.Bytes()
}

// Decode parses an event produced by Encode. Unknown fields are skipped.
func Decode(data []byte) (order.Event, error) {
	var e order.Event
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		switch string(key) {
		case "type":
			e.Type = order.EventType(v)
		case "orderId":
			e.OrderID, err = uuid.Parse(v)
		case "orderNumber":
			e.Number = v
		case "userId":
			e.UserID, err = uuid.Parse(v)
		case "status":
			e.Status = order.Status(v)
		case "previousStatus":
			e.PrevStatus = order.Status(v)
		case "totalAmount":
			e.Total, err = decimal.NewFromString(v)
		case "occurredAt":
			e.OccurredAt, err = time.Parse(time.RFC3339Nano, v)
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return order.Event{}, errors.Wrap(err, "decode event")
	}
	return e, nil
}
