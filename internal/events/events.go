// Package events publishes the store's domain events to a broker.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys.
const (
	RKOrderCreated     = "order.created"
	RKStockIncremented = "stock.incremented"
)

// Event is a message with a routing key and a partitioning key.
type Event interface {
	RoutingKey() string
	Key() string
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type OrderCreated struct {
	OrderID    string          `json:"order_id"`
	BillNumber string          `json:"bill_number"`
	Items      []OrderItemEvt  `json:"items"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

type OrderItemEvt struct {
	ProductID string          `json:"product_id"`
	Qty       int64           `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func (OrderCreated) RoutingKey() string { return RKOrderCreated }
func (e OrderCreated) Key() string      { return e.BillNumber }

type StockIncremented struct {
	ProductID string    `json:"product_id"`
	Added     int64     `json:"added"`
	NewStock  int64     `json:"new_stock"`
	At        time.Time `json:"at"`
}

func (StockIncremented) RoutingKey() string { return RKStockIncremented }
func (e StockIncremented) Key() string      { return e.ProductID }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type Options struct {
	Driver      string // none, amqp or kafka
	AMQPURL     string
	Exchange    string
	KafkaBroker string
	KafkaTopic  string
}

// Open returns the publisher selected by o.Driver.
func Open(o Options) (Publisher, error) {
	switch o.Driver {
	case "", "none":
		return Nop{}, nil
	case "amqp":
		p, err := NewAMQPPublisher(o.AMQPURL, o.Exchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		return NewKafkaPublisher(o.KafkaBroker, o.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", o.Driver)
	}
}
