package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
)

// Sink receives every relayed change. Accepts lets a sink ignore changes it
// has no use for without counting them as published.
type Sink interface {
	Name() string
	Accepts(event realtime.ChangeEvent) bool
	Publish(ctx context.Context, event realtime.ChangeEvent) error
}

// RedisSink fans changes out to the per-table Redis channels the API and
// table terminals subscribe to.
type RedisSink struct {
	publisher realtime.Publisher
}

func NewRedisSink(publisher realtime.Publisher) *RedisSink {
	return &RedisSink{publisher: publisher}
}

func (s *RedisSink) Name() string                      { return "redis" }
func (s *RedisSink) Accepts(realtime.ChangeEvent) bool { return true }

func (s *RedisSink) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	return s.publisher.Publish(ctx, event)
}

type topicPublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// PubSubSink mirrors every change onto a GCP Pub/Sub topic for other sites.
type PubSubSink struct {
	topic topicPublisher
}

func NewPubSubSink(topic topicPublisher) *PubSubSink {
	return &PubSubSink{topic: topic}
}

func (s *PubSubSink) Name() string                      { return "pubsub" }
func (s *PubSubSink) Accepts(realtime.ChangeEvent) bool { return true }

func (s *PubSubSink) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change %s: %w", event.ID, err)
	}
	_, err = s.topic.Publish(ctx, data, map[string]string{
		"change_id":        event.ID.String(),
		"table":            event.Table,
		"type":             string(event.Type),
		"commit_timestamp": event.CommitTimestamp.Format(time.RFC3339Nano),
	})
	return err
}

type ticketPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]any) error
}

const generalStation = "general"

// KitchenTicket is the message kitchen stations consume from RabbitMQ when an
// item is fired.
type KitchenTicket struct {
	ItemID     uuid.UUID  `json:"item_id"`
	OrderID    uuid.UUID  `json:"order_id"`
	TableID    uuid.UUID  `json:"table_id"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	Notes      *string    `json:"notes,omitempty"`
	Station    string     `json:"station"`
	SentAt     time.Time  `json:"sent_at"`
}

type itemRow struct {
	ID              uuid.UUID        `json:"id"`
	OrderID         uuid.UUID        `json:"order_id"`
	TableID         uuid.UUID        `json:"table_id"`
	CategoryID      *uuid.UUID       `json:"category_id"`
	Name            string           `json:"name"`
	Quantity        int              `json:"quantity"`
	Notes           *string          `json:"notes"`
	Status          enums.ItemStatus `json:"status"`
	SentToKitchenAt *time.Time       `json:"sent_to_kitchen_at"`
}

// KitchenSink routes items that were just sent to the kitchen onto the topic
// exchange as kitchen.dine_in.<station>.
type KitchenSink struct {
	tickets ticketPublisher
}

func NewKitchenSink(tickets ticketPublisher) *KitchenSink {
	return &KitchenSink{tickets: tickets}
}

func (s *KitchenSink) Name() string { return "rabbitmq" }

func (s *KitchenSink) Accepts(event realtime.ChangeEvent) bool {
	_, ok := firedItem(event)
	return ok
}

func (s *KitchenSink) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	row, ok := firedItem(event)
	if !ok {
		return nil
	}
	ticket := KitchenTicket{
		ItemID:     row.ID,
		OrderID:    row.OrderID,
		TableID:    row.TableID,
		CategoryID: row.CategoryID,
		Name:       row.Name,
		Quantity:   row.Quantity,
		Notes:      row.Notes,
		Station:    StationFor(row.CategoryID),
		SentAt:     event.CommitTimestamp,
	}
	if row.SentToKitchenAt != nil {
		ticket.SentAt = row.SentToKitchenAt.UTC()
	}
	body, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("marshal kitchen ticket: %w", err)
	}
	return s.tickets.Publish(ctx, "kitchen.dine_in."+ticket.Station, body, map[string]any{
		"change_id": event.ID.String(),
		"order_id":  row.OrderID.String(),
	})
}

// StationFor is the routing segment for an item's category.
func StationFor(categoryID *uuid.UUID) string {
	if categoryID == nil || *categoryID == uuid.Nil {
		return generalStation
	}
	return categoryID.String()
}

// firedItem reports item rows whose status became SENT in this change.
func firedItem(event realtime.ChangeEvent) (itemRow, bool) {
	if event.Table != enums.TableOrderItems || event.Type == enums.ChangeDelete {
		return itemRow{}, false
	}
	var row itemRow
	if err := event.DecodeNew(&row); err != nil || row.Status != enums.ItemStatusSent {
		return itemRow{}, false
	}
	if len(event.Old) > 0 {
		var old itemRow
		if err := event.DecodeOld(&old); err == nil && old.Status == enums.ItemStatusSent {
			return itemRow{}, false
		}
	}
	return row, true
}
