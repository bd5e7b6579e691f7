package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

const emptyJSON = "{}"

// Serializer encodes event content and headers for storage.
type Serializer interface {
	SerializeContent(content json.RawMessage) (string, error)
	SerializeHeaders(headers es.Headers) (string, error)
	DeserializeHeaders(data []byte) (es.Headers, error)
}

// JSONSerializer stores content and headers as JSON documents.
type JSONSerializer struct{}

// SerializeContent implements Serializer.
// Empty content becomes {}; anything else must be valid JSON.
func (JSONSerializer) SerializeContent(content json.RawMessage) (string, error) {
	if len(content) == 0 {
		return emptyJSON, nil
	}
	if !json.Valid(content) {
		return "", fmt.Errorf("%w: event content is not valid JSON", store.ErrInvalidArgument)
	}
	return string(content), nil
}

// SerializeHeaders implements Serializer.
func (JSONSerializer) SerializeHeaders(headers es.Headers) (string, error) {
	if len(headers) == 0 {
		return emptyJSON, nil
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("failed to serialize headers: %w", err)
	}
	return string(b), nil
}

// DeserializeHeaders implements Serializer.
func (JSONSerializer) DeserializeHeaders(data []byte) (es.Headers, error) {
	headers := es.Headers{}
	if len(data) == 0 {
		return headers, nil
	}
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("failed to deserialize headers: %w", err)
	}
	return headers, nil
}

// serialize builds the row shared by both strategies.
// A nil event id is replaced by a new random one and a zero creation time by now.
func serialize(event es.Event, serializer Serializer, dialect Dialect) (Row, error) {
	if event.AggregateID == "" {
		return Row{}, fmt.Errorf("%w: event %q has no aggregate id", store.ErrInvalidArgument, event.EventType)
	}
	if event.EventType == "" {
		return Row{}, fmt.Errorf("%w: event has no type", store.ErrInvalidArgument)
	}

	content, err := serializer.SerializeContent(event.Content)
	if err != nil {
		return Row{}, err
	}
	headers, err := serializer.SerializeHeaders(event.Headers)
	if err != nil {
		return Row{}, err
	}

	eventID := event.EventID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return Row{
		EventID:          eventID.String(),
		EventType:        event.EventType,
		Content:          content,
		Headers:          headers,
		AggregateID:      event.AggregateID,
		AggregateType:    event.AggregateType,
		AggregateVersion: event.AggregateVersion,
		CreatedAt:        dialect.TimeValue(createdAt),
	}, nil
}
