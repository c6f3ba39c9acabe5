package handler

import (
	"encoding/json"

	"github.com/zoff-tech/go-projection/pkg/event"
)

func decodeFact[T any](env event.Envelope) (*T, error) {
	var fact T
	if err := json.Unmarshal(env.Payload, &fact); err != nil {
		return nil, &event.MalformedPayloadError{EventType: env.EventType, Err: err}
	}
	return &fact, nil
}
