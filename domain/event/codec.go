package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat-notify/domain"
)

// envelope is the stored/wire shape of a ChangeEvent. Data stays raw
// until the kind is known.
type envelope struct {
	ID         uuid.UUID       `json:"event_id"`
	ChatID     domain.ChatID   `json:"chat_id"`
	Seq        uint64          `json:"seq"`
	GlobalSeq  uint64          `json:"global_seq"`
	Kind       Kind            `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func Encode(e ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		ID:         e.ID,
		ChatID:     e.ChatID,
		Seq:        e.Seq,
		GlobalSeq:  e.GlobalSeq,
		Kind:       e.Kind,
		OccurredAt: e.OccurredAt,
		Data:       data,
	})
}

func Decode(raw []byte) (ChangeEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ChangeEvent{}, err
	}

	payload, err := decodePayload(env.Kind, env.Data)
	if err != nil {
		return ChangeEvent{}, err
	}

	return ChangeEvent{
		ID:         env.ID,
		ChatID:     env.ChatID,
		Seq:        env.Seq,
		GlobalSeq:  env.GlobalSeq,
		Kind:       env.Kind,
		OccurredAt: env.OccurredAt,
		Payload:    payload,
	}, nil
}

func decodePayload(kind Kind, data json.RawMessage) (Payload, error) {
	switch kind {
	case ChatCreated, ChatUpdated, ChatDeleted:
		var p ChatPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case MemberAdded, MemberRemoved:
		var p MemberPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case NameChanged:
		var p NamePayload
		err := json.Unmarshal(data, &p)
		return p, err
	case MessageAdded:
		var p MessagePayload
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
}
