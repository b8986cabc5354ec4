// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

// Package transport carries sync protocol messages over a websocket. Each
// message travels as a JSON envelope {kind, body} so both sides can dispatch
// on the tag before touching the payload.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/syncspace/spacesync/models"
)

type envelope struct {
	Kind models.MessageKind `json:"kind"`
	Body json.RawMessage    `json:"body,omitempty"`
}

// EncodeMessage wraps a protocol message in its tagged envelope.
func EncodeMessage(msg models.Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", msg.Kind(), err)
	}
	data, err := json.Marshal(envelope{Kind: msg.Kind(), Body: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msg.Kind(), err)
	}
	return data, nil
}

// DecodeMessage unwraps a tagged envelope into its concrete message type.
// An envelope with an unrecognized kind fails with ErrUnknownMessageKind.
func DecodeMessage(data []byte) (models.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg models.Message
	switch env.Kind {
	case models.KindHello:
		msg = &models.Hello{}
	case models.KindWelcome:
		msg = &models.Welcome{}
	case models.KindBye:
		msg = &models.Bye{}
	case models.KindKeepAlive:
		msg = &models.KeepAlive{}
	case models.KindAsk:
		msg = &models.Ask{}
	case models.KindDidAsk:
		msg = &models.DidAsk{}
	case models.KindPull:
		msg = &models.Pull{}
	case models.KindDidPull:
		msg = &models.DidPull{}
	case models.KindPush:
		msg = &models.Push{}
	case models.KindUpdate:
		msg = &models.Update{}
	case models.KindDeviceInfo:
		msg = &models.DeviceInfo{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageKind, env.Kind)
	}

	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, msg); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", env.Kind, err)
		}
	}
	return deref(msg), nil
}

// deref returns the value behind the decoded pointer so receivers can type
// switch on the same concrete types senders construct.
func deref(msg models.Message) models.Message {
	switch m := msg.(type) {
	case *models.Hello:
		return *m
	case *models.Welcome:
		return *m
	case *models.Bye:
		return *m
	case *models.KeepAlive:
		return *m
	case *models.Ask:
		return *m
	case *models.DidAsk:
		return *m
	case *models.Pull:
		return *m
	case *models.DidPull:
		return *m
	case *models.Push:
		return *m
	case *models.Update:
		return *m
	case *models.DeviceInfo:
		return *m
	default:
		return msg
	}
}
