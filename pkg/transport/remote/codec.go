// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// Struct field names of an encoded message.
const (
	fieldID       = "id"
	fieldSender   = "sender"
	fieldTo       = "to"
	fieldBody     = "body"
	fieldThread   = "thread"
	fieldMetadata = "metadata"
)

// ToStruct encodes msg for the wire.
func ToStruct(msg transport.Message) (*structpb.Struct, error) {
	to := make([]any, len(msg.To))
	for i, name := range msg.To {
		to[i] = name
	}
	meta := make(map[string]any, len(msg.Metadata))
	for k, v := range msg.Metadata {
		meta[k] = v
	}
	s, err := structpb.NewStruct(map[string]any{
		fieldID:       msg.ID,
		fieldSender:   msg.Sender,
		fieldTo:       to,
		fieldBody:     msg.Body,
		fieldThread:   msg.Thread,
		fieldMetadata: meta,
	})
	if err != nil {
		return nil, errors.New(errors.CodeTransport, "encode message", err).WithContext("message_id", msg.ID)
	}
	return s, nil
}

// FromStruct decodes a wire message. Sender, recipients and body are
// required; unknown fields are ignored.
func FromStruct(s *structpb.Struct) (transport.Message, error) {
	if s == nil {
		return transport.Message{}, errors.New(errors.CodeInvalidInput, "empty message", nil)
	}
	fields := s.GetFields()
	msg := transport.Message{
		ID:       fields[fieldID].GetStringValue(),
		Sender:   fields[fieldSender].GetStringValue(),
		Body:     fields[fieldBody].GetStringValue(),
		Thread:   fields[fieldThread].GetStringValue(),
		Metadata: make(map[string]string),
	}
	for _, v := range fields[fieldTo].GetListValue().GetValues() {
		if name := v.GetStringValue(); name != "" {
			msg.To = append(msg.To, name)
		}
	}
	for k, v := range fields[fieldMetadata].GetStructValue().GetFields() {
		msg.Metadata[k] = v.GetStringValue()
	}

	switch {
	case msg.Sender == "":
		return msg, errors.New(errors.CodeInvalidInput, "message has no sender", nil)
	case len(msg.To) == 0:
		return msg, errors.New(errors.CodeInvalidInput, "message has no recipients", nil)
	case msg.Body == "":
		return msg, errors.New(errors.CodeInvalidInput, "message has no body", nil)
	}
	return msg, nil
}
