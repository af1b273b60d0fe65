// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"context"
	"log/slog"

	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// SendAction is the builtin plans call to message other agents:
// .send(Receivers, Force, Body).
const SendAction = ".send"

// sendAction submits one message per receiver and returns without waiting
// for delivery. A force that is not an atom makes the call a no-op.
func (b *Bridge) sendAction(ctx context.Context, _ engine.Agent, call *term.Term, intention *engine.Intention) error {
	scope := engine.ScopeOf(intention)
	receivers, err := recipients(term.Freeze(call.Args[0], scope))
	if err != nil {
		return err
	}
	ilf, ok := term.Freeze(call.Args[1], scope).(*term.Term)
	if !ok || !ilf.IsAtom() {
		return nil
	}
	body := term.Render(term.Freeze(call.Args[2], scope))
	for _, to := range receivers {
		msg := transport.NewMessage(b.name, []string{to}, body).WithForce(ilf.Functor)
		b.submit(ctx, msg)
	}
	return nil
}

func recipients(v term.Value) ([]string, error) {
	switch x := v.(type) {
	case term.String:
		return []string{string(x)}, nil
	case *term.Term:
		if x.IsAtom() {
			return []string{x.Functor}, nil
		}
		return []string{term.Render(x)}, nil
	case term.Tuple:
		out := make([]string, 0, len(x))
		for _, item := range x {
			names, err := recipients(item)
			if err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
		return out, nil
	case term.Var:
		return nil, errors.Newf(errors.CodeEngine, "%s receiver %s is unbound", SendAction, string(x))
	default:
		return []string{term.Unquoted(x)}, nil
	}
}

func (b *Bridge) submit(ctx context.Context, msg transport.Message) {
	if b.lifecycle.Err() != nil {
		b.logger.WarnContext(ctx, "bridge.send.dropped",
			slog.String("to", msg.To[0]),
			slog.String("reason", "bridge closed"))
		return
	}
	// The send outlives the step that issued it but not the bridge.
	sendCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	release := context.AfterFunc(b.lifecycle, cancel)

	b.sends.Add(1)
	go func() {
		defer b.sends.Done()
		defer release()
		defer cancel()
		err := b.sendRetry.Do(sendCtx, func(ctx context.Context) error {
			return b.mailbox.Send(ctx, msg)
		})
		force := msg.Force()
		b.metrics.RecordSend(sendCtx, b.name, force, err)
		payload := map[string]any{
			"message_id": msg.ID,
			"to":         msg.To[0],
			"force":      force,
		}
		if err != nil {
			payload["error"] = err.Error()
			b.logger.WarnContext(sendCtx, "bridge.send.failed",
				slog.String("to", msg.To[0]),
				slog.String("force", force),
				slog.String("error", err.Error()))
		}
		b.emitter.Emit(sendCtx, core.NewEvent(sendCtx, core.EventMessageSent, b.name, payload))
	}()
}
