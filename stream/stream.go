// Package stream applies utterances or plans received over a websocket.
// Each message is handled to completion, and answered, before the next one
// is read.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/witanlabs/voicesheet/interpreter"
	"github.com/witanlabs/voicesheet/internal/logging"
	"github.com/witanlabs/voicesheet/plan"
)

// maxMessageBytes bounds a single inbound message.
const maxMessageBytes = 1 << 20

// Planner turns an utterance into a plan. *client.Client implements it.
type Planner interface {
	Plan(ctx context.Context, text string) (plan.Plan, error)
}

// Executor applies a plan. *interpreter.Interpreter implements it.
type Executor interface {
	Execute(ctx context.Context, p plan.Plan) (*interpreter.Result, error)
}

// Message is one inbound request: an utterance to plan, or a ready plan.
type Message struct {
	ID   string          `json:"id"`
	Text string          `json:"text,omitempty"`
	Plan json.RawMessage `json:"plan,omitempty"`
}

// Reply reports the outcome of one Message.
type Reply struct {
	ID      string      `json:"id"`
	OK      bool        `json:"ok"`
	Action  plan.Action `json:"action,omitempty"`
	Target  string      `json:"target,omitempty"`
	Formula string      `json:"formula,omitempty"`
	Skipped bool        `json:"skipped,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Listener consumes a websocket stream of Messages.
type Listener struct {
	URL    string
	Header http.Header

	Planner  Planner // optional; text messages fail without one
	Executor Executor
	Logger   *logging.Logger

	// Applied, when set, runs after each plan that was not skipped, e.g. to
	// save the workbook. Its error is reported in the reply.
	Applied func(res *interpreter.Result) error
}

// Listen dials URL and serves the connection until the peer closes it or
// ctx is done. A normal closure returns nil.
func (l *Listener) Listen(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.URL, &websocket.DialOptions{HTTPHeader: l.Header})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", l.URL, err)
	}
	defer conn.CloseNow()

	l.logger().Info("stream connected", "url", l.URL)
	return l.Serve(ctx, conn)
}

// Serve reads Messages from conn and writes one Reply for each.
func (l *Listener) Serve(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageBytes)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				l.logger().Info("stream closed by peer")
				return nil
			}
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return ctx.Err()
			}
			return fmt.Errorf("reading message: %w", err)
		}

		reply := l.handle(ctx, data)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
	}
}

func (l *Listener) handle(ctx context.Context, data []byte) Reply {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Reply{Error: fmt.Sprintf("decoding message: %v", err)}
	}
	log := l.logger().With("message_id", msg.ID)

	p, err := l.resolve(ctx, msg)
	if err != nil {
		log.Warn("message rejected", "error", err)
		return Reply{ID: msg.ID, Error: err.Error()}
	}

	res, err := l.Executor.Execute(ctx, p)
	if err != nil {
		return Reply{ID: msg.ID, Action: p.Action, Error: err.Error()}
	}
	reply := Reply{
		ID:      msg.ID,
		OK:      true,
		Action:  res.Action,
		Target:  res.Target,
		Formula: res.Formula,
		Skipped: res.Skipped,
	}
	if !res.Skipped && l.Applied != nil {
		if err := l.Applied(res); err != nil {
			log.Error("post-apply hook failed", "error", err)
			reply.OK = false
			reply.Error = err.Error()
		}
	}
	return reply
}

func (l *Listener) resolve(ctx context.Context, msg Message) (plan.Plan, error) {
	if len(msg.Plan) > 0 && string(msg.Plan) != "null" {
		return plan.Decode(msg.Plan)
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return plan.Plan{}, errors.New("message has neither text nor plan")
	}
	if l.Planner == nil {
		return plan.Plan{}, errors.New("no planner configured for text messages")
	}
	return l.Planner.Plan(ctx, text)
}

func (l *Listener) logger() *logging.Logger {
	if l.Logger == nil {
		l.Logger = logging.NopLogger()
	}
	return l.Logger
}
