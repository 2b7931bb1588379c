package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/witanlabs/voicesheet/interpreter"
	"github.com/witanlabs/voicesheet/plan"
	"github.com/witanlabs/voicesheet/workbook"
)

type fakePlanner struct {
	plans map[string]plan.Plan
}

func (f *fakePlanner) Plan(_ context.Context, text string) (plan.Plan, error) {
	p, ok := f.plans[text]
	if !ok {
		return plan.Plan{}, errors.New("planner: Invalid AI response")
	}
	return p, nil
}

// peer starts a websocket server that sends msgs one at a time, collects
// each reply, then closes normally.
func peer(t *testing.T, msgs []string) (url string, replies <-chan []Reply) {
	t.Helper()
	out := make(chan []Reply, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var got []Reply
		for _, m := range msgs {
			if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				t.Errorf("write: %v", err)
				break
			}
			var reply Reply
			if err := wsjson.Read(ctx, conn, &reply); err != nil {
				t.Errorf("read reply: %v", err)
				break
			}
			got = append(got, reply)
		}
		out <- got
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), out
}

func TestListenAppliesMessagesInOrder(t *testing.T) {
	wb := workbook.New()
	t.Cleanup(func() { _ = wb.Close() })

	url, replies := peer(t, []string{
		`{"id":"1","plan":{"action":"write","cell":"A1","value":2}}`,
		`{"id":"2","plan":{"action":"write","cell":"A2","value":3}}`,
		`{"id":"3","text":"sum column A"}`,
		`{"id":"4","text":"do a barrel roll"}`,
		`{"id":"5","plan":{"action":"write"}}`,
		`{"id":"6","plan":{"action":"unsupported"}}`,
		`{"id":"7"}`,
		`not json`,
	})

	saves := 0
	l := &Listener{
		URL: url,
		Planner: &fakePlanner{plans: map[string]plan.Plan{
			"sum column A": {Action: plan.ActionSum, Range: "A:A"},
		}},
		Executor: interpreter.New(wb, nil, interpreter.Options{}),
		Applied: func(*interpreter.Result) error {
			saves++
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Listen(ctx); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	got := <-replies
	if len(got) != 8 {
		t.Fatalf("got %d replies, want 8: %+v", len(got), got)
	}
	want := []struct {
		id      string
		ok      bool
		skipped bool
		errPart string
	}{
		{"1", true, false, ""},
		{"2", true, false, ""},
		{"3", true, false, ""},
		{"4", false, false, "Invalid AI response"},
		{"5", false, false, "missing cell"},
		{"6", true, true, ""},
		{"7", false, false, "neither text nor plan"},
		{"", false, false, "decoding message"},
	}
	for i, w := range want {
		r := got[i]
		if r.ID != w.id || r.OK != w.ok || r.Skipped != w.skipped || !strings.Contains(r.Error, w.errPart) {
			t.Errorf("reply %d = %+v, want %+v", i, r, w)
		}
	}
	if got[2].Target != "A3" || got[2].Formula != "=SUM(A1:A2)" {
		t.Errorf("sum reply = %+v", got[2])
	}
	if saves != 3 {
		t.Errorf("Applied ran %d times, want 3", saves)
	}
}

func TestListenReportsAppliedError(t *testing.T) {
	wb := workbook.New()
	t.Cleanup(func() { _ = wb.Close() })

	url, replies := peer(t, []string{`{"id":"1","plan":{"action":"bold","range":"A1"}}`})
	l := &Listener{
		URL:      url,
		Executor: interpreter.New(wb, nil, interpreter.Options{}),
		Applied:  func(*interpreter.Result) error { return errors.New("disk full") },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Listen(ctx); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	got := <-replies
	if len(got) != 1 || got[0].OK || got[0].Error != "disk full" {
		t.Fatalf("replies = %+v", got)
	}
}

func TestTextWithoutPlanner(t *testing.T) {
	l := &Listener{}
	_, err := l.resolve(context.Background(), Message{ID: "1", Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "no planner") {
		t.Fatalf("got %v", err)
	}
}

func TestListenDialFailure(t *testing.T) {
	l := &Listener{URL: "ws://127.0.0.1:1/nothing"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Listen(ctx); err == nil {
		t.Fatal("expected dial error")
	}
}
