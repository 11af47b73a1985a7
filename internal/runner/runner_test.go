package runner

import (
	"bytes"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/order_strategy/internal/caller"
	"github.com/triage-ai/palisade/services/order_strategy/internal/engine"
	"github.com/triage-ai/palisade/services/order_strategy/internal/health"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
	"github.com/triage-ai/palisade/services/order_strategy/internal/wire"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	svc := engine.NewService(policy.Default(), health.NewStaticGate(health.StatusUp), logger, engine.Options{})
	dec, err := wire.NewDecoder()
	if err != nil {
		t.Fatal(err)
	}
	r := New(caller.NewCaller(svc, logger, nil, 0), dec, cfg, logger)
	var n atomic.Int64
	r.newID = func() string {
		return fmt.Sprintf("generated-%d", n.Add(1))
	}
	return r
}

func request(id, customerID string) string {
	return fmt.Sprintf(`{"request_id":%q,"action":"TRACK_ORDER","customer_id":%q,"country":"DE",`+
		`"is_vip":false,"authenticated":true,"channel":"WEBCHAT","ai_confidence":0.9,"recent_failed_ai_attempts":0,`+
		`"orders":[{"order_id":"ORD-00000001","total_amount":50,"item_count":1,"status":"DELIVERED",`+
		`"is_flagged_fraud_risk":false,"has_open_dispute":false}]}`, id, customerID)
}

func decodeLines(t *testing.T, out string) []wire.Response {
	t.Helper()
	var got []wire.Response
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		var r wire.Response
		if err := json.Unmarshal([]byte(l), &r); err != nil {
			t.Fatalf("bad output line %q: %v", l, err)
		}
		got = append(got, r)
	}
	return got
}

func TestRunner_PreservesInputOrder(t *testing.T) {
	r := newTestRunner(t, Config{Workers: 4, BatchSize: 3})

	var in strings.Builder
	for i := 0; i < 10; i++ {
		in.WriteString(request(fmt.Sprintf("req-%02d", i), "cust-0001") + "\n")
	}
	var out bytes.Buffer
	stats, err := r.Process(context.Background(), strings.NewReader(in.String()), &out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 10 || stats.Succeeded != 10 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got := decodeLines(t, out.String())
	for i, r := range got {
		if want := fmt.Sprintf("req-%02d", i); r.RequestID != want {
			t.Fatalf("line %d: expected %s, got %s", i, want, r.RequestID)
		}
		if r.Response.Outcome != caller.OutcomeAISimple {
			t.Fatalf("line %d: expected AI_SIMPLE, got %s", i, r.Response.Outcome)
		}
	}
}

func TestRunner_MixedLines(t *testing.T) {
	r := newTestRunner(t, Config{Workers: 2})

	in := strings.Join([]string{
		request("ok", "cust-0001"),
		"",
		`{"action": `,
		request("short-id", "ab"),
		`{"customer_id":"cust-0001","is_vip":"yes"}`,
	}, "\n")

	var out bytes.Buffer
	stats, err := r.Process(context.Background(), strings.NewReader(in), &out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 4 || stats.Succeeded != 1 || stats.Failed != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got := decodeLines(t, out.String())
	want := []struct {
		outcome caller.Outcome
		code    string
	}{
		{caller.OutcomeAISimple, ""},
		{caller.OutcomeBadRequest, caller.CodeMalformedPayload},
		{caller.OutcomeBadRequest, "INVALID_CUSTOMER_ID"},
		{caller.OutcomeBadRequest, caller.CodeMalformedPayload},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Response.Outcome != w.outcome {
			t.Fatalf("line %d: expected %s, got %s", i, w.outcome, got[i].Response.Outcome)
		}
		if w.code != "" && (got[i].Response.ErrorCode == nil || *got[i].Response.ErrorCode != w.code) {
			t.Fatalf("line %d: expected code %s, got %v", i, w.code, got[i].Response.ErrorCode)
		}
	}
	if got[0].RequestID != "ok" || got[2].RequestID != "short-id" {
		t.Fatalf("expected caller ids to be kept, got %q and %q", got[0].RequestID, got[2].RequestID)
	}
	// generated ids are assigned concurrently
	if !strings.HasPrefix(got[1].RequestID, "generated-") || !strings.HasPrefix(got[3].RequestID, "generated-") {
		t.Fatalf("expected generated ids, got %q and %q", got[1].RequestID, got[3].RequestID)
	}
}

func TestRunner_StopsWhenCancelled(t *testing.T) {
	r := newTestRunner(t, Config{Workers: 1, BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := request("a", "cust-0001") + "\n" + request("b", "cust-0001") + "\n"
	var out bytes.Buffer
	stats, err := r.Process(ctx, strings.NewReader(in), &out)
	if err == nil {
		t.Fatal("expected context error")
	}
	if stats.Lines > 1 {
		t.Fatalf("expected processing to stop after the first batch, got %d lines", stats.Lines)
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	r := newTestRunner(t, Config{})
	var out bytes.Buffer
	stats, err := r.Process(context.Background(), strings.NewReader("\n\n"), &out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 0 || out.Len() != 0 {
		t.Fatalf("expected no output, got %+v %q", stats, out.String())
	}
}

func TestRunner_OversizedLineIsAnsweredAndSkipped(t *testing.T) {
	r := newTestRunner(t, Config{Workers: 2})

	oversized := `{"request_id":"big","customer_id":"` + strings.Repeat("x", maxLineBytes) + `"}`
	in := strings.Join([]string{
		request("a", "cust-0001"),
		request("b", "cust-0001"),
		oversized,
		request("c", "cust-0001"),
	}, "\n") + "\n"

	var out bytes.Buffer
	stats, err := r.Process(context.Background(), strings.NewReader(in), &out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 4 || stats.Succeeded != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	got := decodeLines(t, out.String())
	if len(got) != 4 {
		t.Fatalf("expected 4 response lines, got %d", len(got))
	}
	for i, id := range []string{"a", "b"} {
		if got[i].RequestID != id || got[i].Response.Outcome != caller.OutcomeAISimple {
			t.Fatalf("line %d: unexpected response %+v", i, got[i])
		}
	}
	tooLong := got[2].Response
	if tooLong.Outcome != caller.OutcomeBadRequest || tooLong.ErrorCode == nil || *tooLong.ErrorCode != caller.CodeMalformedPayload {
		t.Fatalf("expected MALFORMED_PAYLOAD for the oversized line, got %+v", tooLong)
	}
	if !strings.HasPrefix(got[2].RequestID, "generated-") {
		t.Fatalf("expected a generated id for the oversized line, got %q", got[2].RequestID)
	}
	if got[3].RequestID != "c" || got[3].Response.Outcome != caller.OutcomeAISimple {
		t.Fatalf("expected the line after the oversized one to be decided, got %+v", got[3])
	}
}

func TestRunner_ReadErrorAnswersPendingLines(t *testing.T) {
	r := newTestRunner(t, Config{})

	in := io.MultiReader(
		strings.NewReader(request("a", "cust-0001")+"\n"+request("b", "cust-0001")+"\n"),
		iotest.ErrReader(errors.New("connection reset")),
	)
	var out bytes.Buffer
	stats, err := r.Process(context.Background(), in, &out)
	if err == nil {
		t.Fatal("expected read error")
	}
	if stats.Lines != 2 {
		t.Fatalf("expected both lines answered before the error, got %+v", stats)
	}
	if got := decodeLines(t, out.String()); got[0].RequestID != "a" || got[1].RequestID != "b" {
		t.Fatalf("unexpected responses: %+v", got)
	}
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReaderSize(strings.NewReader("short\r\n"+strings.Repeat("y", 40)+"\nok\nlast"), 16)

	tests := []struct {
		data    string
		tooLong bool
		err     error
	}{
		{"short", false, nil},
		{"", true, nil},
		{"ok", false, nil},
		{"last", false, io.EOF},
	}
	for i, tt := range tests {
		data, tooLong, err := readLine(br, 10)
		if string(data) != tt.data || tooLong != tt.tooLong || !errors.Is(err, tt.err) {
			t.Fatalf("line %d: expected (%q, %v, %v), got (%q, %v, %v)", i, tt.data, tt.tooLong, tt.err, data, tooLong, err)
		}
	}
}

func TestRunner_HugeCountsReportRangeKinds(t *testing.T) {
	r := newTestRunner(t, Config{})

	base := request("x", "cust-0001")
	in := strings.Join([]string{
		strings.Replace(base, `"item_count":1`, `"item_count":1e3`, 1),
		strings.Replace(base, `"item_count":1`, `"item_count":1e30`, 1),
		strings.Replace(base, `"recent_failed_ai_attempts":0`, `"recent_failed_ai_attempts":99999999999999999999`, 1),
	}, "\n")

	var out bytes.Buffer
	if _, err := r.Process(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	want := []string{"INVALID_ORDER_ITEM_COUNT", "INVALID_ORDER_ITEM_COUNT", "INVALID_RECENT_FAILED_AI_ATTEMPTS"}
	got := decodeLines(t, out.String())
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i, code := range want {
		resp := got[i].Response
		if resp.Outcome != caller.OutcomeBadRequest || resp.ErrorCode == nil || *resp.ErrorCode != code {
			t.Fatalf("line %d: expected BAD_REQUEST/%s, got %+v", i, code, resp)
		}
	}
}
