package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/facegate/pkg/quality"
)

var start = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type memSink struct {
	records    []TickRecord
	summaries  []Summary
	closed     int
	appendErr  error
	summaryErr error
	closeErr   error
}

func (m *memSink) Append(rec TickRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memSink) WriteSummary(s Summary) error {
	if m.summaryErr != nil {
		return m.summaryErr
	}
	m.summaries = append(m.summaries, s)
	return nil
}

func (m *memSink) Close() error {
	m.closed++
	return m.closeErr
}

func tick(now time.Time, d quality.Decision, r quality.Reason, m *quality.Metrics) TickRecord {
	return NewTickRecord(now, d, r, m, 30)
}

func TestRecordTick_RateLimit(t *testing.T) {
	sink := &memSink{}
	a := New(sink, start)

	// 10 ticks per second for 3 seconds.
	logged := 0
	for i := 0; i < 30; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		ok, err := a.RecordTick(tick(now, quality.Fail, quality.ReasonNoFace, nil), now)
		if err != nil {
			t.Fatalf("RecordTick: %v", err)
		}
		if ok {
			logged++
		}
	}

	if logged != 3 || a.TotalLogs() != 3 || len(sink.records) != 3 {
		t.Errorf("logged %d, total %d, persisted %d; want 3", logged, a.TotalLogs(), len(sink.records))
	}
}

func TestRecordTick_FirstTickAlwaysLogged(t *testing.T) {
	a := New(&memSink{}, start)
	ok, err := a.RecordTick(tick(start, quality.Pass, "", &quality.Metrics{}), start)
	if err != nil || !ok {
		t.Errorf("first tick: logged=%v err=%v", ok, err)
	}
}

func TestRecordTick_ZeroIntervalLogsEverything(t *testing.T) {
	a := New(&memSink{}, start, WithLogEvery(0))
	for i := 0; i < 5; i++ {
		a.RecordTick(tick(start, quality.Pass, "", nil), start)
	}
	if a.TotalLogs() != 5 {
		t.Errorf("total: got %d, want 5", a.TotalLogs())
	}
}

func TestSummary_Aggregates(t *testing.T) {
	sink := &memSink{}
	a := New(sink, start)

	seq := []struct {
		d quality.Decision
		r quality.Reason
		m *quality.Metrics
	}{
		{quality.Fail, quality.ReasonNoFace, nil},
		{quality.NeedsFixing, quality.ReasonLowLight, &quality.Metrics{Brightness: 40, Blur: 100}},
		{quality.NeedsFixing, quality.ReasonTooFar, &quality.Metrics{Brightness: 120, Blur: 300}},
		{quality.NeedsFixing, quality.ReasonLowLight, &quality.Metrics{Brightness: 50, Blur: 200}},
		{quality.Pass, quality.ReasonNone, &quality.Metrics{Brightness: 150, Blur: 400}},
		{quality.Fail, quality.ReasonNoFace, nil},
		{quality.NeedsFixing, quality.ReasonTooFar, &quality.Metrics{Brightness: 140, Blur: 0}},
	}
	for i, s := range seq {
		now := start.Add(time.Duration(i) * time.Second)
		if _, err := a.RecordTick(tick(now, s.d, s.r, s.m), now); err != nil {
			t.Fatalf("RecordTick: %v", err)
		}
	}

	sum, err := a.Close(start.Add(7500 * time.Millisecond))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	if sum.SessionID != start.Unix() {
		t.Errorf("session id: got %d", sum.SessionID)
	}
	if sum.DurationS != 7.5 {
		t.Errorf("duration: got %v, want 7.5", sum.DurationS)
	}
	if sum.LogRateHz == nil || *sum.LogRateHz != 1 {
		t.Errorf("log rate: got %v, want 1", sum.LogRateHz)
	}
	if sum.TotalLogs != 7 {
		t.Errorf("total logs: got %d", sum.TotalLogs)
	}
	if sum.DecisionCounts[quality.NeedsFixing] != 4 || sum.DecisionCounts[quality.Fail] != 2 || sum.DecisionCounts[quality.Pass] != 1 {
		t.Errorf("decision counts: %v", sum.DecisionCounts)
	}
	if _, ok := sum.ReasonCounts[quality.ReasonNone]; ok {
		t.Error("none must not be counted as a reason")
	}
	if got, want := sum.PassRate, 1.0/7; got != want {
		t.Errorf("pass rate: got %v, want %v", got, want)
	}
	if got, want := sum.FaceDetectedRate, 5.0/7; got != want {
		t.Errorf("face detected rate: got %v, want %v", got, want)
	}
	if sum.AvgBrightness == nil || *sum.AvgBrightness != 100 {
		t.Errorf("avg brightness: got %v, want 100", sum.AvgBrightness)
	}
	if sum.AvgBlur == nil || *sum.AvgBlur != 200 {
		t.Errorf("avg blur: got %v, want 200", sum.AvgBlur)
	}

	// no_face, low_light and too_far all have 2; first-seen order breaks ties.
	want := []ReasonCount{
		{quality.ReasonNoFace, 2},
		{quality.ReasonLowLight, 2},
		{quality.ReasonTooFar, 2},
	}
	if len(sum.TopReasons) != len(want) {
		t.Fatalf("top reasons: got %+v", sum.TopReasons)
	}
	for i := range want {
		if sum.TopReasons[i] != want[i] {
			t.Errorf("top reasons[%d]: got %+v, want %+v", i, sum.TopReasons[i], want[i])
		}
	}

	if len(sink.summaries) != 1 || sink.closed != 1 {
		t.Errorf("summary writes %d, closes %d; want 1 and 1", len(sink.summaries), sink.closed)
	}
}

func TestTopReasons_LimitedToFive(t *testing.T) {
	a := New(&memSink{}, start, WithLogEvery(0))
	counts := map[quality.Reason]int{
		quality.ReasonBlurry:        1,
		quality.ReasonTooBright:     4,
		quality.ReasonLowLight:      2,
		quality.ReasonOffCenter:     6,
		quality.ReasonTooClose:      3,
		quality.ReasonTooFar:        5,
		quality.ReasonLowConfidence: 2,
	}
	for _, r := range quality.Reasons() {
		for i := 0; i < counts[r]; i++ {
			a.RecordTick(tick(start, quality.NeedsFixing, r, nil), start)
		}
	}

	top := a.Summary(start).TopReasons
	want := []quality.Reason{
		quality.ReasonOffCenter,
		quality.ReasonTooFar,
		quality.ReasonTooBright,
		quality.ReasonTooClose,
		quality.ReasonLowConfidence,
	}
	if len(top) != 5 {
		t.Fatalf("top reasons: got %d entries", len(top))
	}
	for i, r := range want {
		if top[i].Reason != r {
			t.Errorf("top[%d]: got %q, want %q", i, top[i].Reason, r)
		}
	}
}

func TestClose_ZeroTicks(t *testing.T) {
	sink := &memSink{}
	a := New(sink, start)

	sum, err := a.Close(start)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	if sum.PassRate != 0 || sum.FaceDetectedRate != 0 {
		t.Errorf("rates: pass %v, face %v; want 0", sum.PassRate, sum.FaceDetectedRate)
	}
	if sum.AvgBrightness != nil || sum.AvgBlur != nil {
		t.Errorf("averages should be nil, got %v %v", sum.AvgBrightness, sum.AvgBlur)
	}
	if len(sum.TopReasons) != 0 {
		t.Errorf("top reasons: got %+v", sum.TopReasons)
	}
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	a := New(&memSink{}, start)
	if _, err := a.Close(start); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := a.RecordTick(tick(start, quality.Pass, "", nil), start.Add(time.Hour)); !errors.Is(err, ErrClosed) {
		t.Errorf("RecordTick after close: got %v, want ErrClosed", err)
	}
	if _, err := a.Close(start); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close: got %v, want ErrClosed", err)
	}
}

func TestRecordTick_SinkFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	a := New(&memSink{appendErr: diskFull}, start)

	ok, err := a.RecordTick(tick(start, quality.Pass, "", nil), start)
	if !errors.Is(err, diskFull) {
		t.Errorf("expected disk full, got %v", err)
	}
	if ok || a.TotalLogs() != 0 {
		t.Errorf("failed tick counted: ok=%v total=%d", ok, a.TotalLogs())
	}
}

func TestClose_SurfacesPersistenceErrors(t *testing.T) {
	summaryErr := errors.New("read-only fs")
	closeErr := errors.New("bad descriptor")
	sink := &memSink{summaryErr: summaryErr, closeErr: closeErr}
	a := New(sink, start)

	_, err := a.Close(start)
	if !errors.Is(err, summaryErr) || !errors.Is(err, closeErr) {
		t.Errorf("expected both errors, got %v", err)
	}
	if sink.closed != 1 {
		t.Error("sink should be closed even when the summary fails")
	}
}

func TestSummary_RatesBounded(t *testing.T) {
	a := New(&memSink{}, start, WithLogEvery(0))
	decisions := []quality.Decision{quality.Pass, quality.Fail, quality.NeedsFixing, ""}
	for i := 0; i < 40; i++ {
		var m *quality.Metrics
		if i%3 == 0 {
			m = &quality.Metrics{}
		}
		a.RecordTick(tick(start, decisions[i%4], "", m), start)

		s := a.Summary(start)
		if s.PassRate < 0 || s.PassRate > 1 || s.FaceDetectedRate < 0 || s.FaceDetectedRate > 1 {
			t.Fatalf("rates out of range: %+v", s)
		}
	}
}

func TestLogRateDisabled(t *testing.T) {
	a := New(&memSink{}, start, WithLogEvery(0))
	if s := a.Summary(start); s.LogRateHz != nil {
		t.Errorf("log rate: got %v, want nil", *s.LogRateHz)
	}
}
