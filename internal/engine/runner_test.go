package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeExec — тестовый executable со счётчиком вызовов.
type fakeExec struct {
	mu       sync.Mutex
	calls    int
	inputs   []map[string]any
	started  []time.Time
	finished []time.Time

	outputs map[string]any
	err     error
	delay   time.Duration
}

func (f *fakeExec) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, input)
	f.started = append(f.started, time.Now())
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.finished = append(f.finished, time.Now())
	f.mu.Unlock()

	return f.outputs, f.err
}

func (f *fakeExec) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExec) lastInput() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

// fakeSet — реестр executables для тестов (ref → fakeExec).
type fakeSet map[string]*fakeExec

func (s fakeSet) Resolve(ref string, _ map[string]any) (Executable, error) {
	exec, ok := s[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	return exec, nil
}

// branchingTree строит паттерн "Branching Tree":
// fetch_history → chat (always), fetch_history → generate_title
// (expression: is_first_message == true). Обе ветки терминальные.
func branchingTree() *Pipeline {
	return mkPipeline(
		[]StepDef{
			{ID: "fetch_history", Ref: "fetch_history"},
			{ID: "chat", Ref: "chat"},
			{ID: "generate_title", Ref: "generate_title"},
		},
		"fetch_history",
		[]Path{
			{From: "fetch_history", To: "chat", Condition: always()},
			{From: "fetch_history", To: "generate_title", Condition: Condition{
				Type:     ConditionExpression,
				Source:   "fetch_history.is_first_message",
				Operator: OpEquals,
				Value:    true,
			}},
		},
	)
}

func newTestRunner() *Runner {
	return NewRunner(Config{})
}

func TestRun_BranchingTree_FirstMessage(t *testing.T) {
	// Сценарий: новая сессия, is_first_message=true —
	// берутся обе ветки, в результате все три шага.
	execs := fakeSet{
		"fetch_history":  {outputs: map[string]any{"is_first_message": true, "chat_history": []any{}}},
		"chat":           {outputs: map[string]any{"response": "hello there"}},
		"generate_title": {outputs: map[string]any{"title": "Greeting"}},
	}

	input := map[string]any{"message": "hi", "session_id": nil}
	result, err := newTestRunner().Run(context.Background(), branchingTree(), execs, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, stepID := range []string{"fetch_history", "chat", "generate_title"} {
		if _, ok := result.Outputs[stepID]; !ok {
			t.Errorf("expected %s in outputs", stepID)
		}
		if result.Statuses[stepID] != StatusCompleted {
			t.Errorf("expected %s completed, got %s", stepID, result.Statuses[stepID])
		}
	}

	// Обе ветки реально выполнялись, ровно по одному разу
	if execs["chat"].callCount() != 1 {
		t.Errorf("chat called %d times", execs["chat"].callCount())
	}
	if execs["generate_title"].callCount() != 1 {
		t.Errorf("generate_title called %d times", execs["generate_title"].callCount())
	}
}

func TestRun_BranchingTree_ContinuedSession(t *testing.T) {
	// Сценарий: продолжение сессии, is_first_message=false —
	// условная ветка не берётся и отсутствует в результате.
	execs := fakeSet{
		"fetch_history":  {outputs: map[string]any{"is_first_message": false}},
		"chat":           {outputs: map[string]any{"response": "again"}},
		"generate_title": {outputs: map[string]any{"title": "never"}},
	}

	input := map[string]any{"message": "hi again", "session_id": "sess-1"}
	result, err := newTestRunner().Run(context.Background(), branchingTree(), execs, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := result.Outputs["chat"]; !ok {
		t.Error("always branch must be present")
	}
	if _, ok := result.Outputs["generate_title"]; ok {
		t.Error("conditional branch must be absent, not empty")
	}
	if result.Statuses["generate_title"] != StatusSkipped {
		t.Errorf("expected generate_title skipped, got %s", result.Statuses["generate_title"])
	}
	if execs["generate_title"].callCount() != 0 {
		t.Errorf("skipped step must not be invoked, called %d times", execs["generate_title"].callCount())
	}
}

func TestRun_TwoTerminalAlwaysBranches(t *testing.T) {
	// Регрессия: старт с двумя always-путями в два терминальных шага
	// без пересборки. Движок обязан дождаться обеих веток, а не
	// остановиться после диспатча первой.
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "left", Ref: "left"}, {ID: "right", Ref: "right"}},
		"start",
		[]Path{
			{From: "start", To: "left", Condition: always()},
			{From: "start", To: "right", Condition: always()},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{"ok": true}},
		"left":  {outputs: map[string]any{"side": "left"}, delay: 20 * time.Millisecond},
		"right": {outputs: map[string]any{"side": "right"}, delay: 40 * time.Millisecond},
	}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Outputs) != 3 {
		t.Errorf("expected 3 outputs, got %d: %v", len(result.Outputs), result.Outputs)
	}
	if execs["left"].callCount() != 1 || execs["right"].callCount() != 1 {
		t.Error("both terminal branches must execute exactly once")
	}
}

func TestRun_SiblingsOverlapInTime(t *testing.T) {
	// Независимые ветки выполняются параллельно: два шага по 80мс
	// должны перекрываться, а не сериализоваться.
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "a", Ref: "a"}, {ID: "b", Ref: "b"}},
		"start",
		[]Path{
			{From: "start", To: "a", Condition: always()},
			{From: "start", To: "b", Condition: always()},
		},
	)

	const delay = 80 * time.Millisecond
	execs := fakeSet{
		"start": {outputs: map[string]any{}},
		"a":     {outputs: map[string]any{}, delay: delay},
		"b":     {outputs: map[string]any{}, delay: delay},
	}

	if _, err := newTestRunner().Run(context.Background(), p, execs, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aStart, aEnd := execs["a"].started[0], execs["a"].finished[0]
	bStart, bEnd := execs["b"].started[0], execs["b"].finished[0]

	overlap := aStart.Before(bEnd) && bStart.Before(aEnd)
	if !overlap {
		t.Errorf("sibling branches did not overlap: a=[%v..%v] b=[%v..%v]",
			aStart, aEnd, bStart, bEnd)
	}
}

func TestRun_FailedBranchDoesNotBlockSibling(t *testing.T) {
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "bad", Ref: "bad"}, {ID: "good", Ref: "good"}},
		"start",
		[]Path{
			{From: "start", To: "bad", Condition: always()},
			{From: "start", To: "good", Condition: always()},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{}},
		"bad":   {err: errors.New("llm unavailable")},
		"good":  {outputs: map[string]any{"response": "still here"}},
	}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}

	if _, ok := result.Outputs["good"]; !ok {
		t.Error("independent sibling must complete")
	}
	if result.Statuses["bad"] != StatusFailed {
		t.Errorf("expected bad failed, got %s", result.Statuses["bad"])
	}
	if result.Failed["bad"] == "" {
		t.Error("failed step error must be recorded")
	}
}

func TestRun_DownstreamOfFailureIsSkipped(t *testing.T) {
	// start → bad → after: after достижим только через упавший шаг
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "bad", Ref: "bad"}, {ID: "after", Ref: "after"}},
		"start",
		[]Path{
			{From: "start", To: "bad", Condition: always()},
			{From: "bad", To: "after", Condition: always()},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{}},
		"bad":   {err: errors.New("boom")},
		"after": {outputs: map[string]any{}},
	}

	result, runErr := newTestRunner().Run(context.Background(), p, execs, nil)

	// bad — единственная достигнутая терминальная ветка? Нет: after
	// терминален, но не достигнут (его входящий путь не взят).
	// Единственный достигнутый терминал — after не в счёт, падение bad
	// делает провал полным только если провалены все достигнутые
	// терминалы; здесь достигнутых терминалов нет, запуск частично успешен.
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}

	if execs["after"].callCount() != 0 {
		t.Error("step downstream of failure must not run")
	}
	if result.Statuses["after"] != StatusSkipped {
		t.Errorf("expected after skipped, got %s", result.Statuses["after"])
	}
}

func TestRun_StartStepFailure(t *testing.T) {
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "next", Ref: "next"}},
		"start",
		[]Path{{From: "start", To: "next", Condition: always()}},
	)

	execs := fakeSet{
		"start": {err: errors.New("db down")},
		"next":  {outputs: map[string]any{}},
	}

	_, err := newTestRunner().Run(context.Background(), p, execs, nil)

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if runErr.FailedSteps["start"] == "" {
		t.Error("start failure must be recorded in RunError")
	}
	if execs["next"].callCount() != 0 {
		t.Error("downstream of failed start must not run")
	}
}

func TestRun_AllTerminalBranchesFail(t *testing.T) {
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "a", Ref: "a"}, {ID: "b", Ref: "b"}},
		"start",
		[]Path{
			{From: "start", To: "a", Condition: always()},
			{From: "start", To: "b", Condition: always()},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{"seed": 1}},
		"a":     {err: errors.New("fail a")},
		"b":     {err: errors.New("fail b")},
	}

	_, err := newTestRunner().Run(context.Background(), p, execs, nil)

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if len(runErr.FailedSteps) != 2 {
		t.Errorf("expected 2 failed steps, got %v", runErr.FailedSteps)
	}

	// Частичный результат сохраняет выходы успешных шагов
	if runErr.Partial == nil {
		t.Fatal("partial result must be attached")
	}
	if _, ok := runErr.Partial.Outputs["start"]; !ok {
		t.Error("partial result must contain start outputs")
	}
}

func TestRun_InputMerging(t *testing.T) {
	// Выход предшественника перекрывает одноимённый ключ payload.
	p := mkPipeline(
		[]StepDef{{ID: "first", Ref: "first"}, {ID: "second", Ref: "second"}},
		"first",
		[]Path{{From: "first", To: "second", Condition: always()}},
	)

	execs := fakeSet{
		"first":  {outputs: map[string]any{"mode": "upstream", "extra": 42}},
		"second": {outputs: map[string]any{}},
	}

	payload := map[string]any{"mode": "payload", "message": "hi"}
	if _, err := newTestRunner().Run(context.Background(), p, execs, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := execs["second"].lastInput()
	if got["mode"] != "upstream" {
		t.Errorf("upstream output must win collision, got %v", got["mode"])
	}
	if got["message"] != "hi" {
		t.Errorf("payload keys must pass through, got %v", got["message"])
	}
	if got["extra"] != 42 {
		t.Errorf("upstream outputs must be merged, got %v", got["extra"])
	}

	// Вход первого шага — только payload
	first := execs["first"].lastInput()
	if first["mode"] != "payload" {
		t.Errorf("start step sees raw payload, got %v", first["mode"])
	}
}

func TestRun_FanIn(t *testing.T) {
	// c диспатчится, только когда оба входящих пути разрешены,
	// и получает выходы лишь предшественников по взятым путям.
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "a", Ref: "a"}, {ID: "b", Ref: "b"}, {ID: "c", Ref: "c"}},
		"start",
		[]Path{
			{From: "start", To: "a", Condition: always()},
			{From: "start", To: "b", Condition: always()},
			{From: "a", To: "c", Condition: always()},
			{From: "b", To: "c", Condition: Condition{
				Type: ConditionExpression, Source: "b.flag", Operator: OpEquals, Value: true,
			}},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{}},
		"a":     {outputs: map[string]any{"from_a": 1}, delay: 10 * time.Millisecond},
		"b":     {outputs: map[string]any{"from_b": 2, "flag": false}, delay: 30 * time.Millisecond},
		"c":     {outputs: map[string]any{}},
	}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if execs["c"].callCount() != 1 {
		t.Fatalf("fan-in step must run exactly once, got %d", execs["c"].callCount())
	}

	input := execs["c"].lastInput()
	if input["from_a"] != 1 {
		t.Error("taken-path predecessor outputs must be merged")
	}
	if _, ok := input["from_b"]; ok {
		t.Error("not-taken-path predecessor outputs must not leak into input")
	}
	if result.Statuses["c"] != StatusCompleted {
		t.Errorf("expected c completed, got %s", result.Statuses["c"])
	}
}

func TestRun_FanIn_NoTakenPaths(t *testing.T) {
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "mid", Ref: "mid"}, {ID: "end", Ref: "end"}},
		"start",
		[]Path{
			{From: "start", To: "mid", Condition: Condition{
				Type: ConditionExpression, Source: "start.go_on", Operator: OpEquals, Value: true,
			}},
			{From: "mid", To: "end", Condition: always()},
		},
	)

	execs := fakeSet{
		"start": {outputs: map[string]any{"go_on": false}},
		"mid":   {outputs: map[string]any{}},
		"end":   {outputs: map[string]any{}},
	}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Каскад пропусков: mid не взят, значит и end недостижим
	if result.Statuses["mid"] != StatusSkipped || result.Statuses["end"] != StatusSkipped {
		t.Errorf("expected skip cascade, got %v", result.Statuses)
	}
	if len(result.Outputs) != 1 {
		t.Errorf("only start output expected, got %v", result.Outputs)
	}
}

func TestRun_Idempotence(t *testing.T) {
	runOnce := func() *Result {
		execs := fakeSet{
			"fetch_history":  {outputs: map[string]any{"is_first_message": true}},
			"chat":           {outputs: map[string]any{"response": "stable"}},
			"generate_title": {outputs: map[string]any{"title": "Stable"}},
		}
		result, err := newTestRunner().Run(context.Background(), branchingTree(), execs,
			map[string]any{"message": "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	first := runOnce()
	second := runOnce()

	if len(first.Outputs) != len(second.Outputs) {
		t.Fatalf("output key sets differ: %v vs %v", first.Outputs, second.Outputs)
	}
	for stepID := range first.Outputs {
		if _, ok := second.Outputs[stepID]; !ok {
			t.Errorf("step %s missing from second run", stepID)
		}
		if first.Outputs[stepID]["response"] != second.Outputs[stepID]["response"] {
			t.Errorf("step %s outputs differ", stepID)
		}
	}
}

func TestRun_ConditionOnForeignStepIsFatal(t *testing.T) {
	// Путь a → b гейтится выходом шага c, который к моменту вычисления
	// не завершён: дефект определения, запуск прерывается.
	p := mkPipeline(
		[]StepDef{{ID: "a", Ref: "a"}, {ID: "b", Ref: "b"}, {ID: "c", Ref: "c"}},
		"a",
		[]Path{
			{From: "a", To: "b", Condition: Condition{
				Type: ConditionExpression, Source: "c.flag", Operator: OpEquals, Value: true,
			}},
			{From: "b", To: "c", Condition: always()},
		},
	)

	execs := fakeSet{
		"a": {outputs: map[string]any{}},
		"b": {outputs: map[string]any{}},
		"c": {outputs: map[string]any{}},
	}

	_, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("expected ErrUnresolvedReference, got %v", err)
	}
}

func TestRun_UnknownExecutableRef(t *testing.T) {
	p := mkPipeline([]StepDef{{ID: "a", Ref: "missing"}}, "a", nil)

	_, err := newTestRunner().Run(context.Background(), p, fakeSet{}, nil)
	if !errors.Is(err, ErrUnknownExecutable) {
		t.Errorf("expected ErrUnknownExecutable, got %v", err)
	}
}

func TestRun_Cancellation(t *testing.T) {
	// Отмена после завершения первого шага: ветки не диспатчатся,
	// частичный результат сохраняется.
	p := mkPipeline(
		[]StepDef{{ID: "slow", Ref: "slow"}, {ID: "next", Ref: "next"}},
		"slow",
		[]Path{{From: "slow", To: "next", Condition: always()}},
	)

	execs := fakeSet{
		"slow": {outputs: map[string]any{"done": true}, delay: 100 * time.Millisecond},
		"next": {outputs: map[string]any{}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := newTestRunner().Run(ctx, p, execs, nil)
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("expected ErrRunCancelled, got %v", err)
	}

	if result == nil {
		t.Fatal("cancelled run must still return partial result")
	}
	if _, ok := result.Outputs["slow"]; !ok {
		t.Error("in-flight step output must be preserved")
	}
	if execs["next"].callCount() != 0 {
		t.Error("no new dispatch after cancellation")
	}
}

func TestRun_ObserverEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	observer := func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	execs := fakeSet{
		"fetch_history":  {outputs: map[string]any{"is_first_message": false}},
		"chat":           {outputs: map[string]any{"response": "x"}},
		"generate_title": {outputs: map[string]any{}},
	}

	runner := NewRunner(Config{Observer: observer})
	if _, err := runner.Run(context.Background(), branchingTree(), execs, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if events[0].Type != EventRunStarted {
		t.Errorf("first event must be run.started, got %s", events[0].Type)
	}
	if events[len(events)-1].Type != EventRunFinished {
		t.Errorf("last event must be run.finished, got %s", events[len(events)-1].Type)
	}

	counts := make(map[EventType]int)
	for _, e := range events {
		counts[e.Type]++
	}
	if counts[EventStepCompleted] != 2 {
		t.Errorf("expected 2 step.completed, got %d", counts[EventStepCompleted])
	}
	if counts[EventStepSkipped] != 1 {
		t.Errorf("expected 1 step.skipped, got %d", counts[EventStepSkipped])
	}
	if counts[EventStepDispatched] != 2 {
		t.Errorf("expected 2 step.dispatched, got %d", counts[EventStepDispatched])
	}
}

func TestRun_SingleStepPipeline(t *testing.T) {
	p := mkPipeline([]StepDef{{ID: "only", Ref: "only"}}, "only", nil)
	execs := fakeSet{"only": {outputs: map[string]any{"answer": 42}}}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["only"]["answer"] != 42 {
		t.Errorf("unexpected output: %v", result.Outputs)
	}
}

func TestRun_UnreferencedStepIsSkipped(t *testing.T) {
	// Шаг без входящих путей, не являющийся стартовым, никогда не
	// диспатчится и отсутствует в выходах.
	p := mkPipeline(
		[]StepDef{{ID: "start", Ref: "start"}, {ID: "floating", Ref: "floating"}},
		"start",
		nil,
	)

	execs := fakeSet{
		"start":    {outputs: map[string]any{}},
		"floating": {outputs: map[string]any{}},
	}

	result, err := newTestRunner().Run(context.Background(), p, execs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execs["floating"].callCount() != 0 {
		t.Error("unreferenced step must not run")
	}
	if _, ok := result.Outputs["floating"]; ok {
		t.Error("unreferenced step must be absent from outputs")
	}
}
