package engine

// pathKey — ключ пути в resolved.
type pathKey struct {
	from string
	to   string
}

// executionState — состояние одного запуска pipeline.
//
// Создаётся заново на каждый Run и уничтожается вместе с ним: никакого
// межзапускового состояния. Все мутации выполняются единственной
// горутиной-планировщиком (завершения шагов сериализуются через канал),
// поэтому state не нуждается в собственном мьютексе — это и есть
// требуемая дисциплина взаимного исключения.
type executionState struct {
	pipeline *Pipeline

	// completed — выходы успешно завершённых шагов.
	completed map[string]map[string]any

	// running — шаги, выполняющиеся в данный момент.
	running map[string]bool

	// dispatched — шаги, которые уже отправлялись на выполнение.
	// Гарантия: шаг диспатчится не более одного раза за запуск.
	dispatched map[string]bool

	// failed — упавшие шаги (stepID → текст ошибки).
	failed map[string]string

	// skipped — шаги, все входящие пути которых разрешились как не взятые.
	skipped map[string]bool

	// resolved — вычисленные пути: (from, to) → взят или нет.
	// Каждый путь вычисляется ровно один раз, сразу после завершения from.
	resolved map[pathKey]bool

	// reached — шаги с хотя бы одним взятым входящим путём плюс стартовый.
	reached map[string]bool
}

// newExecutionState создаёт чистое состояние запуска.
func newExecutionState(p *Pipeline) *executionState {
	st := &executionState{
		pipeline:   p,
		completed:  make(map[string]map[string]any),
		running:    make(map[string]bool),
		dispatched: make(map[string]bool),
		failed:     make(map[string]string),
		skipped:    make(map[string]bool),
		resolved:   make(map[pathKey]bool),
		reached:    make(map[string]bool),
	}
	st.reached[p.Flow.StartAt] = true
	return st
}

// markRunning помечает шаг как диспатченный и выполняющийся.
func (s *executionState) markRunning(stepID string) {
	s.dispatched[stepID] = true
	s.running[stepID] = true
}

// markCompleted фиксирует выходы завершённого шага.
func (s *executionState) markCompleted(stepID string, outputs map[string]any) {
	delete(s.running, stepID)
	if outputs == nil {
		outputs = make(map[string]any)
	}
	s.completed[stepID] = outputs
}

// markFailed фиксирует падение шага.
func (s *executionState) markFailed(stepID string, errMsg string) {
	delete(s.running, stepID)
	s.failed[stepID] = errMsg
}

// markSkipped помечает шаг пропущенным.
func (s *executionState) markSkipped(stepID string) {
	s.skipped[stepID] = true
}

// resolvePath фиксирует результат вычисления пути.
func (s *executionState) resolvePath(from, to string, taken bool) {
	s.resolved[pathKey{from, to}] = taken
	if taken {
		s.reached[to] = true
	}
}

// settled проверяет, определена ли уже судьба шага.
func (s *executionState) settled(stepID string) bool {
	if s.dispatched[stepID] || s.skipped[stepID] {
		return true
	}
	_, failed := s.failed[stepID]
	return failed
}

// inboundResolved проверяет, что все входящие пути шага вычислены.
func (s *executionState) inboundResolved(stepID string) bool {
	for _, path := range s.pipeline.inbound(stepID) {
		if _, ok := s.resolved[pathKey{path.From, path.To}]; !ok {
			return false
		}
	}
	return true
}

// anyInboundTaken проверяет, есть ли хотя бы один взятый входящий путь.
func (s *executionState) anyInboundTaken(stepID string) bool {
	for _, path := range s.pipeline.inbound(stepID) {
		if s.resolved[pathKey{path.From, path.To}] {
			return true
		}
	}
	return false
}

// takenPredecessors возвращает ID предшественников по взятым путям,
// в порядке объявления путей в определении.
func (s *executionState) takenPredecessors(stepID string) []string {
	var preds []string
	for _, path := range s.pipeline.inbound(stepID) {
		if s.resolved[pathKey{path.From, path.To}] {
			preds = append(preds, path.From)
		}
	}
	return preds
}

// runningCount возвращает количество выполняющихся шагов.
func (s *executionState) runningCount() int {
	return len(s.running)
}

// remaining возвращает достигнутые шаги, судьба которых ещё не решена:
// они не завершены, не упали, не пропущены и не выполняются.
//
// Терминальные шаги участвуют в этом скане наравне с остальными:
// готовый терминальный шаг — это событие завершения, которого нужно
// дождаться, а не повод объявить движок простаивающим.
func (s *executionState) remaining() []string {
	var left []string
	for i := range s.pipeline.Steps {
		id := s.pipeline.Steps[i].ID
		if s.reached[id] && !s.settled(id) {
			left = append(left, id)
		}
	}
	return left
}
