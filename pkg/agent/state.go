package agent

// RunnerState is one panelist's position in its autonomous loop.
type RunnerState string

const (
	StateLoading    RunnerState = "LOADING"
	StateWarmingUp  RunnerState = "WARMING_UP"
	StateListening  RunnerState = "LISTENING"
	StateEvaluating RunnerState = "EVALUATING"
	StateGenerating RunnerState = "GENERATING"
	StateReady      RunnerState = "READY"
	StateInExchange RunnerState = "IN_EXCHANGE"
	StateCooldown   RunnerState = "COOLDOWN"
)

// evalIntervals is the small fixed per-agent-index table (7-13s) spacing
// out evaluation ticks so a full panel doesn't burst-call the LLM on the
// same tick.
var evalIntervals = []int{7, 9, 11, 13, 8, 10, 12, 7, 9, 11}

func evalIntervalFor(index int) int {
	if len(evalIntervals) == 0 {
		return 10
	}
	return evalIntervals[index%len(evalIntervals)]
}
