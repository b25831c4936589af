package domain

import (
	"github.com/shopspring/decimal"

	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/fixedpoint"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// maxSimulationSteps 模拟步数上限
const maxSimulationSteps = 10_000

// SimulationStep 模拟计划中的一次执行
type SimulationStep struct {
	Index       int             `json:"index"`
	Time        uint64          `json:"time"`
	Amount      decimal.Decimal `json:"amount"`
	Executed    decimal.Decimal `json:"executed"`
	ProgressBps uint64          `json:"progress_bps"`
}

// Simulation 模拟结果
type Simulation struct {
	Steps       []SimulationStep `json:"steps"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Remaining   decimal.Decimal  `json:"remaining"`
	ProgressBps uint64           `json:"progress_bps"`
	Paused      bool             `json:"paused"`
}

// Simulate 按准点执行生成完整计划：每步在 NextExecutionTime 调用，并像结算层一样向前传递
// LastExecutionTime 与 ExecutedAmount。假设快照在整个周期内保持新鲜。
func (e *Engine) Simulate(order *protocol.Order, orderHash protocol.Hash, s *Schedule, snap *voldomain.Snapshot) (*Simulation, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	sched := *s
	fresh := *snap
	executed := sched.ExecutedAmount
	remaining := fixedpoint.SubFloor(order.MakingAmount, executed)
	sim := &Simulation{TotalAmount: decimal.Zero}

	for len(sim.Steps) < maxSimulationSteps && remaining.IsPositive() {
		at := nextExecutionTime(&sched, e.adjustedInterval(&sched, &fresh))
		if at < sched.StartTime {
			at = sched.StartTime
		}
		if at > sched.EndTime() {
			break
		}
		fresh.LastUpdateTime = at

		state, err := e.CalculateExecution(order, orderHash, &sched, &fresh, remaining, at)
		if err != nil {
			return nil, err
		}
		if state.IsPaused {
			sim.Paused = true
			break
		}
		if !state.CanExecute || state.RecommendedAmount.IsZero() {
			break
		}

		executed = executed.Add(state.RecommendedAmount)
		remaining = remaining.Sub(state.RecommendedAmount)
		sim.TotalAmount = sim.TotalAmount.Add(state.RecommendedAmount)
		sim.Steps = append(sim.Steps, SimulationStep{
			Index:       len(sim.Steps),
			Time:        at,
			Amount:      state.RecommendedAmount,
			Executed:    executed,
			ProgressBps: ExecutionProgress(order, remaining),
		})

		sched.LastExecutionTime = at
		sched.ExecutedAmount = executed
	}

	sim.Remaining = remaining
	sim.ProgressBps = ExecutionProgress(order, remaining)
	return sim, nil
}
