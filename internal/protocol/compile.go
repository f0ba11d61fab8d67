package protocol

import (
	"fmt"
	"sort"

	"github.com/flowforge/flowforge/internal/apparatus"
	"github.com/flowforge/flowforge/internal/quantity"
	"github.com/flowforge/flowforge/internal/schedule"
)

// WarningCode categorizes non-fatal compilation findings.
type WarningCode string

const (
	// WarnUnusedComponent flags an active component with no procedures.
	WarnUnusedComponent WarningCode = "UNUSED_COMPONENT"

	// WarnInferredStop flags a stop time taken from the next procedure's
	// start.
	WarnInferredStop WarningCode = "INFERRED_STOP"

	// WarnInferredEnd flags a stop time taken as the end of the protocol.
	WarnInferredEnd WarningCode = "INFERRED_PROTOCOL_END"
)

// Warning is a non-fatal compilation finding. Warnings never abort
// compilation; callers that want them suppressed simply discard the slice.
type Warning struct {
	Code      WarningCode
	Component string
	Message   string
}

// Compile turns the raw procedure list into a per-component, time-ordered,
// gap-filled instruction schedule.
//
// Compilation is deterministic and side-effect free: the raw procedures
// and the declared duration are never mutated, an "auto" duration is
// re-resolved on every call, and repeated calls over an unchanged
// procedure list return equal schedules.
func (p *Protocol) Compile() (*schedule.Schedule, []Warning, error) {
	duration, err := p.resolveDuration()
	if err != nil {
		return nil, nil, err
	}

	out := schedule.New()
	var warnings []Warning

	for _, component := range p.app.ActiveComponents() {
		handle, _ := p.app.HandleOf(component)

		var procs []procedure
		for _, pr := range p.procedures {
			if pr.handle == handle {
				procs = append(procs, pr)
			}
		}

		if len(procs) == 0 {
			warnings = append(warnings, Warning{
				Code:      WarnUnusedComponent,
				Component: component.Name(),
				Message:   fmt.Sprintf("%s %s is an active component but has no procedures; if this is intentional, ignore this warning", component.Kind(), component.Name()),
			})
			continue
		}

		// Stable sort keeps insertion order for equal start times.
		sort.SliceStable(procs, func(i, j int) bool {
			return procs[i].start.Cmp(procs[j].start) < 0
		})

		if err := checkContinuousAmbiguity(procs); err != nil {
			return nil, nil, err
		}

		resolved, ws, err := resolveStops(procs, duration)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, ws...)

		out.Append(component.Name(), assemble(resolved, component.BaseState()))
	}

	return out, warnings, nil
}

// resolveDuration is the pure pre-step for the "auto" sentinel: the
// protocol duration becomes the latest stop among the raw procedures.
// Returns nil when no duration was declared.
func (p *Protocol) resolveDuration() (*quantity.Quantity, error) {
	if !p.auto {
		return p.duration, nil
	}

	var latest *quantity.Quantity
	for i := range p.procedures {
		stop := p.procedures[i].stop
		if stop == nil {
			continue
		}
		if latest == nil || stop.Cmp(*latest) > 0 {
			latest = stop
		}
	}
	if latest == nil {
		return nil, errf(ErrCodeUnresolvableDuration, "",
			"unable to infer protocol duration: at least one procedure must define a stop to use duration=%q", Auto)
	}
	return latest, nil
}

// checkContinuousAmbiguity rejects multiple whole-duration procedures on
// one component: with neither an explicit start nor a stop there is no way
// to order them.
func checkContinuousAmbiguity(procs []procedure) error {
	continuous := 0
	for _, pr := range procs {
		if pr.startImplicit && pr.stop == nil {
			continuous++
		}
	}
	if continuous > 1 {
		c := procs[0].component
		return errf(ErrCodeAmbiguousContinuousProcedure, c.Name(),
			"cannot have two procedures spanning the entire protocol; combine them into one Add call or give each explicit start and stop times")
	}
	return nil
}

// resolvedProcedure is a procedure with its stop fully determined.
type resolvedProcedure struct {
	start float64 // seconds
	stop  float64 // seconds
	raw   procedure
}

// resolveStops validates intervals and infers missing stop times,
// procedure by procedure in start order: a missing stop becomes the next
// procedure's start, or the end of the protocol for the final procedure.
func resolveStops(procs []procedure, duration *quantity.Quantity) ([]resolvedProcedure, []Warning, error) {
	var warnings []Warning
	out := make([]resolvedProcedure, 0, len(procs))

	for i, pr := range procs {
		name := pr.component.Name()
		start, _ := pr.start.Seconds()
		stop := pr.stop // work on a copy; raw procedures stay untouched

		if stop != nil && stop.Cmp(pr.start) < 0 {
			return nil, nil, errf(ErrCodeInvertedInterval, name,
				"start time (%s) must be less than or equal to stop time (%s)", pr.start, *stop)
		}

		if duration != nil {
			if pr.start.Cmp(*duration) > 0 {
				return nil, nil, errf(ErrCodeOutOfBounds, name,
					"procedure cannot start at %s, outside the protocol duration (%s)", pr.start, *duration)
			}
			if stop != nil && stop.Cmp(*duration) > 0 {
				return nil, nil, errf(ErrCodeOutOfBounds, name,
					"procedure cannot end at %s, outside the protocol duration (%s)", *stop, *duration)
			}
		}

		if i+1 < len(procs) {
			next := procs[i+1]
			nextStart, _ := next.start.Seconds()
			if stop == nil {
				if quantity.TimeEqual(nextStart, 0) {
					return nil, nil, errf(ErrCodeAmbiguousStartTime, name,
						"next procedure starts at time zero, so this procedure's stop cannot be inferred from it")
				}
				inferred := next.start
				stop = &inferred
				warnings = append(warnings, Warning{
					Code:      WarnInferredStop,
					Component: name,
					Message:   fmt.Sprintf("stop time inferred as the beginning of %s's next procedure (%s)", name, inferred),
				})
			}
		} else if stop == nil {
			if duration == nil {
				// Unreachable when procedures came through Add.
				return nil, nil, errf(ErrCodeUnboundedDuration, name,
					"procedure has no stop and the protocol has no duration")
			}
			stop = duration
			warnings = append(warnings, Warning{
				Code:      WarnInferredEnd,
				Component: name,
				Message:   fmt.Sprintf("stop time inferred as the end of the protocol (%s); provide a stop to override", *stop),
			})
		}

		stopSec, _ := stop.Seconds()
		out = append(out, resolvedProcedure{start: start, stop: stopSec, raw: pr})
	}

	return out, warnings, nil
}

// assemble emits the instruction timeline: each procedure's parameters at
// its start, and a base-state instruction at its stop unless the next
// procedure begins exactly (within the time epsilon) when it ends. The
// final procedure always reverts to base state.
func assemble(procs []resolvedProcedure, base apparatus.Params) []schedule.Instruction {
	out := make([]schedule.Instruction, 0, 2*len(procs))
	for i, pr := range procs {
		out = append(out, schedule.Instruction{Time: pr.start, Params: pr.raw.params})

		if i+1 < len(procs) && quantity.TimeEqual(procs[i+1].start, pr.stop) {
			continue
		}
		out = append(out, schedule.Instruction{Time: pr.stop, Params: base})
	}
	return out
}
