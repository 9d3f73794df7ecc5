package interp

import (
	"fmt"

	"wabbit/compiler-go/pkg/ir"
)

// controlFlow holds the resolved jump targets for one function. Targets
// point at the marker instruction itself; the main loop's pc increment
// steps past it.
type controlFlow struct {
	ifElse         map[int]int // IF -> matching ELSE
	elseEnd        map[int]int // ELSE -> matching ENDIF
	loopStart      map[int]int // ENDLOOP -> matching LOOP
	breakTarget    map[int]int // CBREAK -> matching ENDLOOP
	continueTarget map[int]int // CONTINUE -> enclosing LOOP
}

func (m *Machine) flowFor(fn *ir.Function) (*controlFlow, error) {
	if flow, ok := m.flows[fn]; ok {
		return flow, nil
	}
	flow, err := resolveFlow(fn)
	if err != nil {
		return nil, err
	}
	m.flows[fn] = flow
	return flow, nil
}

func resolveFlow(fn *ir.Function) (*controlFlow, error) {
	flow := &controlFlow{
		ifElse:         make(map[int]int),
		elseEnd:        make(map[int]int),
		loopStart:      make(map[int]int),
		breakTarget:    make(map[int]int),
		continueTarget: make(map[int]int),
	}
	var ifStack []int   // pending IF, then its ELSE
	var loopStack []int // pending LOOP headers
	pendingBreaks := make(map[int][]int)
	for pc, ins := range fn.Code {
		switch ins.Op {
		case ir.OpIf:
			ifStack = append(ifStack, pc)
		case ir.OpElse:
			if len(ifStack) == 0 {
				return nil, fmt.Errorf("interp: ELSE without IF at %d in %s", pc, fn.Name)
			}
			flow.ifElse[ifStack[len(ifStack)-1]] = pc
			ifStack[len(ifStack)-1] = pc
		case ir.OpEndIf:
			if len(ifStack) == 0 {
				return nil, fmt.Errorf("interp: ENDIF without IF at %d in %s", pc, fn.Name)
			}
			top := ifStack[len(ifStack)-1]
			ifStack = ifStack[:len(ifStack)-1]
			if fn.Code[top].Op == ir.OpElse {
				flow.elseEnd[top] = pc
			} else {
				// no alternative was emitted; IF jumps straight here
				flow.ifElse[top] = pc
			}
		case ir.OpLoop:
			loopStack = append(loopStack, pc)
		case ir.OpCBreak:
			if len(loopStack) == 0 {
				return nil, fmt.Errorf("interp: CBREAK outside a loop at %d in %s", pc, fn.Name)
			}
			header := loopStack[len(loopStack)-1]
			pendingBreaks[header] = append(pendingBreaks[header], pc)
		case ir.OpContinue:
			if len(loopStack) == 0 {
				return nil, fmt.Errorf("interp: CONTINUE outside a loop at %d in %s", pc, fn.Name)
			}
			flow.continueTarget[pc] = loopStack[len(loopStack)-1]
		case ir.OpEndLoop:
			if len(loopStack) == 0 {
				return nil, fmt.Errorf("interp: ENDLOOP without LOOP at %d in %s", pc, fn.Name)
			}
			header := loopStack[len(loopStack)-1]
			loopStack = loopStack[:len(loopStack)-1]
			flow.loopStart[pc] = header
			for _, brk := range pendingBreaks[header] {
				flow.breakTarget[brk] = pc
			}
			delete(pendingBreaks, header)
		}
	}
	if len(ifStack) != 0 || len(loopStack) != 0 {
		return nil, fmt.Errorf("interp: unbalanced control flow in %s", fn.Name)
	}
	return flow, nil
}
