package debugger

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/kestrelsoft/lr35902jit/internal/system"
)

// Session runs an interactive command loop around a Machine, tracking
// breakpoints across Continue calls the way the original debugger's
// REPL held a persistent breakpoint set across "c" invocations.
type Session struct {
	m      *system.Machine
	breaks map[uint16]bool

	out io.Writer
}

// NewSession wraps m for interactive debugging, writing command output
// to out.
func NewSession(m *system.Machine, out io.Writer) *Session {
	return &Session{m: m, breaks: make(map[uint16]bool), out: out}
}

// Run reads commands from in until EOF or a "quit"/"q" line, printing
// a "(gbjit) " prompt for each. Lines that fail to parse are silently
// ignored, matching the original debugger's tolerance for typos.
func (s *Session) Run(in io.Reader, prompt string) {
	scanner := bufio.NewScanner(in)
	for {
		if prompt != "" {
			fmt.Fprint(s.out, prompt)
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "quit" || line == "q" {
			return
		}
		s.Dispatch(Parse(line))
	}
}

// Dispatch executes one parsed command, printing any result to the
// Session's writer. KindUnknown (an empty or unrecognized line) does
// nothing.
func (s *Session) Dispatch(cmd Command) {
	switch cmd.Kind {
	case KindBreakSet:
		s.breaks[cmd.Addr] = true
		fmt.Fprintf(s.out, "breakpoint set at %#06x\n", cmd.Addr)
	case KindBreakClear:
		delete(s.breaks, cmd.Addr)
		fmt.Fprintf(s.out, "breakpoint cleared at %#06x\n", cmd.Addr)
	case KindBreakList:
		s.printBreakpoints()
	case KindStep:
		s.m.Step()
		s.printRegisters()
	case KindContinue:
		s.continueToBreakpoint()
	case KindPrint:
		fmt.Fprintf(s.out, "%#06x: %#04x\n", cmd.Addr, s.m.Bus().Read(cmd.Addr))
	case KindRegisters:
		s.printRegisters()
	case KindDisassemble:
		for _, l := range Disassemble(s.m.Bus(), cmd.Addr, cmd.Count) {
			fmt.Fprintln(s.out, l)
		}
	}
}

// continueStepLimit bounds Continue so a breakpoint the program never
// reaches returns control to the prompt instead of hanging the REPL.
const continueStepLimit = 100_000_000

func (s *Session) continueToBreakpoint() {
	_, _, _, _, _, pc := s.m.State().Regs()
	if s.breaks[pc] {
		// Already sitting on a breakpoint: step past it once so
		// Continue makes progress instead of reporting immediately.
		s.m.Step()
	}
	for i := 0; i < continueStepLimit; i++ {
		s.m.Step()
		_, _, _, _, _, pc := s.m.State().Regs()
		if s.breaks[pc] {
			fmt.Fprintf(s.out, "breakpoint hit at %#06x\n", pc)
			s.printRegisters()
			return
		}
	}
	fmt.Fprintln(s.out, "step limit reached without hitting a breakpoint")
}

func (s *Session) printRegisters() {
	af, bc, de, hl, sp, pc := s.m.State().Regs()
	fmt.Fprintf(s.out, "AF=%#06x BC=%#06x DE=%#06x HL=%#06x SP=%#06x PC=%#06x\n",
		af, bc, de, hl, sp, pc)
}

func (s *Session) printBreakpoints() {
	addrs := make([]uint16, 0, len(s.breaks))
	for a := range s.breaks {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, a := range addrs {
		fmt.Fprintf(s.out, "%#06x\n", a)
	}
}
