package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/softuart/pkg/app"
	"github.com/robotalks/softuart/pkg/env"
	"github.com/robotalks/softuart/pkg/uart"
)

// Shell provides ishell backed interactive shell over an in-process
// simulation.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoStart   bool

	// KeepLine keeps Line instead of the program's line parameters.
	KeepLine bool

	Shell  *ishell.Shell
	Config *env.Config
	Line   *uart.Config
	Sim    *SimRun
}

const (
	shellKey       = "$shell"
	stoppedPrompt  = "[stopped] > "
	defaultRecvFor = 200 * time.Millisecond
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&StartCmd,
		&StopCmd,
		&SendCmd,
		&HexCmd,
		&RecvCmd,
		&StatsCmd,
		&LEDCmd,
		&TicksCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config, line *uart.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Line:   line,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(stoppedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeStarted wraps command func requires a running simulation.
func MustBeStarted(fn func(c *ishell.Context, r *SimRun)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		r := ShellFrom(c).Sim
		if r == nil {
			c.Err(errors.New("simulation not started"))
			return
		}
		fn(c, r)
	}
}

// WithKeepLine sets KeepLine.
func (s *Shell) WithKeepLine(keep bool) *Shell {
	s.KeepLine = keep
	return s
}

// WithAutoStart sets AutoStart.
func (s *Shell) WithAutoStart(en bool) *Shell {
	s.AutoStart = en
	return s
}

// Start starts the named program, stopping the current one.
func (s *Shell) Start(name string) error {
	prog, err := app.Lookup(name)
	if err != nil {
		return err
	}
	s.Stop()
	r, err := StartSim(prog, s.Line, s.Config.SimSpeed, s.KeepLine)
	if err != nil {
		return err
	}
	s.Sim = r
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", prog.Name))
	return nil
}

// Stop stops the current simulation.
func (s *Shell) Stop() {
	if s.Sim != nil {
		s.Sim.Stop()
		s.Sim = nil
		s.Shell.SetPrompt(stoppedPrompt)
	}
}

// Print prints v as JSON or with the default format.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("%+v\n", v)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoStart {
		if err := s.Start(s.Config.App); err != nil {
			log.Fatalf("start %q failed: %v", s.Config.App, err)
		}
	}
	defer s.Stop()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func sendCmdFunc(parse func([]string) ([]byte, error)) func(c *ishell.Context) {
	return MustBeStarted(func(c *ishell.Context, r *SimRun) {
		data, err := parse(c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		if err = r.Send(data); err != nil {
			c.Err(err)
		}
	})
}

var (
	// StartCmd starts a program.
	StartCmd = ishell.Cmd{
		Name:    "start",
		Aliases: []string{"run"},
		Help:    "[" + strings.Join(app.Names(), "|") + "]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			name := s.Config.App
			if len(c.Args) > 0 {
				name = c.Args[0]
			}
			if err := s.Start(name); err != nil {
				c.Err(err)
			}
		},
	}

	// StopCmd stops the simulation.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Stop()
		},
	}

	// SendCmd transmits text from the terminal.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    `TEXT, escapes like \r\n supported`,
		Func:    sendCmdFunc(ParseText),
	}

	// HexCmd transmits bytes from the terminal.
	HexCmd = ishell.Cmd{
		Name:    "hex",
		Aliases: []string{"x"},
		Help:    "HH [HH...]",
		Func:    sendCmdFunc(ParseHex),
	}

	// RecvCmd prints bytes received by the terminal.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "[WAIT(ms)]",
		Func: MustBeStarted(func(c *ishell.Context, r *SimRun) {
			wait := defaultRecvFor
			if len(c.Args) > 0 {
				ms, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid WAIT: %v", err))
					return
				}
				wait = time.Duration(ms) * time.Millisecond
			}
			out := r.Output(wait)
			if ShellFrom(c).OutputJSON {
				ShellFrom(c).Print(c, map[string]string{"output": string(out)})
				return
			}
			c.Printf("%q\n", out)
		}),
	}

	// StatsCmd prints duty cycles and counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeStarted(func(c *ishell.Context, r *SimRun) {
			ShellFrom(c).Print(c, r.Stats())
		}),
	}

	// LEDCmd prints the LED state.
	LEDCmd = ishell.Cmd{
		Name: "led",
		Help: "",
		Func: MustBeStarted(func(c *ishell.Context, r *SimRun) {
			st, _ := r.LEDs.State()
			s := ShellFrom(c)
			if s.OutputJSON {
				s.Print(c, st)
				return
			}
			c.Println(st.String())
		}),
	}

	// TicksCmd prints the simulated ticks, optionally advancing them.
	TicksCmd = ishell.Cmd{
		Name: "ticks",
		Help: "[ADVANCE]",
		Func: MustBeStarted(func(c *ishell.Context, r *SimRun) {
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n < 0 {
					c.Err(fmt.Errorf("Invalid ADVANCE: %q", c.Args[0]))
					return
				}
				r.Advance(n)
			}
			c.Println(r.Bench.Driver.Ticks())
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig(), uart.NewConfig()).
		WithKeepLine(uart.LineFlagsSet()).
		WithAutoStart(true).
		Run(flag.Args()...)
}
