package sources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/cashflowly/mpesa-listener/internal/sms"
	"github.com/cashflowly/mpesa-listener/internal/transport"
)

const defaultSimPrompt = "sim> "

const simHelp = `Commands:
  sms <sender> <body...>            deliver one SMS from sender
  event <action> <sender> <body...> deliver one SMS under a custom action
  raw <hex-pdu>...                  deliver raw PDUs as one event
  help                              show this help
  /quit, /exit                      stop the simulator`

var _ transport.Source = (*REPL)(nil)

// REPL is an interactive source that encodes typed messages into PDUs, for
// exercising the listener without a modem.
type REPL struct {
	in  io.Reader
	out *syncWriter
	now func() time.Time

	rl       *readline.Instance
	fallback *bufio.Reader
}

// NewREPL creates a simulator over stdin/stdout style streams.
func NewREPL(in io.Reader, out io.Writer) *REPL {
	return &REPL{in: in, out: &syncWriter{w: out}, now: time.Now}
}

// Listen runs the interactive loop until EOF, /quit, /exit or ctx is done.
func (r *REPL) Listen(ctx context.Context, sink transport.EventSink) error {
	if sink == nil {
		return errors.New("event sink is required")
	}
	r.ensureInputReady()
	if r.rl != nil {
		defer r.rl.Close()
	}

	if _, err := fmt.Fprintln(r.out, "SMS simulator. Type help for commands, /quit or /exit to stop."); err != nil {
		return err
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	inputCh := make(chan inputEvent)
	go r.readInputLoop(readCtx, inputCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-inputCh:
			if !ok {
				return nil
			}
			if event.err != nil {
				if errors.Is(event.err, io.EOF) || errors.Is(event.err, context.Canceled) {
					return nil
				}
				return event.err
			}

			line := strings.TrimSpace(event.line)
			if line == "" {
				continue
			}
			switch strings.ToLower(line) {
			case "/quit", "quit", "/exit", "exit":
				return nil
			case "help", "/help":
				fmt.Fprintln(r.out, simHelp)
				continue
			}

			evt, err := r.parse(line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				continue
			}
			sink.HandleEvent(ctx, evt)
			fmt.Fprintf(r.out, "delivered %s (%d fragment(s))\n", evt.ID, len(evt.PDUs))
		}
	}
}

// parse turns one command line into a delivery event. Only the verb,
// action and sender are shell-split; the body is kept as typed, minus one
// enclosing pair of double quotes.
func (r *REPL) parse(line string) (transport.DeliveryEvent, error) {
	verb, rest, err := nextWord(line)
	if err != nil {
		return transport.DeliveryEvent{}, err
	}
	if verb == "" {
		return transport.DeliveryEvent{}, errors.New("empty command")
	}

	evt := transport.DeliveryEvent{ID: uuid.NewString(), Action: transport.ActionSMSReceived}
	switch strings.ToLower(verb) {
	case "sms":
		head, body, err := splitHead(rest, 1)
		if err != nil {
			return transport.DeliveryEvent{}, err
		}
		if len(head) < 1 || body == "" {
			return transport.DeliveryEvent{}, errors.New("usage: sms <sender> <body...>")
		}
		pdu, err := sms.EncodeDeliver(head[0], unquoteBody(body), r.now())
		if err != nil {
			return transport.DeliveryEvent{}, err
		}
		evt.PDUs = [][]byte{pdu}
	case "event":
		head, body, err := splitHead(rest, 2)
		if err != nil {
			return transport.DeliveryEvent{}, err
		}
		if len(head) < 2 || body == "" {
			return transport.DeliveryEvent{}, errors.New("usage: event <action> <sender> <body...>")
		}
		pdu, err := sms.EncodeDeliver(head[1], unquoteBody(body), r.now())
		if err != nil {
			return transport.DeliveryEvent{}, err
		}
		evt.Action = head[0]
		evt.PDUs = [][]byte{pdu}
	case "raw":
		args, err := shlex.Split(rest)
		if err != nil {
			return transport.DeliveryEvent{}, fmt.Errorf("parse command: %w", err)
		}
		if len(args) == 0 {
			return transport.DeliveryEvent{}, errors.New("usage: raw <hex-pdu>...")
		}
		var invalid int
		evt.PDUs, invalid = decodeFragments(args)
		if invalid > 0 {
			fmt.Fprintf(r.out, "warning: %d fragment(s) are not valid hex\n", invalid)
		}
	default:
		return transport.DeliveryEvent{}, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return evt, nil
}

// splitHead reads up to n leading words from s and returns them with the
// untouched remainder.
func splitHead(s string, n int) ([]string, string, error) {
	var head []string
	for len(head) < n {
		word, rest, err := nextWord(s)
		if err != nil {
			return nil, "", err
		}
		if word == "" {
			break
		}
		head = append(head, word)
		s = rest
	}
	return head, strings.TrimLeft(s, " \t"), nil
}

// nextWord shell-splits the first whitespace-delimited word of s, honouring
// quotes and backslash escapes. It returns "" at end of input.
func nextWord(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", nil
	}

	end := 0
	for quote := byte(0); end < len(s); end++ {
		c := s[end]
		if quote == 0 && (c == ' ' || c == '\t') {
			break
		}
		switch {
		case c == '\\' && quote != '\'':
			end++
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		}
	}
	end = min(end, len(s))

	words, err := shlex.Split(s[:end])
	if err != nil {
		return "", "", fmt.Errorf("parse command: %w", err)
	}
	if len(words) != 1 || words[0] == "" {
		return "", "", fmt.Errorf("parse command: unusable word %q", s[:end])
	}
	return words[0], s[end:], nil
}

func unquoteBody(body string) string {
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' && !strings.Contains(body[1:len(body)-1], `"`) {
		return body[1 : len(body)-1]
	}
	return body
}

func (r *REPL) ensureInputReady() {
	if r.rl != nil || r.fallback != nil {
		return
	}
	rl, err := newReadline(r.in, r.out.w)
	if err == nil {
		r.rl = rl
		return
	}
	r.fallback = bufio.NewReader(r.in)
}

func (r *REPL) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if r.rl != nil {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", io.EOF
			}
			return "", err
		}
		return line, nil
	}

	if _, err := fmt.Fprint(r.out, defaultSimPrompt); err != nil {
		return "", err
	}
	line, err := r.fallback.ReadString('\n')
	if err != nil {
		if len(line) > 0 {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (r *REPL) readInputLoop(ctx context.Context, out chan<- inputEvent) {
	defer close(out)
	for {
		line, err := r.readLine(ctx)
		select {
		case out <- inputEvent{line: line, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

type inputEvent struct {
	line string
	err  error
}

// syncWriter serializes prompt writes from the reader goroutine with
// command output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func newReadline(in io.Reader, out io.Writer) (*readline.Instance, error) {
	stdin, ok := in.(io.ReadCloser)
	if !ok {
		return nil, fmt.Errorf("stdin is not read-closer")
	}
	inFile, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(inFile.Fd())) {
		return nil, fmt.Errorf("stdin is not terminal")
	}
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return nil, fmt.Errorf("stdout is not terminal")
	}

	return readline.NewEx(&readline.Config{
		Prompt:          defaultSimPrompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".mpesa_sim_history"),
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           stdin,
		Stdout:          out,
		Stderr:          out,
	})
}
