package evidence

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Tracer measures the network path to a host.
type Tracer interface {
	Trace(ctx context.Context, host string) (Trace, error)
}

// Trace is the output of one path trace.
type Trace struct {
	Host  string
	Lines []string
	Hops  int
}

// Traceroute runs the system traceroute binary.
type Traceroute struct {
	Command string
	MaxHops int
	Wait    time.Duration
	Timeout time.Duration
}

// Trace runs Command against host and counts the hops in its output.
func (t Traceroute) Trace(ctx context.Context, host string) (Trace, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	wait := int(t.Wait / time.Second)
	if wait < 1 {
		wait = 1
	}

	cmd := exec.CommandContext(ctx, t.Command,
		"-m", strconv.Itoa(t.MaxHops),
		"-w", strconv.Itoa(wait),
		host,
	)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return Trace{}, fmt.Errorf("trace %s timed out: %w", host, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return Trace{}, fmt.Errorf("%s is not installed: %w", t.Command, err)
	}
	if err != nil && len(out) == 0 {
		return Trace{}, fmt.Errorf("trace %s: %w", host, err)
	}

	tr := ParseTrace(string(out), t.MaxHops)
	tr.Host = host
	if len(tr.Lines) == 0 {
		return Trace{}, fmt.Errorf("trace %s: no output", host)
	}
	return tr, nil
}

// ParseTrace keeps the header plus at most maxHops lines of traceroute
// output and counts the lines that begin with a hop number.
func ParseTrace(out string, maxHops int) Trace {
	var tr Trace
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if maxHops > 0 && len(tr.Lines) > maxHops {
			break
		}
		tr.Lines = append(tr.Lines, line)
		if unicode.IsDigit(rune(line[0])) {
			tr.Hops++
		}
	}
	return tr
}

// traceHosts traces every host. Failed traces are left out of the result.
func (g *Gatherer) traceHosts(ctx context.Context, hosts []string) (map[string]Trace, []error) {
	if g.clients.Tracer == nil {
		return nil, []error{unavailable("trace", errors.New("no tracer configured"))}
	}

	traces := make(map[string]Trace, len(hosts))
	var errs []error
	for _, host := range hosts {
		if strings.ContainsAny(host, "<>") {
			continue
		}
		tr, err := g.clients.Tracer.Trace(ctx, host)
		if err != nil {
			g.logFailure("Trace", host, err)
			errs = append(errs, unavailable("trace "+host, err))
			continue
		}
		traces[host] = tr
	}
	return traces, errs
}
