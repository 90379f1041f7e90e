package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/revision"
	"ai-editorial-be/pkg/workflow"

	"github.com/fatih/color"
)

// driver plays the user: it applies commands to the state machine, feeds
// stream events to the interpreter and decides every edit the same way.
type driver struct {
	machine *workflow.Machine
	client  *revision.Client
	approve bool
	out     io.Writer
}

func newDriver(catalog *editor.Catalog, baseURL string, approve bool, out io.Writer) *driver {
	return &driver{
		machine: workflow.NewMachine(catalog),
		client:  revision.NewClient(baseURL, "", 30*time.Second),
		approve: approve,
		out:     out,
	}
}

func (d *driver) Run(ctx context.Context, stageIDs []string, content string) error {
	tr, err := d.machine.Begin(workflow.NewState(), stageIDs, content)
	d.print(tr.Messages)
	if err != nil {
		return err
	}
	if tr.Effect != workflow.EffectStartRevision {
		return fmt.Errorf("workflow is waiting in step %s", tr.State.Step)
	}

	stream, err := d.client.Start(ctx, workflow.StartRequest(tr.State))
	if err != nil {
		return err
	}
	st := d.consume(tr.State, stream)

	for st.Step == workflow.StepAwaitingApproval {
		st, err = d.decide(st)
		if err != nil {
			return err
		}

		if st.Continuation.IsLastStage || !st.Continuation.Sequential {
			return d.finalize(ctx, st)
		}

		req, next, err := d.machine.PrepareAdvance(st, "")
		d.print(next.Messages)
		if errors.Is(err, workflow.ErrNoNextStage) {
			return d.finalize(ctx, st)
		}
		if err != nil {
			return err
		}

		stream, err := d.client.Continue(ctx, req)
		if err != nil {
			d.print(d.machine.ContinueFailed(st, err).Messages)
			return err
		}
		st = d.consume(next.State, stream)
	}

	return fmt.Errorf("workflow ended in step %s without a final document", st.Step)
}

func (d *driver) consume(st workflow.State, stream *revision.Stream) workflow.State {
	defer stream.Close()

	interp := d.machine.Interpreter()
	for {
		ev, err := stream.Next()
		switch {
		case err == nil:
			var msgs []workflow.Message
			st, msgs = interp.Apply(st, ev)
			d.print(msgs)
		case errors.Is(err, io.EOF):
			next, msgs := interp.Finish(st, nil)
			d.print(msgs)
			return next
		case errors.Is(err, revision.ErrMalformedEvent):
			color.Red("skipping malformed event: %v", err)
		default:
			next, msgs := interp.Finish(st, err)
			d.print(msgs)
			return next
		}
	}
}

// decide applies the same verdict to every pending paragraph and every
// feedback item.
func (d *driver) decide(st workflow.State) (workflow.State, error) {
	for _, index := range st.Ledger.Pending() {
		var (
			tr  workflow.Transition
			err error
		)
		if d.approve {
			tr, err = d.machine.Approve(st, index)
		} else {
			tr, err = d.machine.Decline(st, index)
		}
		if err != nil {
			return st, err
		}
		st = tr.State
	}

	tr, err := d.machine.DecideAllFeedback(st, d.approve)
	if err != nil {
		return st, err
	}
	d.print(tr.Messages)
	return tr.State, nil
}

func (d *driver) finalize(ctx context.Context, st workflow.State) error {
	req, tr, err := d.machine.PrepareFinalize(st, true)
	d.print(tr.Messages)
	if err != nil {
		return err
	}

	color.Cyan("Generating final document...")
	resp, err := d.client.Finalize(ctx, req)
	if err != nil {
		d.print(d.machine.FinalizeFailed(st, err).Messages)
		return err
	}

	done := d.machine.CompleteFinalize(st, resp)
	d.print(done.Messages)
	return nil
}

func (d *driver) print(msgs []workflow.Message) {
	for _, m := range msgs {
		switch m.Kind {
		case workflow.MessagePrompt:
			color.New(color.FgYellow).Fprintf(d.out, "? %s\n", m.Text)
		case workflow.MessageResult:
			color.New(color.FgGreen, color.Bold).Fprintln(d.out, "== Result ==")
			fmt.Fprintln(d.out, m.Text)
		default:
			color.New(color.FgCyan).Fprintf(d.out, "> %s\n", m.Text)
		}
		if review, ok := m.Data.(workflow.Review); ok {
			fmt.Fprintf(d.out, "  %d paragraphs, %d pending, feedback %d/%d decided\n",
				len(review.Paragraphs), len(review.Pending),
				review.Feedback.Approved+review.Feedback.Rejected, review.Feedback.Total)
		}
	}
}
