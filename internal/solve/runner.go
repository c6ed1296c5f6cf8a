// Package solve drives the task-chain traversal: fetch a task page,
// extract an answer, submit it, and follow the server's response to the
// next task until the chain ends or a time budget expires.
package solve

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/config"
	"github.com/sells-group/solver-cli/internal/extract"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/submit"
)

// errTaskDeadline reports that a task's budget elapsed before any
// submission could start. The run terminates cleanly, never with a
// panic or a lost history.
var errTaskDeadline = eris.New("solve: task budget exhausted before submission")

// state names the navigator's position within one task cycle; used for
// structured logs only.
type state string

const (
	stateFetching   state = "fetching"
	stateExtracting state = "extracting"
	stateSubmitting state = "submitting"
	stateEvaluating state = "evaluating"
)

// Runner is the chain navigator: the state machine sequencing fetch,
// extract, submit, and advance for one run at a time. A Runner is
// single-use per run but holds no cross-run state other than its
// collaborators; a hosting process may drive independent Runners
// concurrently.
type Runner struct {
	src       fetch.Source
	chain     *extract.Chain
	submitter *submit.Submitter
	budgets   config.BudgetConfig
}

// NewRunner creates a Runner over its collaborators.
func NewRunner(src fetch.Source, chain *extract.Chain, submitter *submit.Submitter, budgets config.BudgetConfig) *Runner {
	return &Runner{src: src, chain: chain, submitter: submitter, budgets: budgets}
}

// Run traverses the chain from startURL until the server stops returning
// a next-task pointer, the run budget expires, or a fatal error occurs.
// The returned summary always carries the history collected so far, and
// the fetch source is closed on every exit path.
func (r *Runner) Run(ctx context.Context, id model.Identity, startURL string) *model.RunSummary {
	start := time.Now()
	runDeadline := start.Add(r.budgets.RunBudget())
	rec := NewRecorder()

	summary := &model.RunSummary{
		RunID:  uuid.NewString(),
		Status: model.RunCompleted,
	}
	log := zap.L().With(zap.String("run_id", summary.RunID), zap.String("start_url", startURL))
	log.Info("solve: starting run")

	defer func() {
		if err := r.src.Close(); err != nil {
			log.Warn("solve: close fetch source", zap.Error(err))
		}
	}()

	// delay requested by the previous submission response; honored before
	// the next network call of any kind.
	var pendingDelay time.Duration

	current := startURL
	for current != "" {
		if !time.Now().Before(runDeadline) {
			log.Info("solve: run budget exhausted", zap.Int("tasks", summary.Tasks))
			summary.Status = model.RunTimeUp
			break
		}

		summary.Tasks++
		task := &model.Task{
			URL:      current,
			Deadline: time.Now().Add(r.budgets.TaskBudget()),
		}

		next, err := r.processTask(ctx, id, task, rec, &pendingDelay)
		if err != nil {
			if errors.Is(err, errTaskDeadline) {
				summary.Status = model.RunTimeUp
			} else {
				summary.Status = model.RunError
				summary.Err = err.Error()
			}
			log.Warn("solve: run ended on error", zap.Error(err))
			break
		}
		current = next
	}

	summary.Duration = time.Since(start)
	summary.History = rec.Snapshot()
	log.Info("solve: run finished",
		zap.String("status", string(summary.Status)),
		zap.Int("tasks", summary.Tasks),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

// processTask runs one task to its decision: the next URL to advance to
// ("" to terminate) or a fatal error. Retries of the same task re-run
// extraction and submission on the already-fetched page; re-extraction is
// deterministic and may resubmit the same answer, an accepted limitation.
func (r *Runner) processTask(ctx context.Context, id model.Identity, task *model.Task, rec *Recorder, pendingDelay *time.Duration) (string, error) {
	log := zap.L().With(zap.String("task_url", task.URL))

	log.Info("solve: task state", zap.String("state", string(stateFetching)))
	r.sleepPending(ctx, pendingDelay)
	page, err := r.src.Fetch(ctx, task.URL)
	if err != nil {
		rec.Append(model.AttemptRecord{
			TaskURL:   task.URL,
			Err:       err.Error(),
			Timestamp: time.Now(),
		})
		return "", eris.Wrap(err, "solve: fetch task page")
	}

	cat := classify.Classify(task.URL, page.HTML)
	log.Info("solve: task classified", zap.String("category", string(cat)))

	var last *model.SubmissionResult
	for {
		log.Info("solve: task state",
			zap.String("state", string(stateExtracting)),
			zap.Int("attempt", task.Attempt),
		)
		cand := r.chain.Extract(ctx, page, cat)
		payload := model.NewPayload(id, task.URL, cand.Answer, cand.Template)
		if cand.Note != "" {
			payload.SetNote(cand.Note)
		}

		endpoint, err := submit.DiscoverEndpoint(page)
		if err != nil {
			rec.Append(model.AttemptRecord{
				TaskURL:   task.URL,
				Attempt:   task.Attempt,
				Payload:   payload.Fields,
				Extractor: cand.Source,
				Err:       err.Error(),
				Timestamp: time.Now(),
			})
			return "", err
		}

		// Never start a new network call once the task budget has elapsed.
		if task.TimeLeft(time.Now()) <= 0 {
			if last != nil {
				return last.NextURL, nil
			}
			rec.Append(model.AttemptRecord{
				TaskURL:   task.URL,
				Attempt:   task.Attempt,
				Payload:   payload.Fields,
				Extractor: cand.Source,
				Err:       errTaskDeadline.Error(),
				Timestamp: time.Now(),
			})
			return "", errTaskDeadline
		}

		log.Info("solve: task state",
			zap.String("state", string(stateSubmitting)),
			zap.String("endpoint", endpoint),
		)
		r.sleepPending(ctx, pendingDelay)
		result, err := r.submitter.Submit(ctx, endpoint, payload, task.Deadline)

		attempt := model.AttemptRecord{
			TaskURL:   task.URL,
			Attempt:   task.Attempt,
			SubmitURL: endpoint,
			Payload:   payload.Fields,
			Extractor: cand.Source,
			Timestamp: time.Now(),
		}
		if err != nil {
			attempt.Err = err.Error()
			rec.Append(attempt)
			return "", eris.Wrap(err, "solve: submission failed")
		}
		attempt.Result = result
		rec.Append(attempt)
		last = result

		if result.RetryDelay > 0 {
			*pendingDelay = result.RetryDelay
		}

		log.Info("solve: task state",
			zap.String("state", string(stateEvaluating)),
			zap.Int("correct", int(result.Correct)),
			zap.String("next_url", result.NextURL),
		)

		// The last response alone decides. A next pointer always wins:
		// url presence dominates correctness when deciding to advance.
		if result.NextURL != "" {
			return result.NextURL, nil
		}

		// No next pointer: retry the same task while the answer is not
		// confirmed correct and budget and attempts remain, else the
		// chain is over.
		if result.Correct == model.CorrectYes ||
			task.Attempt+1 >= r.budgets.MaxAttempts ||
			task.TimeLeft(time.Now()) <= 0 {
			return "", nil
		}
		task.Attempt++
	}
}

// sleepPending honors a server-suggested delay before the next network
// call, then clears it. Context cancellation cuts the sleep short.
func (r *Runner) sleepPending(ctx context.Context, pendingDelay *time.Duration) {
	d := *pendingDelay
	if d <= 0 {
		return
	}
	*pendingDelay = 0

	zap.L().Debug("solve: honoring server delay", zap.Duration("delay", d))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
