package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskmux/taskmux/config"
	"github.com/taskmux/taskmux/internal/capability"
	"github.com/taskmux/taskmux/internal/telemetry"
	"github.com/taskmux/taskmux/provider"
)

var dispatchTracer trace.Tracer = otel.Tracer("taskmux/internal/dispatch")

// Dispatcher resolves planned tasks against the capability registry,
// executes them concurrently and aggregates the results by action name.
type Dispatcher struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	registry  *capability.Registry
	planner   *Planner
	formatter capability.Provider

	// Concurrency control
	semaphore chan struct{}
}

// NewDispatcher creates a new dispatcher instance. The formatter is invoked
// exactly once per Process call, after the fan-out joins; it is never part
// of the concurrent batch.
func NewDispatcher(cfg *config.Config, oracle provider.Provider, registry *capability.Registry, formatter capability.Provider, tele *telemetry.Telemetry) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		logger:    log.New(log.Writer(), "[DISPATCHER] ", log.LstdFlags),
		telemetry: tele,
		registry:  registry,
		planner:   NewPlanner(cfg, oracle, registry.Actions(), tele),
		formatter: formatter,
		semaphore: make(chan struct{}, cfg.Dispatch.MaxConcurrentTasks),
	}
}

// Dispatch converts a request into a plan, fans the resolved tasks out
// concurrently and returns the per-action aggregate.
//
// Failure semantics follow dispatch.isolate_failures: by default the join is
// all-or-nothing and the first provider error aborts the whole batch; with
// isolation enabled a failing task is dropped and the rest of the aggregate
// survives.
func (d *Dispatcher) Dispatch(ctx context.Context, request string) (capability.Aggregate, error) {
	cycleID := uuid.New().String()
	start := time.Now()

	ctx, span := dispatchTracer.Start(ctx, "dispatch.cycle",
		trace.WithAttributes(attribute.String("dispatch.cycle_id", cycleID)))
	defer span.End()

	plan, err := d.planner.Parse(ctx, request)
	if err != nil {
		d.telemetry.RecordDispatch(false, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("dispatch.planned_tasks", len(plan.Tasks)))

	aggregate, err := d.executeTasks(ctx, plan)
	if err != nil {
		d.telemetry.RecordDispatch(false, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.telemetry.RecordDispatch(true, time.Since(start))
	span.SetAttributes(attribute.Int("dispatch.aggregated_actions", len(aggregate)))
	span.SetStatus(codes.Ok, "completed")
	d.logger.Printf("cycle %s: %d tasks planned, %d actions aggregated in %v",
		cycleID, len(plan.Tasks), len(aggregate), time.Since(start))
	return aggregate, nil
}

// Process runs a full request cycle: dispatch, then one final-formatter
// invocation over the aggregate.
func (d *Dispatcher) Process(ctx context.Context, request string) (capability.Aggregate, string, error) {
	aggregate, err := d.Dispatch(ctx, request)
	if err != nil {
		return nil, "", err
	}
	formatted, err := d.formatter.Run(ctx, map[string]interface{}{"aggregate": aggregate})
	if err != nil {
		return nil, "", fmt.Errorf("final formatting failed: %w", err)
	}
	text, _ := formatted.Payload["formatted_text"].(string)
	return aggregate, text, nil
}

// executeTasks resolves and launches every task concurrently, then joins.
func (d *Dispatcher) executeTasks(ctx context.Context, plan Plan) (capability.Aggregate, error) {
	type resolved struct {
		task     Task
		provider capability.Provider
	}
	var ready []resolved
	for _, task := range plan.Tasks {
		p, ok := d.registry.Lookup(task.Action)
		if !ok {
			d.logger.Printf("no matching provider found for action %q, dropping task", task.Action)
			d.telemetry.RecordDroppedTask(task.Action)
			continue
		}
		ready = append(ready, resolved{task: task, provider: p})
	}

	// completed holds results in completion order; a later arrival for the
	// same action overwrites the earlier one during aggregation.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed []capability.Result
	)
	errCh := make(chan error, len(ready))

	for _, r := range ready {
		wg.Add(1)
		go func(t Task, p capability.Provider) {
			defer wg.Done()

			d.semaphore <- struct{}{}
			defer func() { <-d.semaphore }()

			taskCtx, taskSpan := dispatchTracer.Start(ctx, "dispatch.task",
				trace.WithAttributes(
					attribute.String("task.action", t.Action),
					attribute.String("task.provider", p.Name()),
				))
			defer taskSpan.End()

			runCtx, cancel := context.WithTimeout(taskCtx, d.cfg.Dispatch.TaskTimeout)
			defer cancel()

			taskStart := time.Now()
			result, err := p.Run(runCtx, t.Params)
			d.telemetry.RecordTask(t.Action, err == nil, time.Since(taskStart))
			if err != nil {
				taskSpan.RecordError(err)
				taskSpan.SetStatus(codes.Error, err.Error())
				errCh <- fmt.Errorf("task %q failed: %w", t.Action, err)
				return
			}
			taskSpan.SetStatus(codes.Ok, "completed")

			mu.Lock()
			completed = append(completed, result)
			mu.Unlock()
		}(r.task, r.provider)
	}

	wg.Wait()
	close(errCh)

	var failures []error
	for err := range errCh {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		if !d.cfg.Dispatch.IsolateFailures {
			// All-or-nothing join: no partial aggregate for this cycle.
			return nil, failures[0]
		}
		for _, err := range failures {
			d.logger.Printf("isolated task failure: %v", err)
		}
	}

	// Key each result by action in completion order; later arrivals win.
	aggregate := make(capability.Aggregate, len(completed))
	for _, result := range completed {
		aggregate[result.Action] = result
	}
	return aggregate, nil
}
