// Package replicator implements the replicated executor (C6, spec.md
// §4.6): it wraps the local executor (C4) and the replication log (C5) so
// that a write committed on the leader is guaranteed applied locally
// before the caller's future completes, while reads bypass the log
// entirely.
package replicator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/executor"
	"github.com/opendogma/dogma/internal/replication"
	"github.com/opendogma/dogma/internal/storage"
)

// outcome is the recorded disposition of one applied log entry: either a
// successful Result or the business error the command failed with
// (spec.md §4.5 "storage errors bubble up unchanged through C4; C6 adds
// replication-layer errors").
type outcome struct {
	result executor.Result
	err    error
}

// Option configures a Replicator.
type Option func(*Replicator)

// WithHTTPClient overrides the client used to forward writes to the
// current leader. Mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Replicator) { r.client = c }
}

// WithLogger attaches a logger.
func WithLogger(l mlog.Logger) Option {
	return func(r *Replicator) { r.logger = l }
}

// Replicator is the C6 replicated executor.
type Replicator struct {
	local *executor.Executor
	store storage.Storage
	log   replication.Log

	selfID  string
	servers map[string]replication.ServerSpec

	client *http.Client
	logger mlog.Logger

	mu       sync.Mutex
	outcomes map[int64]outcome
	waiters  map[int64][]chan struct{}

	lastApplied func() int64

	divergedMu sync.Mutex
	diverged   bool
	divergeSeq int64
	divergeErr error
}

// New builds a Replicator. selfID and servers are used purely to resolve
// the current leader's forwarding address (spec.md §4.6); servers may be
// nil in standalone mode, since a standalone log is always its own leader.
func New(local *executor.Executor, store storage.Storage, log replication.Log, selfID string, servers map[string]replication.ServerSpec, opts ...Option) *Replicator {
	r := &Replicator{
		local:    local,
		store:    store,
		log:      log,
		selfID:   selfID,
		servers:  servers,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   &mlog.NoneLogger{},
		outcomes: make(map[int64]outcome),
		waiters:  make(map[int64][]chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start begins participating in the log and the apply loop.
func (r *Replicator) Start(ctx context.Context) error {
	if err := r.log.Start(ctx); err != nil {
		return err
	}

	r.lastApplied = replication.RunApplyLoop(ctx, r.logger, r.log, 0, r.applyEntry, r.onDivergence)

	return nil
}

// Stop releases leadership and disconnects the log. The apply loop exits
// on its own when ctx (passed to Start) is cancelled.
func (r *Replicator) Stop(ctx context.Context) error {
	return r.log.Stop(ctx)
}

// AppliedSeq reports the last log seq this replica has applied locally,
// exposed so clients can read-your-writes by polling (spec.md §5
// "Ordering guarantees").
func (r *Replicator) AppliedSeq() int64 {
	if r.lastApplied == nil {
		return 0
	}

	return r.lastApplied()
}

// Execute runs a write command (spec.md §4.6). On the leader, it appends
// to the log and waits for the local apply to complete before returning.
// On a follower, it forwards to the current leader over HTTP.
func (r *Replicator) Execute(ctx context.Context, cmd command.Command) (executor.Result, error) {
	r.divergedMu.Lock()
	diverged, divergeSeq, divergeErr := r.diverged, r.divergeSeq, r.divergeErr
	r.divergedMu.Unlock()

	if diverged {
		return executor.Result{}, common.NewReplicationDivergenceError(divergeSeq, divergeErr)
	}

	if !r.log.IsLeader() {
		return r.forward(ctx, cmd)
	}

	entry, err := r.log.Append(ctx, cmd)
	if err != nil {
		return executor.Result{}, err
	}

	return r.awaitApplied(ctx, entry.Seq)
}

// GetFile, History and PreviewDiff are reads (spec.md §4.6 "bypass C5,
// return localExecutor.execute(cmd) directly") and go straight to local
// storage regardless of leadership.

func (r *Replicator) GetFile(ctx context.Context, project, repository string, rev command.Revision, path string) ([]byte, error) {
	return r.store.GetFile(ctx, project, repository, rev, path)
}

func (r *Replicator) History(ctx context.Context, project, repository string, from, to command.Revision) ([]storage.Entry, error) {
	return r.store.History(ctx, project, repository, from, to)
}

func (r *Replicator) PreviewDiff(ctx context.Context, project, repository string, base command.Revision, changes []command.Change) ([]command.Change, error) {
	return r.store.PreviewDiff(ctx, project, repository, base, changes)
}

func (r *Replicator) NormalizeRevision(ctx context.Context, project, repository string, rev command.Revision) (command.Revision, error) {
	return r.store.NormalizeRevision(ctx, project, repository, rev)
}

func (r *Replicator) awaitApplied(ctx context.Context, seq int64) (executor.Result, error) {
	r.mu.Lock()

	if out, ok := r.outcomes[seq]; ok {
		delete(r.outcomes, seq)
		r.mu.Unlock()

		return out.result, out.err
	}

	ch := make(chan struct{})
	r.waiters[seq] = append(r.waiters[seq], ch)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return executor.Result{}, ctx.Err()
	case <-ch:
	}

	r.mu.Lock()
	out := r.outcomes[seq]
	delete(r.outcomes, seq)
	r.mu.Unlock()

	return out.result, out.err
}

// applyEntry is the apply loop's ApplyFunc. It always executes the
// command locally; a genuine storage I/O error is returned so the apply
// loop retries the same entry (spec.md §4.5 "retries are safe because the
// command's fingerprint makes idempotent replay detectable"), any other
// outcome (success or a business error like Conflict) is delivered to the
// waiting caller and the entry is considered applied.
func (r *Replicator) applyEntry(ctx context.Context, entry replication.Entry) error {
	result, err := r.local.Execute(ctx, entry.Command)

	if err != nil && common.KindOf(err) == common.KindStorageIO {
		return err
	}

	r.deliver(entry.Seq, outcome{result, err})

	return nil
}

func (r *Replicator) deliver(seq int64, out outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	waiters, ok := r.waiters[seq]
	if !ok {
		// No one is waiting locally (this entry came from another
		// leader's append, or this replica restarted); stash the
		// outcome in case a slow awaitApplied registers moments later,
		// bounded implicitly by seq reuse never happening.
		r.outcomes[seq] = out
		return
	}

	r.outcomes[seq] = out
	delete(r.waiters, seq)

	for _, ch := range waiters {
		close(ch)
	}
}

// onDivergence is the apply loop's DivergenceFunc: a non-retryable
// storage failure broke the at-most-once guarantee, so this replica must
// stop accepting further writes until an operator intervenes (spec.md
// §4.5).
func (r *Replicator) onDivergence(seq int64, err error) {
	r.divergedMu.Lock()
	r.diverged = true
	r.divergeSeq = seq
	r.divergeErr = err
	r.divergedMu.Unlock()

	r.logger.Errorf("replicator: replica marked diverged at seq=%d: %v", seq, err)
}

// forwardRequest/forwardResponse are the wire shapes for the internal
// command-forwarding endpoint a follower calls on the current leader.
type forwardRequest struct {
	CommandJSON json.RawMessage `json:"command"`
}

type forwardResponse struct {
	Result *executor.Result `json:"result,omitempty"`
	Error  *forwardError    `json:"error,omitempty"`
}

type forwardError struct {
	Kind string `json:"kind"`
	Msg  string `json:"message"`
}

func (r *Replicator) forward(ctx context.Context, cmd command.Command) (executor.Result, error) {
	leaderID, ok := r.log.Leader()
	if !ok {
		return executor.Result{}, common.NewNotLeaderError("unknown")
	}

	spec, ok := r.servers[leaderID]
	if !ok {
		return executor.Result{}, common.NewNotLeaderError(leaderID)
	}

	payload, err := command.Encode(cmd)
	if err != nil {
		return executor.Result{}, fmt.Errorf("encoding command: %w", err)
	}

	body, err := json.Marshal(forwardRequest{CommandJSON: payload})
	if err != nil {
		return executor.Result{}, fmt.Errorf("marshalling forward request: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/internal/commands", spec.Host, spec.APIPort)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return executor.Result{}, fmt.Errorf("building forward request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return executor.Result{}, common.NewNotLeaderError(leaderID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// The leader changed mid-request; fail fast so the caller can
		// retry against the new leader (spec.md §4.6).
		return executor.Result{}, common.NewNotLeaderError(leaderID)
	}

	var out forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return executor.Result{}, fmt.Errorf("decoding forward response: %w", err)
	}

	if out.Error != nil {
		return executor.Result{}, &common.DogmaError{Kind: common.Kind(out.Error.Kind), Msg: out.Error.Msg}
	}

	if out.Result == nil {
		return executor.Result{}, fmt.Errorf("forward response missing result")
	}

	return *out.Result, nil
}

// ForwardHandler is the fiber handler a follower's forward call lands on:
// decode, Execute locally (this replica must be leader), and answer with
// the same forwardResponse shape forward() expects to decode.
func (r *Replicator) ForwardHandler(c *fiber.Ctx) error {
	var req forwardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(forwardResponse{
			Error: &forwardError{Kind: string(common.KindInvalidCommand), Msg: err.Error()},
		})
	}

	cmd, err := command.Decode(req.CommandJSON)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(forwardResponse{
			Error: &forwardError{Kind: string(common.KindInvalidCommand), Msg: err.Error()},
		})
	}

	if !r.log.IsLeader() {
		return c.Status(fiber.StatusConflict).JSON(forwardResponse{
			Error: &forwardError{Kind: string(common.KindNotLeader), Msg: "replica is no longer leader"},
		})
	}

	result, err := r.Execute(c.UserContext(), cmd)
	if err != nil {
		status := fiber.StatusInternalServerError

		kind := common.KindOf(err)
		if kind == common.KindNotLeader {
			status = fiber.StatusConflict
		}

		return c.Status(status).JSON(forwardResponse{Error: &forwardError{Kind: string(kind), Msg: err.Error()}})
	}

	return c.JSON(forwardResponse{Result: &result})
}
