// Package dispatcher runs the worker pool: it pulls jobs off the Redis
// stream, drives the compression engine or text operations, and decides
// between completion, delayed retry, and the dead-letter queue.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/compress"
	"github.com/local/pdfsqueeze/internal/config"
	"github.com/local/pdfsqueeze/internal/docmodel"
	"github.com/local/pdfsqueeze/internal/metrics"
	"github.com/local/pdfsqueeze/internal/store"
	"github.com/local/pdfsqueeze/internal/textops"
)

// Queue is the slice of the job queue the workers need.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	IsIdemDone(ctx context.Context, key string) (bool, error)
	MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
}

// StatusStore is the slice of the status store the workers need.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	SetProgress(ctx context.Context, jobID, stage string, progress int) error
	SetResult(ctx context.Context, jobID string, res *compress.Result) error
}

// Resolver turns a job input reference into a local PDF path.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, func(), error)
}

// Publisher pushes a finished artifact to remote storage.
type Publisher interface {
	Publish(ctx context.Context, jobID, localPath string) (string, error)
}

type Worker struct {
	cfg       config.WorkerConfig
	q         Queue
	st        StatusStore
	provider  docmodel.Provider
	resolver  Resolver
	publisher Publisher
	stop      chan struct{}
}

func New(cfg config.WorkerConfig, q Queue, st StatusStore, provider docmodel.Provider) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Worker{cfg: cfg, q: q, st: st, provider: provider, stop: make(chan struct{})}
}

// WithResolver makes the worker fetch remote inputs and convert office
// documents before processing. Without one, InputPath is used as-is.
func (w *Worker) WithResolver(r Resolver) *Worker {
	w.resolver = r
	return w
}

// WithPublisher makes the worker upload finished artifacts to remote
// storage on top of the local result copy.
func (w *Worker) WithPublisher(p Publisher) *Worker {
	w.publisher = p
	return w
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.loop(i)
	}
}

func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	return nil
}

func (w *Worker) loop(id int) {
	consumer := fmt.Sprintf("worker-%d", id)
	log.Info().Int("worker", id).Msg("dispatcher worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		default:
		}

		msgID, data, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if data == nil {
			continue
		}

		w.handle(msgID, data)
	}
}

func (w *Worker) handle(msgID string, data []byte) {
	bg := context.Background()
	defer func() {
		if err := w.q.Ack(bg, msgID); err != nil {
			log.Error().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}()

	var job Job
	if err := json.Unmarshal(data, &job); err != nil || job.JobID == "" {
		log.Error().Err(err).Msg("unparseable job payload, dropping to dlq")
		_ = w.q.AddDLQ(bg, data, "unparseable payload")
		metrics.IncProcessed("dlq")
		return
	}

	if job.IdemKey != "" {
		if done, _ := w.q.IsIdemDone(bg, job.IdemKey); done {
			log.Info().Str("job_id", job.JobID).Msg("duplicate job skipped via idempotency key")
			return
		}
	}
	if cancelled, _ := w.q.IsCancelled(bg, job.JobID); cancelled {
		log.Warn().Str("job_id", job.JobID).Msg("job cancelled before processing")
		w.setTerminal(job.JobID, store.StatusCancelled, "cancelled before processing", "")
		metrics.IncProcessed("cancelled")
		return
	}

	now := time.Now()
	_ = w.st.Set(bg, job.JobID, store.Status{Status: store.StatusProcessing, Start: &now})

	ctx, cancel := context.WithTimeout(bg, w.cfg.JobTimeout)
	defer cancel()
	stopWatch := w.watchCancel(ctx, cancel, job.JobID)
	defer stopWatch()

	start := time.Now()
	err := w.process(ctx, &job)
	if err == nil {
		w.notifyDone(job.JobID)
		if job.IdemKey != "" {
			_ = w.q.MarkIdemDone(bg, job.IdemKey, 24*time.Hour)
		}
		metrics.IncProcessed("success")
		return
	}

	if cancelled, _ := w.q.IsCancelled(bg, job.JobID); cancelled {
		w.setTerminal(job.JobID, store.StatusCancelled, "cancelled", "")
		metrics.IncProcessed("cancelled")
		return
	}

	if !isRetryable(err) {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("job failed permanently")
		w.setTerminal(job.JobID, store.StatusFailed, err.Error(), "")
		metrics.IncProcessed("failed")
		return
	}

	job.Attempt++
	if job.Attempt < w.cfg.JobMaxAttempts {
		delay := w.backoff(job.Attempt)
		payload, _ := json.Marshal(job)
		if qerr := w.q.EnqueueDelayed(bg, payload, time.Now().Add(delay)); qerr == nil {
			log.Warn().Err(err).
				Str("job_id", job.JobID).
				Int("attempt", job.Attempt).
				Dur("delay", delay).
				Dur("took", time.Since(start)).
				Msg("job failed, retrying")
			metrics.IncRetry()
			_ = w.st.Set(bg, job.JobID, store.Status{Status: store.StatusQueued, Message: fmt.Sprintf("retry %d scheduled", job.Attempt)})
			return
		}
	}

	log.Error().Err(err).Str("job_id", job.JobID).Int("attempt", job.Attempt).Msg("job exhausted retries, sending to dlq")
	payload, _ := json.Marshal(job)
	_ = w.q.AddDLQ(bg, payload, err.Error())
	w.setTerminal(job.JobID, store.StatusFailed, err.Error(), "")
	metrics.IncProcessed("dlq")
}

func (w *Worker) process(ctx context.Context, job *Job) error {
	if w.resolver != nil {
		local, cleanup, err := w.resolver.Resolve(ctx, job.InputPath)
		if err != nil {
			return &TransientError{Reason: "input resolution", Err: err}
		}
		defer cleanup()
		job.InputPath = local
	}

	switch job.Op {
	case OpCompress:
		return w.runCompress(ctx, job)
	case OpExtractText:
		res, err := textops.ExtractToFile(w.provider, job.InputPath, job.OutputPath, true)
		if err != nil {
			return err
		}
		log.Info().Str("job_id", job.JobID).Int("chars", res.TotalCharacters).Int("pages_with_text", res.PagesWithText).Msg("text extracted")
		w.finishDone(ctx, job)
		return nil
	case OpRemoveText:
		res, err := textops.Remove(w.provider, job.InputPath, job.OutputPath)
		if err != nil {
			return err
		}
		log.Info().Str("job_id", job.JobID).Int("pages", res.PagesProcessed).Int64("size", res.NewSize).Msg("text layer removed")
		w.finishDone(ctx, job)
		return nil
	default:
		return &ValidationError{Message: fmt.Sprintf("unknown op %q", job.Op)}
	}
}

func (w *Worker) runCompress(ctx context.Context, job *Job) error {
	if job.TargetBytes <= 0 {
		return &ValidationError{Message: "target size must be positive"}
	}
	tol, err := compress.ToleranceByName(job.Tolerance)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	c := compress.New(w.provider)
	c.Progress = func(stage string, pct int) {
		_ = w.st.SetProgress(context.Background(), job.JobID, stage, pct)
	}

	start := time.Now()
	res, err := c.Compress(ctx, job.InputPath, job.OutputPath, job.TargetBytes, tol)
	if err != nil {
		return err
	}

	bg := context.Background()
	_ = w.st.SetResult(bg, job.JobID, res)

	if !res.Success {
		w.setTerminal(job.JobID, store.StatusFailed, res.Error, "")
		metrics.ObserveCompression(tol.Name, string(res.ContentClass), "failed", res.IterationsUsed, 0, time.Since(start))
		return &ValidationError{Message: res.Error}
	}

	resultLabel := "best_effort"
	if res.TargetAchieved {
		resultLabel = "target_met"
	}
	metrics.ObserveCompression(tol.Name, string(res.ContentClass), resultLabel, res.IterationsUsed, res.OriginalSize-res.CompressedSize, time.Since(start))
	log.Info().
		Str("job_id", job.JobID).
		Bool("target_achieved", res.TargetAchieved).
		Int64("original", res.OriginalSize).
		Int64("compressed", res.CompressedSize).
		Int("iterations", res.IterationsUsed).
		Str("quality", res.QualityLabel).
		Msg("compression finished")

	w.finishDone(ctx, job)
	return nil
}

// finishDone marks the job done, publishing the artifact to remote
// storage first when a publisher is configured. Publish failures are
// logged, not fatal: the local result still exists.
func (w *Worker) finishDone(ctx context.Context, job *Job) {
	message := ""
	if w.publisher != nil {
		url, err := w.publisher.Publish(ctx, job.JobID, job.OutputPath)
		if err != nil {
			log.Warn().Err(err).Str("job_id", job.JobID).Msg("result publish failed")
		} else {
			message = url
		}
	}
	w.setTerminal(job.JobID, store.StatusDone, message, job.OutputPath)
}

// watchCancel polls the cancel set and aborts the job context between
// compression attempts when the job is cancelled externally.
func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cancelled, _ := w.q.IsCancelled(ctx, jobID); cancelled {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (w *Worker) setTerminal(jobID, status, message, outputPath string) {
	now := time.Now()
	_ = w.st.Set(context.Background(), jobID, store.Status{
		Status:     status,
		Progress:   100,
		Message:    message,
		OutputPath: outputPath,
		End:        &now,
	})
}

// notifyDone pings the orchestrator's internal completion hook.
func (w *Worker) notifyDone(jobID string) {
	port := getenv("PORT", "8080")
	url := fmt.Sprintf("http://127.0.0.1:%s/internal/job_done?job_id=%s", port, jobID)
	resp, err := http.Post(url, "text/plain", nil)
	if err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Msg("job_done notify failed")
		return
	}
	resp.Body.Close()
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * w.cfg.RetryBackoffFactor)
	}
	if w.cfg.RetryJitter > 0 {
		d += time.Duration(rand.Int63n(int64(w.cfg.RetryJitter)))
	}
	return d
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
