package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"attackgraph/internal/logger"
)

// Job is one unit of paced work.
type Job struct {
	Name  string
	Proto string
	Host  string
	Run   func(ctx context.Context) error
}

// JobError records a failed job. Failures never stop sibling jobs.
type JobError struct {
	Index int
	Job   string
	Host  string
	Err   error
}

func (e JobError) Error() string {
	return fmt.Sprintf("job %s on %s: %v", e.Job, e.Host, e.Err)
}

func (e JobError) Unwrap() error { return e.Err }

// Drain runs jobs one at a time in FIFO order, acquiring the gate before each.
func Drain(ctx context.Context, gate *Gate, jobs []Job) []JobError {
	var errs []JobError
	for i, job := range jobs {
		if err := runJob(ctx, gate, job); err != nil {
			errs = append(errs, JobError{Index: i, Job: job.Name, Host: job.Host, Err: err})
		}
	}
	return errs
}

// DrainPerHost keeps one FIFO queue per host and drains all hosts
// concurrently. Errors are returned in job order.
func DrainPerHost(ctx context.Context, gate *Gate, jobs []Job) []JobError {
	queues := make(map[string][]int)
	var hosts []string
	for i, job := range jobs {
		if _, ok := queues[job.Host]; !ok {
			hosts = append(hosts, job.Host)
		}
		queues[job.Host] = append(queues[job.Host], i)
	}

	var (
		mu   sync.Mutex
		errs []JobError
		wg   sync.WaitGroup
	)
	for _, host := range hosts {
		idx := queues[host]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range idx {
				if err := runJob(ctx, gate, jobs[i]); err != nil {
					mu.Lock()
					errs = append(errs, JobError{Index: i, Job: jobs[i].Name, Host: jobs[i].Host, Err: err})
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	sort.Slice(errs, func(a, b int) bool { return errs[a].Index < errs[b].Index })
	return errs
}

func runJob(ctx context.Context, gate *Gate, job Job) (err error) {
	if gate != nil {
		if err := gate.Acquire(ctx, job.Host, job.Proto); err != nil {
			return err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Errorf("job %s on %s panicked: %v", job.Name, job.Host, r)
		}
	}()
	if job.Run == nil {
		return nil
	}
	return job.Run(ctx)
}
