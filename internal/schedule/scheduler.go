package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(name string) error
	Start(ctx context.Context)
	Stop()
}

type scheduledJob struct {
	job     Job
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

// CronScheduler runs jobs on five-field cron specs. A run that is still in
// progress when its next tick fires makes that tick a no-op.
type CronScheduler struct {
	cron *cron.Cron

	mu   sync.RWMutex
	jobs map[string]*scheduledJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*scheduledJob),
		ctx:  context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	sj := &scheduledJob{job: job, spec: spec}
	entryID, err := c.cron.AddFunc(spec, func() { c.execute(sj) })
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	sj.entry = entryID
	c.jobs[name] = sj
	logger.Info("job scheduled")
	return nil
}

// RunNow triggers a registered job in the background, outside its schedule.
func (c *CronScheduler) RunNow(name string) error {
	c.mu.RLock()
	sj, ok := c.jobs[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	go c.execute(sj)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) execute(sj *scheduledJob) {
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", sj.job.Name()),
		zap.String("spec", sj.spec),
	)
	if !sj.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer sj.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	if err := sj.job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}
