package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler 以固定间隔驱动后台维护任务
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Every 每隔 d 执行一次 fn，首次执行发生在 d 之后
func (s *Scheduler) Every(d time.Duration, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-t.C:
				fn(s.ctx)
			}
		}
	}()
}

// Stop 取消所有循环并等待正在执行的任务返回
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Cron 负责日历式调度，panic 会被捕获不会带崩进程
type Cron struct {
	c *cron.Cron
}

func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Cron{c: c}
}

// Add 按 Cron 表达式注册任务
func (cr *Cron) Add(expr string, fn func(ctx context.Context)) error {
	_, err := cr.c.AddFunc(expr, func() { fn(context.Background()) })
	return err
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 停止调度并等待运行中的任务结束
func (cr *Cron) Stop() {
	ctx := cr.c.Stop()
	<-ctx.Done()
}
