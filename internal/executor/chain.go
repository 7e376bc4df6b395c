package executor

import (
	"context"
	"fmt"
	"log/slog"
)

type chainFunc struct {
	f     func(ctx context.Context) error
	stage string
}

// Chain выполняет шаги строго по порядку.
// Первый неуспешный шаг прерывает цепочку, предыдущие не откатываются.
type Chain struct {
	funcs  []chainFunc
	logger *slog.Logger
}

// NewChain создает пустую цепочку.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger}
}

// Stage задает название для последующих шагов.
func (c *Chain) Stage(s string) {
	c.funcs = append(c.funcs, chainFunc{stage: s})
}

// Add добавляет шаг.
func (c *Chain) Add(f func(ctx context.Context) error) {
	c.funcs = append(c.funcs, chainFunc{f: f})
}

// AddCommand добавляет шаг запуска команды через runner.
func (c *Chain) AddCommand(r Runner, args ...string) {
	c.Add(func(ctx context.Context) error {
		return r.Run(ctx, args...)
	})
}

// Exec выполняет цепочку и возвращает первую ошибку с названием стадии.
func (c *Chain) Exec(ctx context.Context) error {
	var lastStage string
	for _, f := range c.funcs {
		if f.f == nil {
			if f.stage != "" {
				c.logger.Info(f.stage + " ...")
				lastStage = f.stage
			}
			continue
		}

		err := f.f(ctx)
		if err == nil {
			continue
		}

		c.logger.Error("stage failed", "stage", lastStage, "err", err)
		if lastStage == "" {
			return err
		}
		return fmt.Errorf("error at '%s': %w", lastStage, err)
	}
	return nil
}
