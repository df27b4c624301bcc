// Package schedule 把五段cron表达式换算成下一次触发时间。
// 计算基于civil time：夏令时切换与闰年由cron库的逐字段推进保证。
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser 标准五段表达式：分 时 日 月 周。
// 日与周同时受限时按经典cron语义取或。
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate 校验表达式与时区是否可用
func Validate(expr string, timezone string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return nil
}

// NextFire 返回after之后第一个满足表达式的时间点，严格晚于after，
// 在给定时区内解释表达式
func NextFire(expr string, timezone string, after time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	next := sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no next fire time for %q after %s", expr, after)
	}
	return next, nil
}
