package domain

import (
	"database/sql"
	"time"
)

// DutyLog 执勤日志
// 约束：每个单位同一时刻至多一条未关闭（EndedAt 为 NULL）的记录
type DutyLog struct {
	LogID     string
	UnitID    string
	UserID    sql.NullString
	StartedAt time.Time
	EndedAt   sql.NullTime
}

// Duration 已执勤时长；未关闭的记录按 now 计算
func (l *DutyLog) Duration(now time.Time) time.Duration {
	end := now
	if l.EndedAt.Valid {
		end = l.EndedAt.Time
	}
	return end.Sub(l.StartedAt)
}
