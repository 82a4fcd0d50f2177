package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// FetchEntries 拉取某个小组在 [start, end] 范围内的所有每日状态条目
// 实现 session.Store，空结果返回空快照，只有查询出错才返回 error
func (r *Repository) FetchEntries(ctx context.Context, teamID int64, start time.Time, end time.Time) (domain.ScheduleSnapshot, error) {
	query := `
		SELECT se.id, se.member_id, se.entry_date, se.value, se.reason, se.created_at, se.version
		FROM schedule_entries se
		JOIN users u ON u.id = se.member_id
		WHERE u.team_id = $1 AND se.entry_date BETWEEN $2 AND $3
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, teamID, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(domain.ScheduleSnapshot)
	for rows.Next() {
		entry := domain.ScheduleEntry{}
		reason := sql.NullString{}

		dst := []any{&entry.ID, &entry.MemberID, &entry.Date, &entry.Value, &reason, &entry.CreatedAt, &entry.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if reason.Valid {
			entry.Reason = reason.String
		}
		snapshot.Set(entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// WriteEntry 持久化某个组员某天的状态，value 为空字符串时删除对应条目
// 两个分支都是幂等的，重放同一个写入不会产生额外影响
func (r *Repository) WriteEntry(ctx context.Context, teamID int64, memberID int64, day time.Time, value domain.StatusCode, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if value == "" {
		query := `
			DELETE FROM schedule_entries WHERE member_id = $1 AND entry_date = $2
		`
		if _, err := r.dbpool.ExecContext(ctx, query, memberID, domain.DateOnly(day)); err != nil {
			return err
		}
		return nil
	}

	query := `
		INSERT INTO schedule_entries (member_id, entry_date, value, reason)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (member_id, entry_date) DO UPDATE
		SET value = EXCLUDED.value, reason = EXCLUDED.reason, version = schedule_entries.version + 1
	`

	if _, err := r.dbpool.ExecContext(ctx, query, memberID, domain.DateOnly(day), value, reason); err != nil {
		return err
	}

	return nil
}
