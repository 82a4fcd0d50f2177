package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

func (r *Repository) CreateSprintDefinition(definition *domain.SprintDefinition) error {
	query := `
		INSERT INTO sprint_definitions (sprint_number, start_date, end_date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{definition.SprintNumber, definition.StartDate, definition.EndDate}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&definition.ID, &definition.CreatedAt, &definition.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAllSprintDefinitions() ([]*domain.SprintDefinition, error) {
	query := `
		SELECT id, sprint_number, start_date, end_date, created_at, version
		FROM sprint_definitions
		ORDER BY sprint_number
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	definitions := make([]*domain.SprintDefinition, 0)
	for rows.Next() {
		definition := &domain.SprintDefinition{}
		dst := []any{&definition.ID, &definition.SprintNumber, &definition.StartDate, &definition.EndDate, &definition.CreatedAt, &definition.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return definitions, nil
}

func (r *Repository) GetSprintDefinitionByID(id int64) (*domain.SprintDefinition, error) {
	query := `
		SELECT sprint_number, start_date, end_date, created_at, version
		FROM sprint_definitions WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	definition := &domain.SprintDefinition{
		ID: id,
	}

	dst := []any{&definition.SprintNumber, &definition.StartDate, &definition.EndDate, &definition.CreatedAt, &definition.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return definition, nil
}

// GetSprintDefinitionForDate 返回包含 day 的冲刺定义
// 没有命中时返回 sql.ErrNoRows，调用方应该把它当成"元数据缺失"而不是故障
func (r *Repository) GetSprintDefinitionForDate(day time.Time) (*domain.SprintDefinition, error) {
	query := `
		SELECT id, sprint_number, start_date, end_date, created_at, version
		FROM sprint_definitions
		WHERE start_date <= $1 AND end_date >= $1
		ORDER BY sprint_number DESC
		LIMIT 1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	definition := &domain.SprintDefinition{}
	dst := []any{&definition.ID, &definition.SprintNumber, &definition.StartDate, &definition.EndDate, &definition.CreatedAt, &definition.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, domain.DateOnly(day)).Scan(dst...); err != nil {
		return nil, err
	}

	return definition, nil
}

func (r *Repository) UpdateSprintDefinition(definition *domain.SprintDefinition) error {
	query := `
		UPDATE sprint_definitions
		SET
			sprint_number = $1,
			start_date = $2,
			end_date = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{definition.SprintNumber, definition.StartDate, definition.EndDate, definition.ID, definition.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&definition.CreatedAt, &definition.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteSprintDefinition(id int64) error {
	query := `
		DELETE FROM sprint_definitions WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
