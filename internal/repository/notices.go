package repository

import (
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

func (r *Repository) GetAllNotices() ([]*domain.Notice, error) {
	query := `
		SELECT id, content, updated_at FROM notices ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notices := make([]*domain.Notice, 0)
	for rows.Next() {
		n := &domain.Notice{}
		if err := rows.Scan(&n.ID, &n.Content, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notices, nil
}

func (r *Repository) CreateNotice(n *domain.Notice) error {
	query := `
		INSERT INTO notices (content) VALUES ($1) RETURNING id, updated_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, n.Content).Scan(&n.ID, &n.UpdatedAt)
}

func (r *Repository) UpdateNotice(n *domain.Notice) error {
	query := `
		UPDATE notices SET content = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, n.Content, n.ID).Scan(&n.UpdatedAt)
}
