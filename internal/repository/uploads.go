package repository

import (
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

func (r *Repository) GetUploads(page, perPage int) (*Page[*domain.Upload], error) {
	query := `
		SELECT id, title, file, created_at, COUNT(*) OVER()
		FROM uploads
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, perPage, offset(page, perPage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &Page[*domain.Upload]{Items: make([]*domain.Upload, 0)}
	for rows.Next() {
		u := &domain.Upload{}
		if err := rows.Scan(&u.ID, &u.Title, &u.File, &u.CreatedAt, &result.Total); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		if result.Total, err = r.count(`SELECT COUNT(*) FROM uploads`); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *Repository) GetUploadByID(id int64) (*domain.Upload, error) {
	query := `
		SELECT title, file, created_at FROM uploads WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	u := &domain.Upload{ID: id}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&u.Title, &u.File, &u.CreatedAt); err != nil {
		return nil, err
	}

	return u, nil
}

func (r *Repository) CreateUpload(u *domain.Upload) error {
	query := `
		INSERT INTO uploads (title, file)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, u.Title, u.File).Scan(&u.ID, &u.CreatedAt)
}

func (r *Repository) UpdateUpload(u *domain.Upload) error {
	query := `
		UPDATE uploads
		SET title = $1, file = $2
		WHERE id = $3
		RETURNING created_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, u.Title, u.File, u.ID).Scan(&u.CreatedAt)
}

func (r *Repository) DeleteUpload(id int64) error {
	query := `
		DELETE FROM uploads WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return affected(res)
}
