package repository

import (
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

func (r *Repository) GetBookmarks(kind domain.BookmarkKind, page, perPage int) (*Page[*domain.Bookmark], error) {
	query := `
		SELECT id, title, url, created_at, COUNT(*) OVER()
		FROM bookmarks
		WHERE kind = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, kind, perPage, offset(page, perPage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &Page[*domain.Bookmark]{Items: make([]*domain.Bookmark, 0)}
	for rows.Next() {
		b := &domain.Bookmark{Kind: kind}
		if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.CreatedAt, &result.Total); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(result.Items) == 0 {
		if result.Total, err = r.count(`SELECT COUNT(*) FROM bookmarks WHERE kind = $1`, kind); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *Repository) CreateBookmark(b *domain.Bookmark) error {
	query := `
		INSERT INTO bookmarks (kind, title, url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, b.Kind, b.Title, b.URL).Scan(&b.ID, &b.CreatedAt)
}

// UpdateBookmark 只更新同一类型下的书签，不存在时返回 sql.ErrNoRows
func (r *Repository) UpdateBookmark(b *domain.Bookmark) error {
	query := `
		UPDATE bookmarks
		SET title = $1, url = $2
		WHERE id = $3 AND kind = $4
		RETURNING created_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, b.Title, b.URL, b.ID, b.Kind).Scan(&b.CreatedAt)
}

func (r *Repository) DeleteBookmark(kind domain.BookmarkKind, id int64) error {
	query := `
		DELETE FROM bookmarks WHERE id = $1 AND kind = $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id, kind)
	if err != nil {
		return err
	}

	return affected(res)
}
