package repository

import (
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

const userColumns = `id, name, email, phone, status, profile_image, role, password_hash, created_at, version`

func userDst(user *domain.User) []any {
	return []any{&user.ID, &user.Name, &user.Email, &user.Phone, &user.Status, &user.ProfileImage, &user.Role, &user.PasswordHash, &user.CreatedAt, &user.Version}
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	user := &domain.User{}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(userDst(user)...); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) GetUserByEmail(email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	user := &domain.User{}
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(userDst(user)...); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUser 使用 version 做乐观锁，版本不匹配时返回 sql.ErrNoRows
func (r *Repository) UpdateUser(user *domain.User) error {
	query := `
		UPDATE users
		SET
			name = $1,
			email = $2,
			phone = $3,
			status = $4,
			profile_image = $5,
			role = $6,
			password_hash = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{user.Name, user.Email, user.Phone, user.Status, user.ProfileImage, user.Role, user.PasswordHash, user.ID, user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt, &user.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetUsers(page, perPage int) (*Page[*domain.User], error) {
	query := `
		SELECT ` + userColumns + `, COUNT(*) OVER()
		FROM users
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

	result := &Page[*domain.User]{Items: make([]*domain.User, 0)}
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(append(userDst(user), &result.Total)...); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 页码超出范围时窗口函数不会返回任何行，需要单独统计
	if len(result.Items) == 0 {
		if result.Total, err = r.count(`SELECT COUNT(*) FROM users`); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *Repository) DeleteUser(id int64) error {
	query := `
		DELETE FROM users WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return affected(res)
}

func (r *Repository) CreateUser(user *domain.User) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		INSERT INTO users (name, email, phone, status, profile_image, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, version
	`

	args := []any{user.Name, user.Email, user.Phone, user.Status, user.ProfileImage, user.Role, user.PasswordHash}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CheckEmailIfExists(email string, exceptID int64) (bool, error) {
	isExists := false

	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)
	`
	if err := r.dbpool.QueryRowContext(ctx, query, email, exceptID).Scan(&isExists); err != nil {
		return false, err
	}

	return isExists, nil
}

func (r *Repository) count(query string, args ...any) (int, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	total := 0
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// affected 在没有删除或更新任何行时返回 sql.ErrNoRows
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsNotFound 判断错误是否表示记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
