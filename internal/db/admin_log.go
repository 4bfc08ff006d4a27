package db

import (
	"context"

	"github.com/sitefolio/backend/internal/model"
)

func (db *Postgres) InsertAdminLog(ctx context.Context, entry model.AdminLog) error {
	detail := entry.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO admin_logs (admin_id, public_id, type, description, detail, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, entry.AdminID, entry.PublicID, entry.Type, entry.Description, detail, entry.IP)
	return err
}

func (db *Postgres) ListAdminLogs(ctx context.Context, adminID int64, limit int) ([]model.AdminLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, admin_id, public_id, type, description, detail, ip, created_at
		FROM admin_logs
		WHERE admin_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, adminID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.AdminLog{}
	for rows.Next() {
		var l model.AdminLog
		if err := rows.Scan(&l.ID, &l.AdminID, &l.PublicID, &l.Type, &l.Description, &l.Detail, &l.IP, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
