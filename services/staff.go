package services

import (
	"context"
	"errors"
	"fmt"

	"pizza-fulfillment/db"
	"pizza-fulfillment/models"

	"github.com/jackc/pgx/v5"
)

// GetStaff loads a shipper by id. Staff administration is handled by the
// back office; the core only reads shippers for assignment and notification.
func GetStaff(ctx context.Context, staffID int64) (*models.Staff, error) {
	var s models.Staff
	err := db.Pool.QueryRow(ctx, `
		SELECT id, full_name, COALESCE(phone, ''), telegram_chat_id
		FROM staffs WHERE id = $1`,
		staffID,
	).Scan(&s.ID, &s.FullName, &s.Phone, &s.TelegramChatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("staff %d: %w", staffID, ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}
