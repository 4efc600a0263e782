package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"pizza-fulfillment/db"

	"github.com/jackc/pgx/v5"
)

const (
	SettingStoreLat = "store_lat"
	SettingStoreLng = "store_lng"
)

// GetSetting returns a settings value and whether the key exists.
func GetSetting(ctx context.Context, q Querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a settings value.
func SetSetting(ctx context.Context, key, value string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

// GetStoreLocation reads the depot coordinates used for shipping fees and
// route optimization. Returns ok=false when either key is missing so the
// caller can fall back to its configured defaults.
func GetStoreLocation(ctx context.Context, qr Querier) (lat, lng float64, ok bool, err error) {
	latStr, latOK, err := GetSetting(ctx, qr, SettingStoreLat)
	if err != nil {
		return 0, 0, false, err
	}
	lngStr, lngOK, err := GetSetting(ctx, qr, SettingStoreLng)
	if err != nil {
		return 0, 0, false, err
	}
	if !latOK || !lngOK {
		return 0, 0, false, nil
	}
	if lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return 0, 0, false, fmt.Errorf("parse %s: %w", SettingStoreLat, err)
	}
	if lng, err = strconv.ParseFloat(lngStr, 64); err != nil {
		return 0, 0, false, fmt.Errorf("parse %s: %w", SettingStoreLng, err)
	}
	return lat, lng, true, nil
}

// InitStoreLocation seeds the depot coordinates when the settings table does
// not have them yet (fresh database bootstrapped from env config).
func InitStoreLocation(ctx context.Context, lat, lng float64) error {
	_, _, ok, err := GetStoreLocation(ctx, db.Pool)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := SetSetting(ctx, SettingStoreLat, strconv.FormatFloat(lat, 'f', -1, 64)); err != nil {
		return err
	}
	return SetSetting(ctx, SettingStoreLng, strconv.FormatFloat(lng, 'f', -1, 64))
}
