package scanRepository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/api/scan"
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	contextPkg "github.com/hanzlakhalid7/Ketoslim-with-ai/pkg/context"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ScanDB struct {
	ID         sql.NullString  `db:"id"`
	UserID     sql.NullString  `db:"user_id"`
	Source     sql.NullString  `db:"source"`
	ImageURL   sql.NullString  `db:"image_url"`
	Gender     sql.NullString  `db:"gender"`
	FatScale   sql.NullFloat64 `db:"fat_scale"`
	Weight     sql.NullFloat64 `db:"weight"`
	Height     sql.NullFloat64 `db:"height"`
	Age        sql.NullFloat64 `db:"age"`
	BMI        sql.NullFloat64 `db:"bmi"`
	Calorie    sql.NullFloat64 `db:"calorie"`
	Water      sql.NullFloat64 `db:"water"`
	WeightLoss sql.NullFloat64 `db:"weight_loss"`
	Days       sql.NullFloat64 `db:"days"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r *scansRepository) CreateScan(ctx context.Context, s entity.BodyScan) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":          s.ID,
		"user_id":     nullString(s.UserID),
		"source":      string(s.Source),
		"image_url":   nullString(s.ImageURL),
		"gender":      s.Metrics.Gender,
		"fat_scale":   s.Metrics.FatScale,
		"weight":      s.Metrics.Weight,
		"height":      s.Metrics.Height,
		"age":         s.Metrics.Age,
		"bmi":         s.Metrics.BMI,
		"calorie":     s.Metrics.Calorie,
		"water":       s.Metrics.Water,
		"weight_loss": s.Metrics.WeightLoss,
		"days":        s.Metrics.Days,
		"created_at":  s.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateScan, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateScan")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating scan")
		return err
	}

	return nil
}

func (r *scansRepository) GetScanByID(ctx context.Context, id string) (entity.BodyScan, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var row ScanDB

	query, args, err := sqlx.Named(queryGetScanByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScanByID named query preparation err")
		return entity.BodyScan{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
			}).Warn("GetScanByID no rows found")
			return entity.BodyScan{}, scan.ErrScanNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScanByID execution err")
		return entity.BodyScan{}, err
	}

	return makeScan(row), nil
}

func (r *scansRepository) GetScansByUserID(ctx context.Context, userID string, limit, offset int) ([]entity.BodyScan, int, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var total int

	countQuery, countArgs, err := sqlx.Named(queryCountScansByUserID, map[string]interface{}{"user_id": userID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountScansByUserID named query preparation err")
		return nil, 0, err
	}
	countQuery = r.q.Rebind(countQuery)

	if err := r.q.QueryRowxContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountScansByUserID execution err")
		return nil, 0, err
	}

	query, args, err := sqlx.Named(queryGetScansByUserID, map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
		"offset":  offset,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScansByUserID named query preparation err")
		return nil, 0, err
	}
	query = r.q.Rebind(query)

	var rows []ScanDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScansByUserID execution err")
		return nil, 0, err
	}

	scans := make([]entity.BodyScan, 0, len(rows))
	for _, row := range rows {
		scans = append(scans, makeScan(row))
	}
	return scans, total, nil
}

func (r *scansRepository) DeleteScan(ctx context.Context, id string) error {
	query, args, err := sqlx.Named(queryDeleteScan, map[string]interface{}{"id": id})
	if err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("DeleteScan execution err")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scan.ErrScanNotFound
	}
	return nil
}

func makeScan(row ScanDB) entity.BodyScan {
	return entity.BodyScan{
		ID:       row.ID.String,
		UserID:   row.UserID.String,
		Source:   entity.ScanSource(row.Source.String),
		ImageURL: row.ImageURL.String,
		Metrics: entity.BodyMetrics{
			Gender:     row.Gender.String,
			FatScale:   row.FatScale.Float64,
			Weight:     row.Weight.Float64,
			Height:     row.Height.Float64,
			Age:        row.Age.Float64,
			BMI:        row.BMI.Float64,
			Calorie:    row.Calorie.Float64,
			Water:      row.Water.Float64,
			WeightLoss: row.WeightLoss.Float64,
			Days:       row.Days.Float64,
		},
		CreatedAt: row.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
