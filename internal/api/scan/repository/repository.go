package scanRepository

import (
	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor = r.DB
	commitFunc := func() error { return nil }
	rollbackFunc := func() error { return nil }

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}
		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	}

	return Client{
		Scans:    &scansRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Scans interface {
		CreateScan(ctx context.Context, scan entity.BodyScan) error
		GetScanByID(ctx context.Context, id string) (entity.BodyScan, error)
		GetScansByUserID(ctx context.Context, userID string, limit, offset int) ([]entity.BodyScan, int, error)
		DeleteScan(ctx context.Context, id string) error
	}

	Commit   func() error
	Rollback func() error
}

type scansRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
