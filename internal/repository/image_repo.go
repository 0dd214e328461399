package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/database"
	"github.com/isdelr/accounts-api/internal/models"
)

type ImageRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func NewImageRepo(db database.DBTX, dialect database.Dialect) *ImageRepo {
	return &ImageRepo{db: db, dialect: dialect}
}

// Create inserts the metadata row. The unique user_id column turns a second
// picture for the same user into common.ErrConflict.
func (r *ImageRepo) Create(ctx context.Context, image *models.Image) error {
	query := `INSERT INTO images (id, user_id, file_name, storage_key, url, content_type, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		image.ID, image.UserID, image.FileName, image.StorageKey, image.URL, image.ContentType, image.UploadDate.UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return dbError(err)
	}
	return nil
}

func (r *ImageRepo) GetByUserID(ctx context.Context, userID string) (*models.Image, error) {
	query := `SELECT id, user_id, file_name, storage_key, url, content_type, upload_date
		FROM images WHERE user_id = ?`

	var img models.Image
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), userID).Scan(
		&img.ID, &img.UserID, &img.FileName, &img.StorageKey, &img.URL, &img.ContentType, &img.UploadDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, dbError(err)
	}
	img.UploadDate = img.UploadDate.UTC()
	return &img, nil
}

func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM images WHERE id = ?`), id)
	if err != nil {
		return dbError(err)
	}
	return expectOneRow(res, common.ErrNotFound)
}
