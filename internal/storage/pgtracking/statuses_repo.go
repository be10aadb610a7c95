package pgtracking

import (
	"context"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) ListStatuses(ctx context.Context) ([]*models.Status, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description FROM statuses ORDER BY id`)
	if err != nil {
		return nil, persistErr(err, "select statuses")
	}
	defer rows.Close()

	out := []*models.Status{}
	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.Name, &st.Description); err != nil {
			return nil, persistErr(err, "scan status")
		}
		out = append(out, &st)
	}
	if rows.Err() != nil {
		return nil, persistErr(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CreateStatus(ctx context.Context, name, description string) (*models.Status, error) {
	st := models.Status{Name: name, Description: description}
	err := s.db.QueryRow(ctx, `
INSERT INTO statuses (name, description) VALUES ($1, $2) RETURNING id
`, name, description).Scan(&st.ID)
	if isUniqueViolation(err, statusNameIndex) {
		return nil, errors.Wrap(models.ErrStatusExists, name)
	}
	if err != nil {
		return nil, persistErr(err, "insert status")
	}
	return &st, nil
}

// UpdateStatus renames a status.
func (s *Storage) UpdateStatus(ctx context.Context, id uint64, name, description string) (*models.Status, error) {
	st := models.Status{ID: id, Name: name, Description: description}
	tag, err := s.db.Exec(ctx, `UPDATE statuses SET name = $2, description = $3 WHERE id = $1`, id, name, description)
	if isUniqueViolation(err, statusNameIndex) {
		return nil, errors.Wrap(models.ErrStatusExists, name)
	}
	if err != nil {
		return nil, persistErr(err, "update status")
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.Wrapf(models.ErrNotFound, "status %d", id)
	}
	return &st, nil
}

// DeleteStatus removes a status no tracking refers to.
func (s *Storage) DeleteStatus(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM statuses WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return errors.Wrapf(models.ErrStatusInUse, "status %d", id)
	}
	if err != nil {
		return persistErr(err, "delete status")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "status %d", id)
	}
	return nil
}
