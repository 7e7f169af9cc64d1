package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"postpilot/internal/models"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	ListByStatus(ctx context.Context, status string) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, id string, userID int64) (bool, error)
	UpdateContent(ctx context.Context, post *models.ScheduledPost) error
	BeginPublish(ctx context.Context, id string, attemptAt time.Time) (bool, error)
	CompletePublish(ctx context.Context, id, remoteMediaID string, publishedAt time.Time) (bool, error)
	FailPublish(ctx context.Context, id, errorMessage string, attemptAt time.Time) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const postColumns = `id, user_id, org_id, content_type, content_id, image_url, carousel_image_urls,
	caption, hashtags, platform_selection, remote_content_type, timezone,
	scheduled_date, scheduled_time, scheduled_at_ms, status,
	published_at_ms, error_message, remote_media_id, publish_attempts, last_publish_attempt_ms,
	created_from, created_at, updated_at`

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (
			id, user_id, org_id, content_type, content_id, image_url, carousel_image_urls,
			caption, hashtags, platform_selection, remote_content_type, timezone,
			scheduled_date, scheduled_time, scheduled_at_ms, status, created_from
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	args := []interface{}{
		post.ID, post.UserID, post.OrgID, post.ContentType, post.ContentID,
		post.ImageURL, pq.Array(post.CarouselImageURLs),
		post.Caption, pq.Array(post.Hashtags), post.PlatformSelection, post.RemoteContentType, post.Timezone,
		post.ScheduledDate, post.ScheduledTime, post.ScheduledTimestamp, models.PostStatusScheduled, post.CreatedFrom,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func scanPost(row interface{ Scan(...interface{}) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(
		&post.ID, &post.UserID, &post.OrgID, &post.ContentType, &post.ContentID,
		&post.ImageURL, pq.Array(&post.CarouselImageURLs),
		&post.Caption, pq.Array(&post.Hashtags), &post.PlatformSelection, &post.RemoteContentType, &post.Timezone,
		&post.ScheduledDate, &post.ScheduledTime, &post.ScheduledTimestamp, &post.Status,
		&post.PublishedAt, &post.ErrorMessage, &post.RemoteMediaID, &post.PublishAttempts, &post.LastPublishAttempt,
		&post.CreatedFrom, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *scheduledPostRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at_ms`
	return r.list(ctx, query, userID)
}

func (r *scheduledPostRepository) ListByStatus(ctx context.Context, status string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1 ORDER BY scheduled_at_ms`
	return r.list(ctx, query, status)
}

func (r *scheduledPostRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *scheduledPostRepository) CheckByUserID(ctx context.Context, id string, userID int64) (bool, error) {
	query := "SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// UpdateContent writes the user-editable fields. The caller is
// responsible for having recomputed scheduled_at_ms first and for only
// calling this while the post is still scheduled.
func (r *scheduledPostRepository) UpdateContent(ctx context.Context, post *models.ScheduledPost) error {
	query := `
		UPDATE scheduled_posts
		SET caption = $1,
			hashtags = $2,
			platform_selection = $3,
			timezone = $4,
			scheduled_date = $5,
			scheduled_time = $6,
			scheduled_at_ms = $7,
			updated_at = $8
		WHERE id = $9 AND status = $10
	`
	_, err := r.db.ExecContext(ctx, query,
		post.Caption, pq.Array(post.Hashtags), post.PlatformSelection, post.Timezone,
		post.ScheduledDate, post.ScheduledTime, post.ScheduledTimestamp,
		time.Now(), post.ID, models.PostStatusScheduled,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// BeginPublish is the mutual exclusion gate: a single UPDATE guarded by
// the current status, so two concurrent attempts can never both win.
func (r *scheduledPostRepository) BeginPublish(ctx context.Context, id string, attemptAt time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			publish_attempts = publish_attempts + 1,
			last_publish_attempt_ms = $2,
			error_message = '',
			updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`
	return r.exec(ctx, query,
		models.PostStatusPublishing, attemptAt.UnixMilli(), time.Now(),
		id, models.PostStatusScheduled, models.PostStatusFailed,
	)
}

func (r *scheduledPostRepository) CompletePublish(ctx context.Context, id, remoteMediaID string, publishedAt time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			published_at_ms = $2,
			remote_media_id = $3,
			error_message = '',
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	return r.exec(ctx, query,
		models.PostStatusPublished, publishedAt.UnixMilli(), remoteMediaID, time.Now(),
		id, models.PostStatusPublishing,
	)
}

func (r *scheduledPostRepository) FailPublish(ctx context.Context, id, errorMessage string, attemptAt time.Time) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			error_message = $2,
			last_publish_attempt_ms = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	return r.exec(ctx, query,
		models.PostStatusFailed, errorMessage, attemptAt.UnixMilli(), time.Now(),
		id, models.PostStatusPublishing,
	)
}

func (r *scheduledPostRepository) Cancel(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	return r.exec(ctx, query,
		models.PostStatusCancelled, time.Now(),
		id, models.PostStatusScheduled, models.PostStatusFailed,
	)
}

func (r *scheduledPostRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected > 0, nil
}
