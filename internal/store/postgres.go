package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var allowedPointTypes = map[string]struct{}{
	"praise":     {},
	"issue":      {},
	"suggestion": {},
	"question":   {},
}

func encodePoints(points []ReviewPoint) ([]byte, error) {
	if points == nil {
		points = []ReviewPoint{}
	}
	for i, point := range points {
		if point.ID == "" {
			return nil, fmt.Errorf("%w: point %d has no id", ErrDecode, i)
		}
		if _, ok := allowedPointTypes[point.Type]; !ok {
			return nil, fmt.Errorf("%w: point %s has unknown type %q", ErrDecode, point.ID, point.Type)
		}
	}
	return json.Marshal(points)
}

func decodePoints(raw []byte, reviewID string) ([]ReviewPoint, error) {
	var points []ReviewPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("%w: review %s points: %v", ErrDecode, reviewID, err)
	}
	for _, point := range points {
		if point.ID == "" {
			return nil, fmt.Errorf("%w: review %s has a point without id", ErrDecode, reviewID)
		}
		if _, ok := allowedPointTypes[point.Type]; !ok {
			return nil, fmt.Errorf("%w: review %s point %s has unknown type %q", ErrDecode, reviewID, point.ID, point.Type)
		}
	}
	if points == nil {
		points = []ReviewPoint{}
	}
	return points, nil
}

func encodeTasks(tasks []WeekTask) ([]byte, error) {
	if tasks == nil {
		tasks = []WeekTask{}
	}
	for i, task := range tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("%w: task %d has no id", ErrDecode, i)
		}
	}
	return json.Marshal(tasks)
}

func decodeTasks(raw []byte, weekID string) ([]WeekTask, error) {
	var tasks []WeekTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("%w: week %s tasks: %v", ErrDecode, weekID, err)
	}
	for _, task := range tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("%w: week %s has a task without id", ErrDecode, weekID)
		}
	}
	if tasks == nil {
		tasks = []WeekTask{}
	}
	return tasks, nil
}

// conditionalUpdate inspects the outcome of a revision-guarded UPDATE. Zero
// affected rows means either the record is gone (sql.ErrNoRows) or someone
// else bumped the revision first (ErrConflict).
func (s *PostgresStore) conditionalUpdate(ctx context.Context, res sql.Result, table, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id=$1)`, table)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s %s: %w", table, id, err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrConflict
}

// Build updates

func (s *PostgresStore) ListBuildUpdates(ctx context.Context) ([]BuildUpdate, error) {
	const query = `
		SELECT id, title, description, version, date, status, additions, revision, created_at, updated_at
		FROM build_updates
		ORDER BY date DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list build updates: %w", err)
	}
	defer rows.Close()

	items := []BuildUpdate{}
	for rows.Next() {
		var item BuildUpdate
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Version, &item.Date,
			&item.Status, &item.Additions, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan build update: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateBuildUpdate(ctx context.Context, item BuildUpdate) (BuildUpdate, error) {
	item.ID = util.NewID()
	const query = `
		INSERT INTO build_updates (id, title, description, version, date, status, additions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING revision, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, item.ID, item.Title, item.Description, item.Version,
		item.Date, item.Status, item.Additions).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return BuildUpdate{}, fmt.Errorf("insert build update: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateBuildUpdate(ctx context.Context, id string, expectedRevision int, patch BuildUpdatePatch) error {
	const query = `
		UPDATE build_updates SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			version = COALESCE($5, version),
			date = COALESCE($6, date),
			status = COALESCE($7, status),
			additions = COALESCE($8, additions),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision,
		patch.Title, patch.Description, patch.Version, patch.Date, patch.Status, patch.Additions)
	if err != nil {
		return fmt.Errorf("update build update: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "build_updates", id)
}

func (s *PostgresStore) DeleteBuildUpdate(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM build_updates WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete build update: %w", err)
	}
	return nil
}

// Client reviews

func (s *PostgresStore) ListClientReviews(ctx context.Context) ([]ClientReview, error) {
	const query = `
		SELECT id, client_name, summary, rating, date, points, revision, created_at, updated_at
		FROM client_reviews
		ORDER BY date DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list client reviews: %w", err)
	}
	defer rows.Close()

	items := []ClientReview{}
	for rows.Next() {
		var item ClientReview
		var rawPoints []byte
		if err := rows.Scan(&item.ID, &item.ClientName, &item.Summary, &item.Rating, &item.Date,
			&rawPoints, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client review: %w", err)
		}
		points, err := decodePoints(rawPoints, item.ID)
		if err != nil {
			return nil, err
		}
		item.Points = points
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetClientReview(ctx context.Context, id string) (ClientReview, error) {
	const query = `
		SELECT id, client_name, summary, rating, date, points, revision, created_at, updated_at
		FROM client_reviews WHERE id=$1
	`
	var item ClientReview
	var rawPoints []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.ClientName, &item.Summary,
		&item.Rating, &item.Date, &rawPoints, &item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ClientReview{}, err
	}
	points, err := decodePoints(rawPoints, item.ID)
	if err != nil {
		return ClientReview{}, err
	}
	item.Points = points
	return item, nil
}

func (s *PostgresStore) CreateClientReview(ctx context.Context, item ClientReview) (ClientReview, error) {
	item.ID = util.NewID()
	encoded, err := encodePoints(item.Points)
	if err != nil {
		return ClientReview{}, err
	}
	const query = `
		INSERT INTO client_reviews (id, client_name, summary, rating, date, points)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING revision, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, item.ID, item.ClientName, item.Summary, item.Rating,
		item.Date, encoded).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ClientReview{}, fmt.Errorf("insert client review: %w", err)
	}
	if item.Points == nil {
		item.Points = []ReviewPoint{}
	}
	return item, nil
}

func (s *PostgresStore) UpdateClientReview(ctx context.Context, id string, expectedRevision int, patch ClientReviewPatch) error {
	var encoded []byte
	if patch.Points != nil {
		var err error
		encoded, err = encodePoints(*patch.Points)
		if err != nil {
			return err
		}
	}
	const query = `
		UPDATE client_reviews SET
			client_name = COALESCE($3, client_name),
			summary = COALESCE($4, summary),
			rating = COALESCE($5, rating),
			date = COALESCE($6, date),
			points = COALESCE($7, points),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision,
		patch.ClientName, patch.Summary, patch.Rating, patch.Date, encoded)
	if err != nil {
		return fmt.Errorf("update client review: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "client_reviews", id)
}

func (s *PostgresStore) DeleteClientReview(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_reviews WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete client review: %w", err)
	}
	return nil
}

// Screenshots

func (s *PostgresStore) ListScreenCaptures(ctx context.Context) ([]ScreenCapture, error) {
	const query = `
		SELECT id, title, caption, folder, url, blob_id, width, height, timestamp, revision, created_at, updated_at
		FROM screenshots
		ORDER BY timestamp DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	items := []ScreenCapture{}
	for rows.Next() {
		var item ScreenCapture
		if err := rows.Scan(&item.ID, &item.Title, &item.Caption, &item.Folder, &item.URL, &item.BlobID,
			&item.Width, &item.Height, &item.Timestamp, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetScreenCapture(ctx context.Context, id string) (ScreenCapture, error) {
	const query = `
		SELECT id, title, caption, folder, url, blob_id, width, height, timestamp, revision, created_at, updated_at
		FROM screenshots WHERE id=$1
	`
	var item ScreenCapture
	err := s.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Title, &item.Caption, &item.Folder,
		&item.URL, &item.BlobID, &item.Width, &item.Height, &item.Timestamp, &item.Revision,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ScreenCapture{}, err
	}
	return item, nil
}

func (s *PostgresStore) CreateScreenCapture(ctx context.Context, item ScreenCapture) (ScreenCapture, error) {
	item.ID = util.NewID()
	const query = `
		INSERT INTO screenshots (id, title, caption, folder, url, blob_id, width, height, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING revision, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, item.ID, item.Title, item.Caption, item.Folder, item.URL,
		item.BlobID, item.Width, item.Height, item.Timestamp).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ScreenCapture{}, fmt.Errorf("insert screenshot: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateScreenCapture(ctx context.Context, id string, expectedRevision int, patch ScreenCapturePatch) error {
	const query = `
		UPDATE screenshots SET
			title = COALESCE($3, title),
			caption = COALESCE($4, caption),
			folder = COALESCE($5, folder),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision, patch.Title, patch.Caption, patch.Folder)
	if err != nil {
		return fmt.Errorf("update screenshot: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "screenshots", id)
}

func (s *PostgresStore) DeleteScreenCapture(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM screenshots WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete screenshot: %w", err)
	}
	return nil
}

// Technical milestones

func (s *PostgresStore) ListTechnicalMilestones(ctx context.Context) ([]TechnicalMilestone, error) {
	const query = `
		SELECT id, title, description, category, date, completed, success, tokens, revision, created_at, updated_at
		FROM technical_milestones
		ORDER BY created_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	items := []TechnicalMilestone{}
	for rows.Next() {
		var item TechnicalMilestone
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &item.Date,
			&item.Completed, &item.Success, &item.Tokens, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateTechnicalMilestone(ctx context.Context, item TechnicalMilestone) (TechnicalMilestone, error) {
	item.ID = util.NewID()
	const query = `
		INSERT INTO technical_milestones (id, title, description, category, date, completed, success, tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING revision, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, item.ID, item.Title, item.Description, item.Category,
		item.Date, item.Completed, item.Success, item.Tokens).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return TechnicalMilestone{}, fmt.Errorf("insert milestone: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateTechnicalMilestone(ctx context.Context, id string, expectedRevision int, patch TechnicalMilestonePatch) error {
	const query = `
		UPDATE technical_milestones SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			category = COALESCE($5, category),
			date = COALESCE($6, date),
			completed = COALESCE($7, completed),
			success = COALESCE($8, success),
			tokens = COALESCE($9, tokens),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision, patch.Title, patch.Description,
		patch.Category, patch.Date, patch.Completed, patch.Success, patch.Tokens)
	if err != nil {
		return fmt.Errorf("update milestone: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "technical_milestones", id)
}

func (s *PostgresStore) DeleteTechnicalMilestone(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM technical_milestones WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	return nil
}

// Weeks

func (s *PostgresStore) ListWeeks(ctx context.Context) ([]Week, error) {
	const query = `
		SELECT id, week_number, title, summary, start_date, tasks, revision, created_at, updated_at
		FROM weeks
		ORDER BY week_number ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	defer rows.Close()

	items := []Week{}
	for rows.Next() {
		var item Week
		var rawTasks []byte
		if err := rows.Scan(&item.ID, &item.WeekNumber, &item.Title, &item.Summary, &item.StartDate,
			&rawTasks, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		tasks, err := decodeTasks(rawTasks, item.ID)
		if err != nil {
			return nil, err
		}
		item.Tasks = tasks
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateWeek(ctx context.Context, item Week) (Week, error) {
	item.ID = util.NewID()
	encoded, err := encodeTasks(item.Tasks)
	if err != nil {
		return Week{}, err
	}
	const query = `
		INSERT INTO weeks (id, week_number, title, summary, start_date, tasks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING revision, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, item.ID, item.WeekNumber, item.Title, item.Summary,
		item.StartDate, encoded).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Week{}, fmt.Errorf("insert week: %w", err)
	}
	if item.Tasks == nil {
		item.Tasks = []WeekTask{}
	}
	return item, nil
}

func (s *PostgresStore) UpdateWeek(ctx context.Context, id string, expectedRevision int, patch WeekPatch) error {
	var encoded []byte
	if patch.Tasks != nil {
		var err error
		encoded, err = encodeTasks(*patch.Tasks)
		if err != nil {
			return err
		}
	}
	const query = `
		UPDATE weeks SET
			week_number = COALESCE($3, week_number),
			title = COALESCE($4, title),
			summary = COALESCE($5, summary),
			start_date = COALESCE($6, start_date),
			tasks = COALESCE($7, tasks),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision,
		patch.WeekNumber, patch.Title, patch.Summary, patch.StartDate, encoded)
	if err != nil {
		return fmt.Errorf("update week: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "weeks", id)
}

func (s *PostgresStore) DeleteWeek(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM weeks WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete week: %w", err)
	}
	return nil
}

// Deployments

func (s *PostgresStore) ListDeployments(ctx context.Context) ([]Deployment, error) {
	const query = `
		SELECT id, environment, platform, version, status, notes, timestamp, revision, created_at, updated_at
		FROM deployments
		ORDER BY timestamp DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	items := []Deployment{}
	for rows.Next() {
		var item Deployment
		if err := rows.Scan(&item.ID, &item.Environment, &item.Platform, &item.Version, &item.Status,
			&item.Notes, &item.Timestamp, &item.Revision, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateDeployment(ctx context.Context, item Deployment) (Deployment, error) {
	item.ID = util.NewID()
	const query = `
		INSERT INTO deployments (id, environment, platform, version, status, notes, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING revision, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, item.ID, item.Environment, item.Platform, item.Version,
		item.Status, item.Notes, item.Timestamp).Scan(&item.Revision, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Deployment{}, fmt.Errorf("insert deployment: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateDeployment(ctx context.Context, id string, expectedRevision int, patch DeploymentPatch) error {
	const query = `
		UPDATE deployments SET
			environment = COALESCE($3, environment),
			platform = COALESCE($4, platform),
			version = COALESCE($5, version),
			status = COALESCE($6, status),
			notes = COALESCE($7, notes),
			timestamp = COALESCE($8, timestamp),
			revision = revision + 1,
			updated_at = NOW()
		WHERE id = $1 AND revision = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, expectedRevision, patch.Environment, patch.Platform,
		patch.Version, patch.Status, patch.Notes, patch.Timestamp)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	return s.conditionalUpdate(ctx, res, "deployments", id)
}

func (s *PostgresStore) DeleteDeployment(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete deployment: %w", err)
	}
	return nil
}
