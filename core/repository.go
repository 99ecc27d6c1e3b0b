package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRecordNotFound is returned by repositories when no row matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UserRecord is the persisted user, including the password hash.
type UserRecord struct {
	ID             string
	Username       string
	PasswordHash   string
	Email          string
	Birthday       *time.Time
	FavoriteMovies []string
	CreatedAt      time.Time
}

// Identity projects the record onto the public User shape.
func (u UserRecord) Identity() User {
	favs := u.FavoriteMovies
	if favs == nil {
		favs = []string{}
	}
	return User{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Birthday:       u.Birthday,
		FavoriteMovies: favs,
	}
}

// NewUser carries the fields needed to register a user.
type NewUser struct {
	Username     string
	PasswordHash string
	Email        string
	Birthday     *time.Time
}

// UserUpdate holds optional replacements; nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	Email        *string
	Birthday     *time.Time
}

// UserLookup is the read side the auth core depends on.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UserLookup
	Create(ctx context.Context, in NewUser) (*UserRecord, error)
	Update(ctx context.Context, id string, in UserUpdate) (*UserRecord, error)
	Delete(ctx context.Context, id string) error
	AddFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error)
	RemoveFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userSelect = `SELECT u.id::text, u.username, u.password_hash, u.email, u.birthday, u.created_at,
	ARRAY(SELECT f.movie_id::text FROM user_favorites f WHERE f.user_id = u.id ORDER BY f.added_at)
FROM users u`

func scanUser(row pgx.Row) (*UserRecord, error) {
	var u UserRecord
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Birthday, &u.CreatedAt, &u.FavoriteMovies); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.username=$1`, username))
}

func (r *PgUserRepository) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}
	return scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.id=$1`, id))
}

func (r *PgUserRepository) Create(ctx context.Context, in NewUser) (*UserRecord, error) {
	const q = `INSERT INTO users (id, username, password_hash, email, birthday) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`
	u := UserRecord{
		ID:             uuid.NewString(),
		Username:       in.Username,
		PasswordHash:   in.PasswordHash,
		Email:          in.Email,
		Birthday:       in.Birthday,
		FavoriteMovies: []string{},
	}
	if err := r.db.QueryRow(ctx, q, u.ID, u.Username, u.PasswordHash, u.Email, u.Birthday).Scan(&u.CreatedAt); err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Update(ctx context.Context, id string, in UserUpdate) (*UserRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}
	const q = `UPDATE users SET
	username = COALESCE($2, username),
	password_hash = COALESCE($3, password_hash),
	email = COALESCE($4, email),
	birthday = COALESCE($5, birthday)
WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id, in.Username, in.PasswordHash, in.Email, in.Birthday)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrRecordNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AddFavorite is idempotent; an unknown movie yields ErrRecordNotFound.
func (r *PgUserRepository) AddFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return nil, ErrRecordNotFound
	}
	const q = `INSERT INTO user_favorites (user_id, movie_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`
	if _, err := r.db.Exec(ctx, q, userID, movieID); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, userID)
}

func (r *PgUserRepository) RemoveFavorite(ctx context.Context, userID, movieID string) (*UserRecord, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return nil, ErrRecordNotFound
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM user_favorites WHERE user_id=$1 AND movie_id=$2`, userID, movieID); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, userID)
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
