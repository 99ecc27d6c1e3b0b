package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Genre is embedded in every movie.
type Genre struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Director is embedded in every movie.
type Director struct {
	Name  string     `json:"name" yaml:"name"`
	Bio   string     `json:"bio" yaml:"bio"`
	Birth *time.Time `json:"birth,omitempty" yaml:"birth"`
	Death *time.Time `json:"death,omitempty" yaml:"death"`
}

// Movie is a catalog entry.
type Movie struct {
	ID          string   `json:"id" yaml:"-"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Genre       Genre    `json:"genre" yaml:"genre"`
	Director    Director `json:"director" yaml:"director"`
	Actors      []string `json:"actors" yaml:"actors"`
	ImagePath   string   `json:"image_path" yaml:"image_path"`
	Featured    bool     `json:"featured" yaml:"featured"`
}

// MovieCatalog is the read side used by the movie routes.
type MovieCatalog interface {
	List(ctx context.Context) ([]Movie, error)
	FindByTitle(ctx context.Context, title string) (*Movie, error)
	FindGenre(ctx context.Context, name string) (*Genre, error)
	FindDirector(ctx context.Context, name string) (*Director, error)
}

// PgMovieRepository implements MovieCatalog and catalog seeding using pgxpool.
type PgMovieRepository struct {
	db *pgxpool.Pool
}

func NewPgMovieRepository(db *pgxpool.Pool) *PgMovieRepository {
	return &PgMovieRepository{db: db}
}

const movieSelect = `SELECT id::text, title, description, genre_name, genre_description,
	director_name, director_bio, director_birth, director_death, actors, image_path, featured
FROM movies`

func scanMovie(row pgx.Row) (Movie, error) {
	var m Movie
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Genre.Name, &m.Genre.Description,
		&m.Director.Name, &m.Director.Bio, &m.Director.Birth, &m.Director.Death,
		&m.Actors, &m.ImagePath, &m.Featured)
	return m, err
}

func (r *PgMovieRepository) List(ctx context.Context) ([]Movie, error) {
	rows, err := r.db.Query(ctx, movieSelect+` ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movies := []Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (r *PgMovieRepository) FindByTitle(ctx context.Context, title string) (*Movie, error) {
	m, err := scanMovie(r.db.QueryRow(ctx, movieSelect+` WHERE title=$1`, title))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PgMovieRepository) FindGenre(ctx context.Context, name string) (*Genre, error) {
	const q = `SELECT genre_name, genre_description FROM movies WHERE genre_name=$1 LIMIT 1`
	var g Genre
	if err := r.db.QueryRow(ctx, q, name).Scan(&g.Name, &g.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *PgMovieRepository) FindDirector(ctx context.Context, name string) (*Director, error) {
	const q = `SELECT director_name, director_bio, director_birth, director_death FROM movies WHERE director_name=$1 LIMIT 1`
	var d Director
	if err := r.db.QueryRow(ctx, q, name).Scan(&d.Name, &d.Bio, &d.Birth, &d.Death); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Upsert inserts m or replaces the movie with the same title, returning its id.
func (r *PgMovieRepository) Upsert(ctx context.Context, m Movie) (string, error) {
	const q = `INSERT INTO movies (id, title, description, genre_name, genre_description,
	director_name, director_bio, director_birth, director_death, actors, image_path, featured)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (title) DO UPDATE SET
	description = EXCLUDED.description,
	genre_name = EXCLUDED.genre_name,
	genre_description = EXCLUDED.genre_description,
	director_name = EXCLUDED.director_name,
	director_bio = EXCLUDED.director_bio,
	director_birth = EXCLUDED.director_birth,
	director_death = EXCLUDED.director_death,
	actors = EXCLUDED.actors,
	image_path = EXCLUDED.image_path,
	featured = EXCLUDED.featured
RETURNING id::text`
	actors := m.Actors
	if actors == nil {
		actors = []string{}
	}
	var id string
	err := r.db.QueryRow(ctx, q, uuid.NewString(), m.Title, m.Description, m.Genre.Name, m.Genre.Description,
		m.Director.Name, m.Director.Bio, m.Director.Birth, m.Director.Death,
		actors, m.ImagePath, m.Featured).Scan(&id)
	return id, err
}
