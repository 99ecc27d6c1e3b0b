package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxCatalogEntries = 10000

type catalogDoc struct {
	Movies []Movie `yaml:"movies"`
}

// ParseMovieCatalog decodes a YAML catalog of the form
//
//	movies:
//	  - title: Inception
//	    description: ...
//	    genre: {name: Sci-Fi, description: ...}
//	    director: {name: Christopher Nolan, bio: ..., birth: 1970-07-30}
//	    actors: [Leonardo DiCaprio]
//	    image_path: inception.png
//	    featured: true
//
// Titles must be unique within the file. Unknown keys are rejected.
func ParseMovieCatalog(data []byte) ([]Movie, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("catalog is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc catalogDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if len(doc.Movies) == 0 {
		return nil, errors.New("catalog has no movies")
	}
	if len(doc.Movies) > maxCatalogEntries {
		return nil, fmt.Errorf("catalog has %d movies, limit is %d", len(doc.Movies), maxCatalogEntries)
	}

	seen := make(map[string]int, len(doc.Movies))
	out := make([]Movie, 0, len(doc.Movies))
	for i, m := range doc.Movies {
		m = normalizeMovie(m)
		if m.Title == "" {
			return nil, fmt.Errorf("movie #%d: title is required", i+1)
		}
		if m.Description == "" {
			return nil, fmt.Errorf("movie %q: description is required", m.Title)
		}
		if m.Director.Birth != nil && m.Director.Death != nil && m.Director.Death.Before(*m.Director.Birth) {
			return nil, fmt.Errorf("movie %q: director death precedes birth", m.Title)
		}
		if prev, dup := seen[m.Title]; dup {
			return nil, fmt.Errorf("movie %q: duplicate of entry #%d", m.Title, prev)
		}
		seen[m.Title] = i + 1
		out = append(out, m)
	}
	return out, nil
}

func normalizeMovie(m Movie) Movie {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	m.Genre.Name = strings.TrimSpace(m.Genre.Name)
	m.Genre.Description = strings.TrimSpace(m.Genre.Description)
	m.Director.Name = strings.TrimSpace(m.Director.Name)
	m.Director.Bio = strings.TrimSpace(m.Director.Bio)
	m.ImagePath = strings.TrimSpace(m.ImagePath)

	actors := make([]string, 0, len(m.Actors))
	for _, a := range m.Actors {
		if a = strings.TrimSpace(a); a != "" {
			actors = append(actors, a)
		}
	}
	m.Actors = actors
	return m
}
