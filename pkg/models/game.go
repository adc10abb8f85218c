package models

import "strings"

// UnknownPlatform labels platform entries that carry no name in either shape.
const UnknownPlatform = "Unknown"

type NamedRef struct {
	ID   int    `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`
	Name string `json:"name"`
}

// PlatformEntry accepts both the nested {"platform":{"name":...}} shape returned by the
// catalog API and a flat {"name":...} shape.
type PlatformEntry struct {
	Platform *NamedRef `json:"platform,omitempty"`
	Name     string    `json:"name,omitempty"`
}

// Label resolves the platform display name.
func (p PlatformEntry) Label() string {
	if p.Platform != nil && strings.TrimSpace(p.Platform.Name) != "" {
		return p.Platform.Name
	}
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return UnknownPlatform
}

type Game struct {
	ID              int             `json:"id"`
	Slug            string          `json:"slug,omitempty"`
	Name            string          `json:"name"`
	Released        string          `json:"released,omitempty"`
	BackgroundImage string          `json:"background_image,omitempty"`
	Genres          []NamedRef      `json:"genres,omitempty"`
	Platforms       []PlatformEntry `json:"platforms,omitempty"`
	Rating          *float64        `json:"rating"`
	OriginalRating  *float64        `json:"original_rating,omitempty"`
}

// RatingValue returns the display rating, treating a missing rating as 0.
func (g Game) RatingValue() float64 {
	if g.Rating == nil {
		return 0
	}
	return *g.Rating
}

// Clone returns a copy of g that shares no slices or pointers with it.
func (g Game) Clone() Game {
	out := g
	if g.Genres != nil {
		out.Genres = append([]NamedRef(nil), g.Genres...)
	}
	if g.Platforms != nil {
		out.Platforms = make([]PlatformEntry, len(g.Platforms))
		for i, p := range g.Platforms {
			out.Platforms[i] = p
			if p.Platform != nil {
				ref := *p.Platform
				out.Platforms[i].Platform = &ref
			}
		}
	}
	out.Rating = copyFloat(g.Rating)
	out.OriginalRating = copyFloat(g.OriginalRating)
	return out
}

func Float64Ptr(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CatalogPage is one page of the upstream catalog listing.
type CatalogPage struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []Game `json:"results"`
}
