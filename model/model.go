package model

import (
	"time"
)

// FixtureRef identifies one real-world match as observed from the provider.
// Two refs with the same FixtureID refer to the same match.
type FixtureRef struct {
	FixtureID  int64     `json:"fixture_id"`
	LeagueID   int       `json:"league_id"`
	LeagueName string    `json:"league_name"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	KickoffUTC time.Time `json:"kickoff_utc"`
	Status     string    `json:"status,omitempty"`
	Venue      string    `json:"venue,omitempty"`
}

// Metadata is the denormalized part of a FixtureRef carried on every envelope
// so handlers don't have to re-fetch the fixture.
type Metadata struct {
	Date   string `json:"date"`
	Home   string `json:"home"`
	Away   string `json:"away"`
	League string `json:"league"`
}

// KickoffLayout renders kickoff times the way the provider does, with a
// numeric "+00:00" offset rather than "Z".
const KickoffLayout = "2006-01-02T15:04:05-07:00"

func (f FixtureRef) Metadata() Metadata {
	return Metadata{
		Date:   f.KickoffUTC.UTC().Format(KickoffLayout),
		Home:   f.HomeTeam,
		Away:   f.AwayTeam,
		League: f.LeagueName,
	}
}
