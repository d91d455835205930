package provider

import (
	"time"

	"matchqueue/model"
)

type Team struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo,omitempty"`
	Winner *bool  `json:"winner,omitempty"`
}

type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Season  int    `json:"season,omitempty"`
	Round   string `json:"round,omitempty"`
}

type Venue struct {
	ID   *int   `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	City string `json:"city,omitempty"`
}

type Status struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed,omitempty"`
}

type Score struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type Detail struct {
	ID        int64     `json:"id"`
	Referee   *string   `json:"referee,omitempty"`
	Timezone  string    `json:"timezone"`
	Date      time.Time `json:"date"`
	Timestamp int64     `json:"timestamp"`
	Venue     *Venue    `json:"venue,omitempty"`
	Status    Status    `json:"status"`
}

// Fixture is one element of the provider's /fixtures response.
type Fixture struct {
	Fixture Detail `json:"fixture"`
	League  League `json:"league"`
	Teams   struct {
		Home Team `json:"home"`
		Away Team `json:"away"`
	} `json:"teams"`
	Goals Score `json:"goals"`
	Score struct {
		Halftime  Score `json:"halftime"`
		Fulltime  Score `json:"fulltime"`
		Extratime Score `json:"extratime"`
		Penalty   Score `json:"penalty"`
	} `json:"score"`
}

func (f Fixture) Ref() model.FixtureRef {
	ref := model.FixtureRef{
		FixtureID:  f.Fixture.ID,
		LeagueID:   f.League.ID,
		LeagueName: f.League.Name,
		HomeTeam:   f.Teams.Home.Name,
		AwayTeam:   f.Teams.Away.Name,
		KickoffUTC: f.Fixture.Date.UTC(),
		Status:     f.Fixture.Status.Short,
	}
	if f.Fixture.Venue != nil {
		ref.Venue = f.Fixture.Venue.Name
	}
	return ref
}
