// Package conversation drives the per-user search dialog: language, action,
// origin, destination, date, then results.
package conversation

import "github.com/m3rciful/aviabot/internal/location"

// State is a dialog step.
type State string

const (
	ChoosingLanguage             State = "choosing_language"
	ChoosingAction               State = "choosing_action"
	EnteringOrigin               State = "entering_origin"
	ChoosingOriginCandidate      State = "choosing_origin_candidate"
	EnteringDestination          State = "entering_destination"
	ChoosingDestinationCandidate State = "choosing_destination_candidate"
	ChoosingDateMode             State = "choosing_date_mode"
	EnteringDate                 State = "entering_date"
)

// Trip selects one-way or round-trip pricing.
type Trip string

const (
	OneWay    Trip = "one_way"
	RoundTrip Trip = "round_trip"
)

// Session is the stored dialog state for one user.
type Session struct {
	State                 State                `json:"state"`
	Language              string               `json:"language,omitempty"`
	Trip                  Trip                 `json:"trip,omitempty"`
	Origin                string               `json:"origin,omitempty"`
	OriginCandidates      []location.Candidate `json:"origin_candidates,omitempty"`
	Destination           string               `json:"destination,omitempty"`
	DestinationCandidates []location.Candidate `json:"destination_candidates,omitempty"`
	// Date is the requested departure day as YYYY-MM-DD; empty for nearest.
	Date string `json:"date,omitempty"`
}

// backTo maps each state to the one "back" returns to.
var backTo = map[State]State{
	ChoosingAction:               ChoosingLanguage,
	EnteringOrigin:               ChoosingAction,
	ChoosingOriginCandidate:      EnteringOrigin,
	EnteringDestination:          EnteringOrigin,
	ChoosingDestinationCandidate: EnteringDestination,
	ChoosingDateMode:             EnteringDestination,
	EnteringDate:                 ChoosingDateMode,
}

// leave clears the fields collected in the current state.
func (s *Session) leave() {
	switch s.State {
	case ChoosingAction:
		s.Trip = ""
	case EnteringOrigin:
		s.Origin = ""
	case ChoosingOriginCandidate:
		s.OriginCandidates = nil
	case EnteringDestination:
		s.Destination = ""
		s.DestinationCandidates = nil
	case ChoosingDestinationCandidate:
		s.DestinationCandidates = nil
	case EnteringDate:
		s.Date = ""
	}
}

func (s *Session) resetSearch() {
	s.Origin = ""
	s.OriginCandidates = nil
	s.Destination = ""
	s.DestinationCandidates = nil
	s.Date = ""
}

func findCandidate(list []location.Candidate, code string) (location.Candidate, bool) {
	for _, c := range list {
		if c.Code == code {
			return c, true
		}
	}
	return location.Candidate{}, false
}
