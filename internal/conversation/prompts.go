package conversation

import (
	"fmt"

	"github.com/m3rciful/aviabot/internal/location"
)

const languagesPerRow = 2

func (m *Machine) msg(s *Session, key string) string {
	return m.texts.Text(s.Language, key)
}

func (m *Machine) navRow(s *Session, menu bool) []Button {
	row := []Button{{Text: m.msg(s, "back"), Choice: Choice{KindNav, NavBack}}}
	if menu {
		row = append(row, Button{Text: m.msg(s, "menu"), Choice: Choice{KindNav, NavMenu}})
	}
	return row
}

func (m *Machine) candidateRows(s *Session, list []location.Candidate) [][]Button {
	rows := make([][]Button, 0, len(list)+1)
	for _, c := range list {
		label := c.Name
		if c.Country != "" {
			label += ", " + c.Country
		}
		rows = append(rows, []Button{{
			Text:   fmt.Sprintf("%s (%s)", label, c.Code),
			Choice: Choice{KindCandidate, c.Code},
		}})
	}
	return append(rows, m.navRow(s, false))
}

// prompt renders the message that asks for the current state's input.
func (m *Machine) prompt(s *Session) Reply {
	switch s.State {
	case ChoosingLanguage:
		var rows [][]Button
		var row []Button
		for _, l := range m.texts.Languages() {
			row = append(row, Button{Text: l.Label, Choice: Choice{KindLanguage, l.Code}})
			if len(row) == languagesPerRow {
				rows, row = append(rows, row), nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		return Reply{Text: m.msg(s, "choose_language"), Buttons: rows}
	case ChoosingAction:
		return Reply{Text: m.msg(s, "choose_action"), Buttons: [][]Button{
			{{Text: m.msg(s, "action_one_way"), Choice: Choice{KindAction, ActionOneWay}}},
			{{Text: m.msg(s, "action_round_trip"), Choice: Choice{KindAction, ActionRoundTrip}}},
			{{Text: m.msg(s, "action_language"), Choice: Choice{KindAction, ActionLanguage}}},
		}}
	case EnteringOrigin:
		return Reply{Text: m.msg(s, "ask_origin"), Buttons: [][]Button{m.navRow(s, false)}}
	case ChoosingOriginCandidate:
		return Reply{Text: m.msg(s, "choose_origin"), Buttons: m.candidateRows(s, s.OriginCandidates)}
	case EnteringDestination:
		return Reply{Text: m.msg(s, "ask_destination"), Buttons: [][]Button{m.navRow(s, true)}}
	case ChoosingDestinationCandidate:
		return Reply{Text: m.msg(s, "choose_destination"), Buttons: m.candidateRows(s, s.DestinationCandidates)}
	case ChoosingDateMode:
		return Reply{Text: m.msg(s, "choose_date_mode"), Buttons: [][]Button{
			{
				{Text: m.msg(s, "date_exact"), Choice: Choice{KindDateMode, DateExact}},
				{Text: m.msg(s, "date_nearest"), Choice: Choice{KindDateMode, DateNearest}},
			},
			m.navRow(s, true),
		}}
	case EnteringDate:
		return Reply{Text: m.msg(s, "ask_date"), Buttons: [][]Button{
			{{Text: m.msg(s, "date_nearest"), Choice: Choice{KindDateMode, DateNearest}}},
			m.navRow(s, true),
		}}
	}
	return Reply{Text: m.msg(s, "error")}
}
