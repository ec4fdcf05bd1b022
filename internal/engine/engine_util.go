package engine

import (
	"maps"
	"slices"
)

// NewState builds a not_started state over the full map pool. Every pool map
// starts available so clients can render the board before the veto begins.
func NewState(team1, team2 string, pool []string, rules Rules) State {
	if rules.SideSelect == "" {
		rules.SideSelect = PolicyNonFirstPick
	}
	statuses := make(map[string]MapStatus, len(pool))
	for _, id := range pool {
		statuses[id] = StatusAvailable
	}
	return State{
		Phase:     PhaseNotStarted,
		Team1:     team1,
		Team2:     team2,
		Remaining: slices.Clone(pool),
		Statuses:  statuses,
		Rules:     rules,
	}
}

func (s State) clone() State {
	c := s
	c.Remaining = slices.Clone(s.Remaining)
	c.Statuses = maps.Clone(s.Statuses)
	return c
}

func otherTeam(s State, team string) string {
	if team == s.Team1 {
		return s.Team2
	}
	return s.Team1
}

func canBan(s State, id string) bool {
	if s.Statuses[id] != StatusAvailable {
		return false
	}
	return slices.Contains(s.Remaining, id)
}

func sideChooser(s State) string {
	if s.Rules.SideSelect == PolicyFirstPick {
		return s.FirstPick
	}
	return otherTeam(s, s.FirstPick)
}

// Opposite returns the complementary side for the opposing team.
func Opposite(side Side) Side {
	if side == SideAttack {
		return SideDefend
	}
	return SideAttack
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
