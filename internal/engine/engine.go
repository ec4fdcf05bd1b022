package engine

import (
	"errors"
	"slices"
)

var ErrVetoNotStarted = errors.New("veto not started")
var ErrVetoAlreadyStarted = errors.New("veto already started")
var ErrWrongTurn = errors.New("invalid turn")
var ErrIllegalBan = errors.New("illegal map ban")
var ErrIllegalSide = errors.New("illegal side")
var ErrMapNotSelected = errors.New("map not selected yet")
var ErrSideAlreadySelected = errors.New("side already selected")
var ErrUnknownTeam = errors.New("unknown team")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseVeto        Phase = "veto"
	PhaseMapSelected Phase = "map_selected"
)

type MapStatus string

const (
	StatusAvailable MapStatus = "available"
	StatusPicked    MapStatus = "picked"
	StatusBanned    MapStatus = "banned"
)

type Side string

const (
	SideAttack Side = "attack"
	SideDefend Side = "defend"
)

// SidePolicy decides which team holds the single side-select turn once the
// map is locked in.
type SidePolicy string

const (
	// PolicyNonFirstPick gives side choice to the team that lost the
	// first-ban coin flip.
	PolicyNonFirstPick SidePolicy = "non-first-pick"
	PolicyFirstPick    SidePolicy = "first-pick"
)

type Rules struct {
	SideSelect SidePolicy `json:"sideSelectPolicy"`
}

// SideSelect is the single-decision sub-protocol entered after map selection.
type SideSelect struct {
	Started     bool   `json:"isStarted"`
	CurrentTurn string `json:"currentTurn,omitempty"`
	Selected    Side   `json:"selectedSide,omitempty"`
	SelectedBy  string `json:"selectedBy,omitempty"`
	Done        bool   `json:"done"`
}

// State is one room's veto state. Phase is the tag: FirstPick and CurrentTurn
// are meaningful only once veto has started, SelectedMap and Side only in
// map_selected.
type State struct {
	Phase       Phase                `json:"phase"`
	Team1       string               `json:"team1Id"`
	Team2       string               `json:"team2Id"`
	FirstPick   string               `json:"firstPickTeam,omitempty"`
	CurrentTurn string               `json:"currentTurn,omitempty"`
	Remaining   []string             `json:"remainingMaps"`
	Statuses    map[string]MapStatus `json:"mapStatuses"`
	SelectedMap string               `json:"selectedMap,omitempty"`
	Side        SideSelect           `json:"sideSelect"`
	Rules       Rules                `json:"rules"`
}

type CommandType string

const (
	CmdStartVeto  CommandType = "StartVeto"
	CmdBanMap     CommandType = "BanMap"
	CmdSelectSide CommandType = "SelectSide"
)

// Command carries one requested transition. FirstPick is set only on
// StartVeto: the coin flip happens in the caller so the engine stays
// deterministic.
type Command struct {
	Type      CommandType
	Team      string
	MapID     string
	Side      Side
	FirstPick string
}

type EventType string

const (
	EvtVetoStarted  EventType = "VetoStarted"
	EvtMapBanned    EventType = "MapBanned"
	EvtTurnAdvanced EventType = "TurnAdvanced"
	EvtMapSelected  EventType = "MapSelected"
	EvtSideSelected EventType = "SideSelected"
)

type Event struct {
	Type  EventType
	Team  string
	MapID string
	Side  Side
}

// Apply runs one command against the state and returns the events plus the
// next state. On error the input state is returned untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartVeto:
		if s.Phase != PhaseNotStarted {
			return nil, s, ErrVetoAlreadyStarted
		}
		if cmd.FirstPick != s.Team1 && cmd.FirstPick != s.Team2 {
			return nil, s, ErrUnknownTeam
		}
		newState := s.clone()
		newState.Phase = PhaseVeto
		newState.FirstPick = cmd.FirstPick
		newState.CurrentTurn = cmd.FirstPick
		events := []Event{{Type: EvtVetoStarted, Team: cmd.FirstPick}}
		return events, newState, nil

	case CmdBanMap:
		if s.Phase != PhaseVeto {
			if s.Phase == PhaseMapSelected {
				return nil, s, ErrIllegalBan
			}
			return nil, s, ErrVetoNotStarted
		}
		if cmd.Team != s.CurrentTurn {
			return nil, s, ErrWrongTurn
		}
		if !canBan(s, cmd.MapID) {
			return nil, s, ErrIllegalBan
		}

		newState := s.clone()
		i := slices.Index(newState.Remaining, cmd.MapID)
		newState.Remaining = slices.Delete(newState.Remaining, i, i+1)
		newState.Statuses[cmd.MapID] = StatusBanned

		events := []Event{{Type: EvtMapBanned, Team: cmd.Team, MapID: cmd.MapID}}

		if len(newState.Remaining) == 1 {
			last := newState.Remaining[0]
			newState.SelectedMap = last
			newState.Statuses[last] = StatusPicked
			newState.Phase = PhaseMapSelected
			newState.CurrentTurn = ""
			newState.Side = SideSelect{
				Started:     true,
				CurrentTurn: sideChooser(newState),
			}
			events = append(events, Event{Type: EvtMapSelected, MapID: last})
		} else {
			newState.CurrentTurn = otherTeam(newState, cmd.Team)
			events = append(events, Event{Type: EvtTurnAdvanced, Team: newState.CurrentTurn})
		}
		return events, newState, nil

	case CmdSelectSide:
		if s.Phase != PhaseMapSelected || !s.Side.Started {
			return nil, s, ErrMapNotSelected
		}
		if s.Side.Done {
			return nil, s, ErrSideAlreadySelected
		}
		if cmd.Team != s.Side.CurrentTurn {
			return nil, s, ErrWrongTurn
		}
		if cmd.Side != SideAttack && cmd.Side != SideDefend {
			return nil, s, ErrIllegalSide
		}

		newState := s.clone()
		newState.Side.Selected = cmd.Side
		newState.Side.SelectedBy = cmd.Team
		newState.Side.CurrentTurn = ""
		newState.Side.Done = true
		events := []Event{{Type: EvtSideSelected, Team: cmd.Team, Side: cmd.Side}}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
