package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/battlecore/internal/game/battle"
)

// parseTeam parses "id:level[:ability],..." into battle members.
//
// Postcondition: Returns at least one member with level >= 1, or an error naming the bad entry.
func parseTeam(value string) ([]battle.Member, error) {
	var members []battle.Member
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("team entry %q: want id:level[:ability]", raw)
		}
		level, err := strconv.Atoi(parts[1])
		if err != nil || level < 1 {
			return nil, fmt.Errorf("team entry %q: level must be a positive integer", raw)
		}
		m := battle.Member{CharacterID: parts[0], Level: level}
		if len(parts) == 3 {
			m.Ability = parts[2]
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("team must name at least one character")
	}
	return members, nil
}
