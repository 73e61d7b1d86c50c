package encounter

// Visible returns the encounters currently offered to the player, in the order of all.
//
// Encounters whose required quests are not all in completed are never offered. Of the remaining
// encounters with loot, each headliner offers only its lowest tier whose loot is not yet fully
// collected, and nothing once every tier is collected. Encounters without loot are offered
// whenever their quests allow.
func Visible(all []*Encounter, ledger Ledger, completed []string) []*Encounter {
	done := make(map[string]bool, len(completed))
	for _, q := range completed {
		done[q] = true
	}

	offered := make(map[string]*Encounter)
	for _, e := range all {
		if len(e.Loot) == 0 || e.Gated(done) || ledger.Collected(e) {
			continue
		}
		cur, ok := offered[e.Headliner]
		if !ok || e.Tier < cur.Tier {
			offered[e.Headliner] = e
		}
	}

	var out []*Encounter
	for _, e := range all {
		if e.Gated(done) {
			continue
		}
		if len(e.Loot) == 0 || offered[e.Headliner] == e {
			out = append(out, e)
		}
	}
	return out
}
