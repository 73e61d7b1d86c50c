package dice

// roll evaluates e with src.
//
// Postcondition: len(result.Dice) == e.Count and each die is in [1, e.Sides].
func (e Expression) roll(src Source) RollResult {
	rolled := make([]int, e.Count)
	for i := range rolled {
		rolled[i] = src.Intn(e.Sides) + 1
	}
	return RollResult{Expression: e.Raw, Dice: rolled, Modifier: e.Modifier}
}
