package mask

// StatusEffect is an equipped mask power on one combatant.
//
// StatusEffect is a value type: every lifecycle function returns the next value
// and never mutates its argument.
type StatusEffect struct {
	Def    *Definition
	Active bool
	// Duration is the remaining duration while Active.
	Duration Countdown
	// Cooldown is the remaining cooldown while inactive.
	Cooldown Countdown
	// Bound holds the combatant ids a single-enemy power was aimed at on activation.
	Bound []string

	// cooldownFresh marks a cooldown that was reset by duration expiry in the
	// current pass and must not be decremented again until Settle.
	cooldownFresh bool
}

// Transition reports what a lifecycle step did to an effect.
type Transition int

const (
	TransitionNone      Transition = iota
	TransitionActivated            // inactive -> active
	TransitionExpired              // active -> inactive, cooldown reset
	TransitionReady                // cooldown reached zero
)

// String returns a human-readable transition label.
func (t Transition) String() string {
	switch t {
	case TransitionActivated:
		return "activated"
	case TransitionExpired:
		return "expired"
	case TransitionReady:
		return "ready"
	default:
		return "none"
	}
}

// New returns a freshly equipped, inactive effect for def.
//
// Precondition: def must not be nil.
// Postcondition: Active is false, Cooldown.Amount is 0, Duration and Cooldown units
// are copied from def.
func New(def *Definition) StatusEffect {
	return StatusEffect{
		Def:      def,
		Duration: def.Effect.Duration,
		Cooldown: Countdown{Unit: def.Cooldown.Unit},
	}
}

// Ready reports whether the effect can be activated.
func (e StatusEffect) Ready() bool {
	return !e.Active && e.Cooldown.Amount == 0
}

// Kind returns the effect kind of the underlying definition.
func (e StatusEffect) Kind() Kind {
	if e.Def == nil {
		return ""
	}
	return e.Def.Effect.Kind
}

// Scope returns the scope of the underlying definition.
func (e StatusEffect) Scope() Scope {
	if e.Def == nil {
		return ""
	}
	return e.Def.Effect.Scope
}

// Factor returns the active multiplier of the underlying definition, or def when none is set.
func (e StatusEffect) Factor(def float64) float64 {
	if e.Def == nil {
		return def
	}
	return e.Def.Effect.Factor(def)
}

// Is reports whether the effect is active and of kind k.
func (e StatusEffect) Is(k Kind) bool {
	return e.Active && e.Kind() == k
}

// Activate switches a ready effect on, restoring its full static duration.
// bound lists the combatants a single-enemy power is aimed at; it is ignored for other scopes.
//
// Postcondition: If e was Ready, returns (active effect, TransitionActivated);
// otherwise returns (e, TransitionNone).
func Activate(e StatusEffect, bound ...string) (StatusEffect, Transition) {
	if e.Def == nil || !e.Ready() {
		return e, TransitionNone
	}
	e.Active = true
	e.Duration = e.Def.Effect.Duration
	e.Bound = nil
	if e.Def.Effect.Scope == ScopeSingleEnemy && len(bound) > 0 {
		e.Bound = append([]string(nil), bound...)
	}
	return e, TransitionActivated
}

// DecrementDuration advances the duration clock of an active effect when ev matches its unit.
// When the duration reaches zero the effect deactivates and its cooldown is reset to the
// definition's static cooldown; that fresh cooldown is protected from DecrementCooldown
// until Settle is called.
//
// Postcondition: Duration.Amount >= 0; on TransitionExpired, Active is false and
// Cooldown equals Def.Cooldown.
func DecrementDuration(e StatusEffect, ev Unit) (StatusEffect, Transition) {
	if !e.Active {
		return e, TransitionNone
	}
	next, matched := e.Duration.step(ev)
	if !matched {
		return e, TransitionNone
	}
	e.Duration = next
	if e.Duration.Amount > 0 {
		return e, TransitionNone
	}
	e.Active = false
	e.Bound = nil
	if e.Def != nil {
		e.Cooldown = e.Def.Cooldown
	}
	e.cooldownFresh = true
	return e, TransitionExpired
}

// DecrementCooldown advances the cooldown clock of an inactive effect when ev matches its unit.
// A cooldown reset earlier in the same pass is left untouched.
//
// Postcondition: Cooldown.Amount >= 0.
func DecrementCooldown(e StatusEffect, ev Unit) (StatusEffect, Transition) {
	if e.Active || e.cooldownFresh || e.Cooldown.Amount == 0 {
		return e, TransitionNone
	}
	next, matched := e.Cooldown.step(ev)
	if !matched {
		return e, TransitionNone
	}
	e.Cooldown = next
	if e.Cooldown.Amount == 0 {
		return e, TransitionReady
	}
	return e, TransitionNone
}

// Settle closes a pass, releasing any cooldown protected by DecrementDuration.
func Settle(e StatusEffect) StatusEffect {
	e.cooldownFresh = false
	return e
}

// Tick applies one event to an effect: the cooldown pass first, then the duration pass,
// then Settle. A cooldown reset by expiry on ev is therefore never decremented by ev.
func Tick(e StatusEffect, ev Unit) (StatusEffect, Transition) {
	e, cd := DecrementCooldown(e, ev)
	e, dur := DecrementDuration(e, ev)
	e = Settle(e)
	if dur != TransitionNone {
		return e, dur
	}
	return e, cd
}
