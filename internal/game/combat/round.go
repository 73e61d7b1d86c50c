package combat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
)

// ErrRoundHalted is returned when a round stops early because the field was halted.
var ErrRoundHalted = errors.New("round halted")

// DefaultVariance is the damage variance expression, equivalent to floor(random()*5).
const DefaultVariance = "1d5-1"

// Field is the live battle state a round resolves against.
//
// The resolver never caches combatants across steps: it re-reads Lookup and
// Combatants for every actor so that it always sees the most recently committed arrays.
type Field interface {
	// Combatants returns the committed team followed by the committed enemies.
	Combatants() []*Combatant
	// Lookup returns the live combatant with id.
	Lookup(id string) (*Combatant, bool)
	// Halted reports whether the remaining steps of the round must be abandoned.
	Halted() bool
	// Commit applies fn as one atomic mutation of the field.
	// fn must not call back into the Field.
	Commit(fn func())
}

// RoundEvent records what happened when one step of a round was resolved.
type RoundEvent struct {
	Kind       ActionKind
	ActorID    string
	ActorName  string
	TargetID   string
	TargetName string
	// Damage is nil for ability activations and misses.
	Damage   *Damage
	Missed   bool
	Healed   int
	TargetHP int
	Defeated bool
	// Transitions lists mask power state changes caused by this step, keyed by combatant id.
	Transitions map[string]mask.Transition
	Narrative   string
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Presenter plays each action; nil means actions complete immediately.
	Presenter Presenter
	// PresentationTimeout bounds each wait on Presenter; 0 waits indefinitely.
	PresentationTimeout time.Duration
	// Variance is the damage variance dice expression; empty uses DefaultVariance.
	Variance string
	// TeamStrategy and EnemyStrategy are the default strategies per side.
	TeamStrategy  Strategy
	EnemyStrategy Strategy
}

// Resolver resolves rounds one actor at a time, strictly in order.
type Resolver struct {
	roller     *dice.Roller
	presenter  Presenter
	timeout    time.Duration
	variance   dice.Expression
	strategies map[Side]Strategy
	logger     *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: roller must be non-nil.
// Postcondition: Returns a Resolver or an error if the variance expression is invalid.
func NewResolver(roller *dice.Roller, cfg ResolverConfig, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	expr := cfg.Variance
	if expr == "" {
		expr = DefaultVariance
	}
	variance, err := dice.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing damage variance: %w", err)
	}
	if lo, _ := variance.Bounds(); lo < 0 {
		return nil, fmt.Errorf("damage variance %q can roll below zero", expr)
	}
	strategies := map[Side]Strategy{SideTeam: cfg.TeamStrategy, SideEnemy: cfg.EnemyStrategy}
	for side, s := range strategies {
		if s == nil {
			strategies[side] = MostEffective{}
		}
	}
	return &Resolver{
		roller:     roller,
		presenter:  cfg.Presenter,
		timeout:    cfg.PresentationTimeout,
		variance:   variance,
		strategies: strategies,
		logger:     logger,
	}, nil
}

// Strategy returns the default strategy for side.
func (r *Resolver) Strategy(side Side) Strategy { return r.strategies[side] }

// TurnOrder returns the ids of living combatants sorted by effective speed, fastest first.
// Equal speeds keep their order in cs.
func TurnOrder(cs []*Combatant) []string {
	type entry struct {
		id    string
		speed int
	}
	entries := make([]entry, 0, len(cs))
	for _, c := range cs {
		if c.IsDefeated() {
			continue
		}
		entries = append(entries, entry{id: c.ID, speed: EffectiveSpeed(cs, c)})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].speed > entries[j].speed })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// ResolveRound activates requested reactive mask powers, resolves one step per living
// combatant in speed order, and finally fires the per-round event. Every other requested
// power is activated at the start of its wielder's own step, before that step's attack.
//
// Each step waits for the presenter before committing, so actor N+1 never starts before
// actor N's damage and effect updates are committed. When the field halts or ctx ends between
// steps, the remaining steps are dropped without effect and the per-round event is not fired.
//
// Postcondition: Returns the ordered events of every committed step, and ErrRoundHalted or
// the context error when the round stopped early.
func (r *Resolver) ResolveRound(ctx context.Context, field Field) ([]RoundEvent, error) {
	var events []RoundEvent
	for _, c := range field.Combatants() {
		if c.Effect == nil || !c.Effect.Kind().Reactive() {
			continue
		}
		ev, ok, err := r.activate(ctx, field, c)
		if err != nil {
			return events, err
		}
		if ok {
			events = append(events, ev)
		}
	}

	for _, id := range TurnOrder(field.Combatants()) {
		if err := r.interrupted(ctx, field); err != nil {
			return events, err
		}
		if actor, ok := field.Lookup(id); ok {
			ev, activated, err := r.activate(ctx, field, actor)
			if err != nil {
				return events, err
			}
			if activated {
				events = append(events, ev)
			}
		}
		ev, acted, err := r.resolveTurn(ctx, field, id)
		if err != nil {
			return events, err
		}
		if acted {
			events = append(events, ev)
		}
	}

	if err := r.interrupted(ctx, field); err != nil {
		return events, err
	}
	all := field.Combatants()
	field.Commit(func() {
		for _, c := range all {
			r.tick(c, mask.UnitRound, nil)
		}
	})
	r.logger.Debug("round resolved", zap.Int("events", len(events)))
	return events, nil
}

func (r *Resolver) interrupted(ctx context.Context, field Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if field.Halted() {
		return ErrRoundHalted
	}
	return nil
}

// activate switches on c's power if c asked to use it and it is ready. A request made while
// the power is cooling down stays pending until it is ready.
//
// Postcondition: Returns the activation event and true when the power was switched on.
func (r *Resolver) activate(ctx context.Context, field Field, c *Combatant) (RoundEvent, bool, error) {
	if c.IsDefeated() || c.Effect == nil || !c.WillUseAbility || !c.Effect.Ready() {
		return RoundEvent{}, false, nil
	}
	if err := r.interrupted(ctx, field); err != nil {
		return RoundEvent{}, false, err
	}
	all := field.Combatants()
	var bound []string
	targetID := c.ID
	if c.Effect.Scope() == mask.ScopeSingleEnemy {
		if t := r.strategyFor(c).ChooseTarget(c, opponents(all, c)); t != nil {
			bound = []string{t.ID}
			targetID = t.ID
		}
	}

	r.present(ctx, c.ID, targetID, ActionAbility)
	if err := r.interrupted(ctx, field); err != nil {
		return RoundEvent{}, false, err
	}

	healed := 0
	field.Commit(func() {
		next, _ := mask.Activate(*c.Effect, bound...)
		*c.Effect = next
		c.WillUseAbility = false
		if next.Kind() == mask.KindHeal {
			f := next.Factor(DefaultHealFactor)
			for _, s := range all {
				if Affects(c, s) {
					healed += s.Heal(int(math.Floor(float64(s.MaxHP) * f)))
				}
			}
		}
	})
	name := c.Name
	if c.Effect.Def != nil {
		name = c.Effect.Def.Name
	}
	r.logger.Debug("mask power activated",
		zap.String("combatant", c.ID),
		zap.String("kind", string(c.Effect.Kind())),
		zap.Strings("bound", bound),
	)
	return RoundEvent{
		Kind:        ActionAbility,
		ActorID:     c.ID,
		ActorName:   c.Name,
		TargetID:    targetID,
		Healed:      healed,
		Transitions: map[string]mask.Transition{c.ID: mask.TransitionActivated},
		Narrative:   fmt.Sprintf("%s activates %s.", c.Name, name),
	}, true, nil
}

func (r *Resolver) resolveTurn(ctx context.Context, field Field, id string) (RoundEvent, bool, error) {
	actor, ok := field.Lookup(id)
	if !ok || actor.IsDefeated() {
		return RoundEvent{}, false, nil
	}
	all := field.Combatants()
	mods := ModifiersFor(all, actor)

	strategy := r.strategyFor(actor)
	var candidates []*Combatant
	if mods.Confused {
		strategy = Random{Src: r.roller.Source()}
		for _, c := range all {
			if c.ID != actor.ID && !c.IsDefeated() && !ModifiersFor(all, c).Untargetable {
				candidates = append(candidates, c)
			}
		}
	} else {
		candidates = opponents(all, actor)
	}
	if len(candidates) == 0 {
		r.logger.Debug("no valid targets, skipping turn", zap.String("actor", actor.ID))
		return RoundEvent{}, false, nil
	}
	target := strategy.ChooseTarget(actor, candidates)
	if target == nil {
		target = candidates[0]
	}

	hit := true
	if mods.Accuracy < 1 {
		hit = r.roller.Chance("accuracy:"+actor.ID, mods.Accuracy)
	}
	var dmg Damage
	if hit {
		dmg = ComputeDamage(actor, target, r.rollVariance(), mods, ModifiersFor(all, target))
	}

	r.present(ctx, actor.ID, target.ID, ActionAttack)
	if err := r.interrupted(ctx, field); err != nil {
		return RoundEvent{}, false, err
	}

	transitions := make(map[string]mask.Transition)
	field.Commit(func() {
		if hit {
			target.ApplyDamage(dmg.Total)
		}
		r.tick(actor, mask.UnitAttack, transitions)
		r.tick(target, mask.UnitHit, transitions)
		for _, c := range all {
			r.tick(c, mask.UnitTurn, transitions)
		}
	})

	ev := RoundEvent{
		Kind:        ActionAttack,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		TargetID:    target.ID,
		TargetName:  target.Name,
		Missed:      !hit,
		TargetHP:    target.HP,
		Defeated:    target.IsDefeated(),
		Transitions: transitions,
	}
	switch {
	case !hit:
		ev.Narrative = fmt.Sprintf("%s attacks %s but misses.", actor.Name, target.Name)
	default:
		d := dmg
		ev.Damage = &d
		ev.Narrative = fmt.Sprintf("%s hits %s for %d (x%.1f).", actor.Name, target.Name, dmg.Total, dmg.Effectiveness)
		if ev.Defeated {
			ev.Narrative += fmt.Sprintf(" %s is defeated.", target.Name)
		}
	}
	r.logger.Debug("turn resolved",
		zap.String("actor", actor.ID),
		zap.String("target", target.ID),
		zap.Int("damage", dmg.Total),
		zap.Bool("missed", !hit),
		zap.Int("target_hp", target.HP),
	)
	return ev, true, nil
}

// tick fires ev on c's effect and records any transition.
func (r *Resolver) tick(c *Combatant, ev mask.Unit, transitions map[string]mask.Transition) {
	if c.Effect == nil {
		return
	}
	next, tr := mask.Tick(*c.Effect, ev)
	*c.Effect = next
	if tr == mask.TransitionNone {
		return
	}
	if transitions != nil {
		transitions[c.ID] = tr
	}
	r.logger.Debug("mask power transition",
		zap.String("combatant", c.ID),
		zap.Stringer("event", ev),
		zap.Stringer("transition", tr),
	)
}

// TickAll fires ev on the effect of every combatant in cs.
func (r *Resolver) TickAll(cs []*Combatant, ev mask.Unit) {
	for _, c := range cs {
		r.tick(c, ev, nil)
	}
}

func (r *Resolver) strategyFor(c *Combatant) Strategy {
	if c.Strategy != nil {
		return c.Strategy
	}
	return r.strategies[c.Side]
}

func (r *Resolver) rollVariance() int {
	res, err := r.roller.Roll(r.variance)
	if err != nil {
		r.logger.Warn("damage variance roll failed", zap.Error(err))
		return 0
	}
	if t := res.Total(); t > 0 {
		return t
	}
	return 0
}

// present waits for the presenter to finish the action, bounded by the configured timeout.
// Presenter errors and timeouts are logged and treated as a finished animation.
func (r *Resolver) present(ctx context.Context, actorID, targetID string, kind ActionKind) {
	if r.presenter == nil {
		return
	}
	pctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- r.presenter.PlayAction(pctx, actorID, targetID, kind) }()
	select {
	case err := <-done:
		if err != nil {
			r.logger.Warn("presentation failed, continuing",
				zap.String("actor", actorID),
				zap.Stringer("kind", kind),
				zap.Error(err),
			)
		}
	case <-pctx.Done():
		r.logger.Warn("presentation did not finish in time, continuing",
			zap.String("actor", actorID),
			zap.Stringer("kind", kind),
			zap.Duration("timeout", r.timeout),
		)
	}
}

// opponents returns the living, targetable opponents of c in field order.
func opponents(all []*Combatant, c *Combatant) []*Combatant {
	var out []*Combatant
	for _, o := range all {
		if o.IsDefeated() || !o.Side.Opposes(c.Side) {
			continue
		}
		if ModifiersFor(all, o).Untargetable {
			continue
		}
		out = append(out, o)
	}
	return out
}
