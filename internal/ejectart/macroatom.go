package ejectart

import "math/rand"

// MAChannelKind enumerates every way a macro atom can leave the level
// it currently occupies.
type MAChannelKind uint8

const (
	// MARadiativeDecay emits a photon on a bound-bound line to a lower
	// level of the same ion.
	MARadiativeDecay MAChannelKind = iota
	// MAToKPacket is collisional de-excitation straight into the
	// thermal pool: the level's energy above the ion's ground state is
	// deposited as heat, no photon, no level change tracked further.
	MAToKPacket
	// MACollisionalDeexcite moves the macro atom to an adjacent bound
	// level of the same ion via electron collisions, no photon.
	MACollisionalDeexcite
	// MARadiativeRecomb captures a free electron down onto a level of
	// the ion below, emitting a photon near the level's threshold
	// frequency.
	MARadiativeRecomb
	// MACollisionalRecomb captures a free electron down onto the ion
	// below without emitting a photon (the excess energy heats the
	// plasma instead).
	MACollisionalRecomb
	// MAInternalIonJump moves the macro atom onto a level of the ion
	// above without emitting a photon, standing in for photoionisation
	// out of statistical/NLTE equilibrium with that ion.
	MAInternalIonJump
	// MAInternalIonJumpDown moves the macro atom onto a level of the ion
	// below without emitting a photon or depositing heat, the downward
	// counterpart of MAInternalIonJump: an electron capture that leaves
	// the atom in an excited macro-atom state rather than fully
	// recombining or thermalising.
	MAInternalIonJumpDown
)

// MAChannel is one weighted exit from a macro-atom level.
type MAChannel struct {
	Kind           MAChannelKind
	TargetIonIndex int
	TargetLevel    int
	LineIndex      int  // valid when Kind == MARadiativeDecay
	EdgeNu         Real // valid when Kind == MARadiativeRecomb
	Rate           Real
}

// BuildMacroAtomRates enumerates every channel available to a macro
// atom sitting in (ionIndex, level): radiative decay on every line
// with this level as its upper level, collisional de-excitation into
// the thermal pool, same-ion collisional jumps to adjacent levels
// (from the cell's history cache), and, when the atomic model has a
// neighbouring ion, radiative/collisional recombination down, an
// internal jump up, and its downward counterpart onto the ion below
// with no photon emitted. history may be nil, in which case the
// same-ion and upward ion-change collisional channels are simply
// omitted (the downward internal jump only needs photoionisation
// table data, not history).
func BuildMacroAtomRates(a *AtomicData, lines *LineList, cell *ModelCell, history *CellHistory, ionIndex, level int, kPacketRate Real) []MAChannel {
	var channels []MAChannel

	for i := 0; i < lines.Len(); i++ {
		ln := lines.At(i)
		if ln.IonIndex != ionIndex || ln.Upper != level {
			continue
		}
		channels = append(channels, MAChannel{
			Kind:           MARadiativeDecay,
			TargetIonIndex: ionIndex,
			TargetLevel:    ln.Lower,
			LineIndex:      i,
			Rate:           ln.Aji,
		})
	}

	if kPacketRate > 0 {
		channels = append(channels, MAChannel{Kind: MAToKPacket, TargetIonIndex: ionIndex, Rate: kPacketRate})
	}

	if history != nil && ionIndex < len(history.InternalDownRate) {
		if level > 0 && level < len(history.InternalDownRate[ionIndex]) {
			if rate := history.InternalDownRate[ionIndex][level]; rate > 0 {
				channels = append(channels, MAChannel{
					Kind: MACollisionalDeexcite, TargetIonIndex: ionIndex, TargetLevel: level - 1, Rate: rate,
				})
			}
		}
		if level+1 < len(history.InternalUpRate[ionIndex]) {
			if rate := history.InternalUpRate[ionIndex][level]; rate > 0 {
				channels = append(channels, MAChannel{
					Kind: MACollisionalDeexcite, TargetIonIndex: ionIndex, TargetLevel: level + 1, Rate: rate,
				})
			}
		}
	}

	if ionIndex > 0 {
		channels = append(channels, recombinationChannels(a, cell, ionIndex, level)...)
	}

	if history != nil && ionIndex+1 < len(a.Ions) && ionIndex < len(history.PhotoionDeparture) &&
		level < len(history.PhotoionDeparture[ionIndex]) {
		if departure := history.PhotoionDeparture[ionIndex][level]; departure > 0 {
			channels = append(channels, MAChannel{
				Kind:           MAInternalIonJump,
				TargetIonIndex: ionIndex + 1,
				TargetLevel:    0,
				Rate:           InternalIonJumpCoeff * departure,
			})
		}
	}

	return channels
}

// recombinationChannels finds every photoionisation table on the ion
// below that can target this level, and turns each into a triple of
// recombination channels weighted by that target's share of
// ionisations out of its lower level: a radiative capture that emits a
// photon, a collisional capture that fully thermalises, and a
// photonless internal jump down that leaves the atom as a macro atom
// on the ion below, the downward mirror of MAInternalIonJump.
func recombinationChannels(a *AtomicData, cell *ModelCell, ionIndex, level int) []MAChannel {
	var channels []MAChannel
	ne := cell.ElectronDensity
	if ne <= 0 {
		return channels
	}
	for key, table := range a.Photoion {
		if key.IonIndex != ionIndex-1 {
			continue
		}
		for _, target := range table.Targets {
			if target.Level != level || target.Probability <= 0 {
				continue
			}
			nLower := levelPopulation(cell, key.IonIndex, key.Level)
			if nLower <= 0 {
				continue
			}
			channels = append(channels,
				MAChannel{
					Kind:           MARadiativeRecomb,
					TargetIonIndex: ionIndex - 1,
					TargetLevel:    key.Level,
					EdgeNu:         table.ThresholdNu,
					Rate:           RadRecombCoeff * ne * target.Probability,
				},
				MAChannel{
					Kind:           MACollisionalRecomb,
					TargetIonIndex: ionIndex - 1,
					TargetLevel:    key.Level,
					Rate:           CollRecombCoeff * ne * ne * target.Probability,
				},
				MAChannel{
					Kind:           MAInternalIonJumpDown,
					TargetIonIndex: ionIndex - 1,
					TargetLevel:    key.Level,
					Rate:           InternalIonJumpDownCoeff * ne * target.Probability,
				},
			)
		}
	}
	return channels
}

// sampleChannel picks a channel with probability proportional to Rate.
func sampleChannel(rng *rand.Rand, channels []MAChannel) (MAChannel, bool) {
	var total Real
	for _, c := range channels {
		total += c.Rate
	}
	if total <= 0 {
		return MAChannel{}, false
	}
	target := rng.Float64() * float64(total)
	var acc Real
	for _, c := range channels {
		acc += c.Rate
		if Real(target) <= acc {
			return c, true
		}
	}
	return channels[len(channels)-1], true
}

// MAOutcomeKind is the terminal shape a macro atom's run can take.
type MAOutcomeKind uint8

const (
	// MAOutcomeKPacket is deactivation into the thermal pool: no photon.
	MAOutcomeKPacket MAOutcomeKind = iota
	// MAOutcomeLineDecay re-emits a bound-bound photon on LineIndex.
	MAOutcomeLineDecay
	// MAOutcomeRecombEmission re-emits a photon near EdgeNu.
	MAOutcomeRecombEmission
)

// MacroAtomOutcome is the terminal result of running a macro atom to
// exit.
type MacroAtomOutcome struct {
	Kind      MAOutcomeKind
	LineIndex int
	EdgeNu    Real
}

// RunMacroAtom repeatedly samples a macro atom's exit channel starting
// from (ionIndex, level), following internal same-ion and ion-change
// jumps in place, until it radiates a photon (bound-bound or
// recombination) or deactivates to a k-packet. kPacketRateFor is
// recomputed by the caller for each (ion, level) visited, since it
// depends on that level's collisional deexcitation rate.
func RunMacroAtom(rng *rand.Rand, a *AtomicData, lines *LineList, cell *ModelCell, history *CellHistory, ionIndex, level int, kPacketRateFor func(ionIndex, level int) Real) MacroAtomOutcome {
	for iter := 0; iter < 10000; iter++ {
		channels := BuildMacroAtomRates(a, lines, cell, history, ionIndex, level, kPacketRateFor(ionIndex, level))
		choice, ok := sampleChannel(rng, channels)
		if !ok {
			return MacroAtomOutcome{Kind: MAOutcomeKPacket}
		}
		switch choice.Kind {
		case MARadiativeDecay:
			return MacroAtomOutcome{Kind: MAOutcomeLineDecay, LineIndex: choice.LineIndex}
		case MARadiativeRecomb:
			return MacroAtomOutcome{Kind: MAOutcomeRecombEmission, EdgeNu: choice.EdgeNu}
		case MAToKPacket, MACollisionalRecomb:
			return MacroAtomOutcome{Kind: MAOutcomeKPacket}
		case MACollisionalDeexcite, MAInternalIonJump, MAInternalIonJumpDown:
			ionIndex, level = choice.TargetIonIndex, choice.TargetLevel
		}
	}
	return MacroAtomOutcome{Kind: MAOutcomeKPacket}
}

// RunKPacket samples which cooling channel absorbs a k-packet's thermal
// energy: pure heating (the packet's energy leaves the radiation field
// entirely), a collisional ionisation (raises the cell's free-electron
// population; tracked via the estimator, not represented as a new
// packet), or a collisional excitation (promotes the packet to a macro
// atom sitting in the excited level, which RunMacroAtom then processes
// to its own exit).
func RunKPacket(rng *rand.Rand, cl *CoolingList) CoolingContribution {
	return cl.Sample(rng.Float64())
}
