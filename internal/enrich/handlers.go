package enrich

import (
	"fmt"

	"github.com/mrzor/gctrace-enrich/internal/correlate"
	"github.com/mrzor/gctrace-enrich/internal/gcevent"
	"github.com/mrzor/gctrace-enrich/internal/scope"
)

// Argument layouts follow the probe definitions in the runtime binding and
// must not be reordered.
func builtinHandlers(opts Options) []*Handler {
	return []*Handler{
		{
			Name:    "plan_end_of_gc",
			Phases:  []gcevent.Phase{gcevent.PhaseBegin},
			Pattern: PatternTag,
			Target:  "output",
			Fn:      tagVM(opts.VM),
		},

		// Potentially pinning parents.
		{
			Name:            "pin_ppps_prepare",
			Arity:           2,
			NeedsWorkPacket: true,
			Pattern:         PatternCount,
			Target:          "work_packet",
			Fn:              pinPPPsPrepare,
		},
		{
			Name:            "remove_dead_ppps",
			Arity:           4,
			NeedsWorkPacket: true,
			Pattern:         PatternCount,
			Target:          "work_packet",
			Fn:              removeDeadPPPs,
		},
		{
			Name:            "unpin_ppp_children",
			Arity:           1,
			NeedsWorkPacket: true,
			Pattern:         PatternCount,
			Target:          "work_packet",
			Fn:              unpinPPPChildren,
		},
		{
			Name:            "process_obj_free_candidates",
			Arity:           2,
			NeedsWorkPacket: true,
			Pattern:         PatternDiff,
			Target:          "work_packet",
			Fn:              processObjFreeCandidates,
		},

		// Parallel st_table weak processing.
		{
			Name:    "weak_st_par_init",
			Arity:   5,
			Pattern: PatternInit,
			Target:  "run",
			Fn:      weakSTParInit,
		},
		{
			Name:            "weak_st_par_entries",
			Arity:           4,
			NeedsWorkPacket: true,
			Pattern:         PatternRange,
			Target:          "work_packet",
			Fn:              weakSTParRange("entries"),
		},
		{
			Name:            "weak_st_par_bins",
			Arity:           4,
			NeedsWorkPacket: true,
			Pattern:         PatternRange,
			Target:          "work_packet",
			Fn:              weakSTParRange("bins"),
		},
		{
			Name:    "weak_st_par_final",
			Arity:   2,
			Pattern: PatternFinal,
			Target:  "run",
			Fn:      weakSTParFinal,
		},

		// Parallel concurrent set weak processing.
		{
			Name:    "weak_cs_par_init",
			Arity:   3,
			Pattern: PatternInit,
			Target:  "run",
			Fn:      weakCSParInit,
		},
		{
			Name:            "weak_cs_par_entries_begin",
			Arity:           3,
			NeedsWorkPacket: true,
			Pattern:         PatternRange,
			Target:          "work_packet",
			Fn:              weakCSParEntriesBegin,
		},
		{
			Name:            "weak_cs_par_entries_end",
			Arity:           3,
			NeedsWorkPacket: true,
			Pattern:         PatternCount,
			Target:          "work_packet",
			Fn:              weakCSParEntriesEnd,
		},
		{
			Name:            "weak_cs_par_final",
			Arity:           1,
			NeedsWorkPacket: true,
			Pattern:         PatternFinal,
			Target:          "run",
			Fn:              weakCSParFinal,
		},

		{
			Name:    "update_finalizer_and_obj_id_tables",
			Arity:   6,
			Pattern: PatternComposite,
			Target:  "output",
			Fn:      updateFinalizerAndObjIDTables,
		},
	}
}

const numEntries = "num_entries"

func tagVM(vm string) HandlerFunc {
	return func(inv *Invocation) error {
		inv.Output.Merge(scope.Bag{"vm": vm})
		return nil
	}
}

func pinPPPsPrepare(inv *Invocation) error {
	v, err := inv.Args.Ints(2)
	if err != nil {
		return err
	}
	young, old := v[0], v[1]

	inv.WorkPacket.Args.Merge(scope.Bag{
		"pin_ppps_prepare": scope.Bag{
			"young": young,
			"old":   old,
			"total": young + old,
		},
	})
	return nil
}

func removeDeadPPPs(inv *Invocation) error {
	v, err := inv.Args.Ints(4)
	if err != nil {
		return err
	}
	young, old, dead, noLonger := v[0], v[1], v[2], v[3]

	inv.WorkPacket.Args.Merge(scope.Bag{
		"young":             young,
		"old":               old,
		"total":             young + old,
		"removed_dead":      dead,
		"removed_no_longer": noLonger,
	})
	return nil
}

func unpinPPPChildren(inv *Invocation) error {
	unpinned, err := inv.Args.Int(0)
	if err != nil {
		return err
	}

	inv.WorkPacket.Args.Merge(scope.Bag{"unpinned": unpinned})
	return nil
}

func processObjFreeCandidates(inv *Invocation) error {
	v, err := inv.Args.Ints(2)
	if err != nil {
		return err
	}

	inv.WorkPacket.Args.Merge(scope.Bag{
		"obj_free_candidates": correlate.Diff(v[0], v[1]),
	})
	return nil
}

// weak_st_par_init(entries_start, entries_bound, bins_num, num_entries, name)
func weakSTParInit(inv *Invocation) error {
	v, err := inv.Args.Ints(4)
	if err != nil {
		return err
	}
	name, err := inv.Args.Name(4)
	if err != nil {
		return err
	}

	inv.Run.Resource(name).Merge(scope.Bag{
		"entries_start": v[0],
		"entries_bound": v[1],
		"bins_num":      v[2],
	})
	correlate.StoreBaseline(inv.Run.Resources, name, numEntries, v[3])
	return nil
}

// weak_st_par_entries / weak_st_par_bins(begin, end, deleted, name)
func weakSTParRange(unit string) HandlerFunc {
	return func(inv *Invocation) error {
		v, err := inv.Args.Ints(3)
		if err != nil {
			return err
		}
		name, err := inv.Args.Name(3)
		if err != nil {
			return err
		}
		begin, end, deleted := v[0], v[1], v[2]

		inv.WorkPacket.Args.Merge(scope.Bag{
			"table": name,
			unit: scope.Bag{
				"begin":   begin,
				"end":     end,
				"count":   end - begin,
				"deleted": deleted,
			},
		})
		return nil
	}
}

// weak_st_par_final(num_entries, name)
func weakSTParFinal(inv *Invocation) error {
	after, err := inv.Args.Int(0)
	if err != nil {
		return err
	}
	name, err := inv.Args.Name(1)
	if err != nil {
		return err
	}

	correlate.Resolve(inv.Run.Resources, name, numEntries, after)
	return nil
}

// weak_cs_par_init(num_entries, capacity, name)
func weakCSParInit(inv *Invocation) error {
	v, err := inv.Args.Ints(2)
	if err != nil {
		return err
	}
	name, err := inv.Args.Name(2)
	if err != nil {
		return err
	}

	inv.Run.Resource(name).Merge(scope.Bag{"capacity": v[1]})
	correlate.StoreBaseline(inv.Run.Resources, name, numEntries, v[0])
	return nil
}

// weak_cs_par_entries_begin(begin, end, name)
func weakCSParEntriesBegin(inv *Invocation) error {
	v, err := inv.Args.Ints(2)
	if err != nil {
		return err
	}
	name, err := inv.Args.Name(2)
	if err != nil {
		return err
	}
	begin, end := v[0], v[1]

	inv.WorkPacket.Args.Merge(scope.Bag{
		"set": name,
		"entries": scope.Bag{
			"begin": begin,
			"end":   end,
			"count": end - begin,
		},
	})
	return nil
}

// weak_cs_par_entries_end(live, moved, deleted)
func weakCSParEntriesEnd(inv *Invocation) error {
	v, err := inv.Args.Ints(3)
	if err != nil {
		return err
	}
	live, moved, deleted := v[0], v[1], v[2]

	inv.WorkPacket.Args.Merge(scope.Bag{
		"entries": scope.Bag{
			"live":    live,
			"moved":   moved,
			"deleted": deleted,
			"total":   live + moved + deleted,
		},
	})
	return nil
}

// weak_cs_par_final(num_entries)
//
// The probe carries no set name. The last packet of a set fires it right after
// weak_cs_par_entries_end, so the name comes from that packet.
func weakCSParFinal(inv *Invocation) error {
	after, err := inv.Args.Int(0)
	if err != nil {
		return err
	}
	name, ok := inv.WorkPacket.Args.String("set")
	if !ok || name == "" {
		return fmt.Errorf("%w: no concurrent set bound to work packet %q", ErrMalformedArguments, inv.WorkPacket.Name)
	}

	correlate.Resolve(inv.Run.Resources, name, numEntries, after)
	return nil
}

// update_finalizer_and_obj_id_tables(fin_before, fin_after,
// obj_to_id_before, obj_to_id_after, id_to_obj_before, id_to_obj_after)
func updateFinalizerAndObjIDTables(inv *Invocation) error {
	v, err := inv.Args.Ints(6)
	if err != nil {
		return err
	}

	inv.Output.Merge(scope.Bag{
		"finalizer_table": correlate.Diff(v[0], v[1]),
		"obj_to_id_tbl":   correlate.Diff(v[2], v[3]),
		"id_to_obj_tbl":   correlate.Diff(v[4], v[5]),
	})
	return nil
}
