package bnk

import (
	"fmt"
	"slices"
)

// ResolveOptions controls which links the resolver follows.
type ResolveOptions struct {
	// Actions restricts the action kinds that are followed. Empty follows
	// every kind.
	Actions []ActionKind
	// Embedded reports whether a payload ID is stored in the bank. Payloads
	// it rejects are listed in External instead of PayloadIDs. Nil treats
	// every payload as embedded.
	Embedded func(id uint32) bool
}

// ResolvedEvent is the set of payloads one event can play.
type ResolvedEvent struct {
	EventID uint32
	// ActionIDs lists the event actions in declared order without duplicates.
	ActionIDs []uint32
	// PayloadIDs lists embedded payloads in first-discovery order.
	PayloadIDs []uint32
	// External lists payloads referenced by sounds but not embedded.
	External []uint32
	// Unresolved lists links whose target is not part of the graph.
	Unresolved []UnresolvedReference
}

func (o *ResolveOptions) follows(a *Action) bool {
	if o == nil || len(o.Actions) == 0 {
		return true
	}

	return slices.Contains(o.Actions, a.Kind())
}

func (o *ResolveOptions) embedded(id uint32) bool {
	if o == nil || o.Embedded == nil {
		return true
	}

	return o.Embedded(id)
}

// IndexedPayloads returns an Embedded predicate backed by idx.
func IndexedPayloads(idx *PayloadIndex) func(uint32) bool {
	return idx.Has
}

type resolveFrame struct {
	from uint32
	id   uint32
}

// Resolve walks the graph from an event and collects the payload IDs it can
// reach. Every object is expanded at most once, so cycles terminate.
func Resolve(h *Hierarchy, eventID uint32, opts *ResolveOptions) (*ResolvedEvent, error) {
	obj, ok := h.Object(eventID)
	if !ok {
		return nil, fmt.Errorf("%w: event %d is not part of the hierarchy", ErrUnresolvedReference, eventID)
	}

	ev, ok := obj.(*Event)
	if !ok {
		return nil, fmt.Errorf("%w: object %d is a %s, not an event",
			ErrUnresolvedReference, eventID, obj.ObjectType())
	}

	out := &ResolvedEvent{EventID: eventID}
	visited := map[uint32]bool{eventID: true}
	seenPayload := make(map[uint32]bool)
	seenAction := make(map[uint32]bool)

	var stack []resolveFrame

	for _, id := range ev.Actions {
		if !seenAction[id] {
			seenAction[id] = true
			out.ActionIDs = append(out.ActionIDs, id)
		}
	}

	pushAll := func(from uint32, ids []uint32) {
		for i := len(ids) - 1; i >= 0; i-- {
			stack = append(stack, resolveFrame{from: from, id: ids[i]})
		}
	}

	pushAll(eventID, ev.Actions)

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[frame.id] {
			continue
		}

		visited[frame.id] = true

		obj, ok := h.Object(frame.id)
		if !ok {
			out.Unresolved = append(out.Unresolved, UnresolvedReference{From: frame.from, Target: frame.id})
			continue
		}

		switch o := obj.(type) {
		case *Action:
			if opts.follows(o) {
				pushAll(o.ID, []uint32{o.Target})
			}
		case *Sound:
			if seenPayload[o.SourceID] {
				continue
			}

			seenPayload[o.SourceID] = true

			if opts.embedded(o.SourceID) {
				out.PayloadIDs = append(out.PayloadIDs, o.SourceID)
			} else {
				out.External = append(out.External, o.SourceID)
			}
		case *Container:
			pushAll(o.ID, o.Refs())
		case *Event:
			pushAll(o.ID, o.Actions)
		}
	}

	return out, nil
}

// ResolveAll resolves every event in declaration order.
func ResolveAll(h *Hierarchy, opts *ResolveOptions) ([]*ResolvedEvent, error) {
	out := make([]*ResolvedEvent, 0, len(h.Events))

	for _, id := range h.Events {
		res, err := Resolve(h, id, opts)
		if err != nil {
			return nil, err
		}

		out = append(out, res)
	}

	return out, nil
}
