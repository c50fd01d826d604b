// Package hooking lets observers attach to a hookable object without the
// object knowing what they do.
package hooking

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook register a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

// A PosFilteredHook forwards only the invocations at selected positions to the
// wrapped hook.
type PosFilteredHook struct {
	hook      Hook
	positions map[*HookPos]bool
}

// OnlyAt wraps a hook so that it only runs at the given positions.
func OnlyAt(hook Hook, positions ...*HookPos) *PosFilteredHook {
	h := &PosFilteredHook{
		hook:      hook,
		positions: make(map[*HookPos]bool, len(positions)),
	}

	for _, pos := range positions {
		h.positions[pos] = true
	}

	return h
}

// Func forwards the context if its position is selected.
func (h *PosFilteredHook) Func(ctx HookCtx) {
	if !h.positions[ctx.Pos] {
		return
	}

	h.hook.Func(ctx)
}
