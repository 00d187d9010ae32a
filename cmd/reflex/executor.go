package main

import (
	"context"
	"strconv"

	"reflex/internal/logging"
	"reflex/internal/reload"
	"reflex/internal/state"
)

// newModuleExecutor returns the default reload executor. The
// coordination core does not evaluate JavaScript itself; an embedding
// runtime swaps in its own Executor. This one records each reload in
// the state store so generation counts survive alongside handler
// state, and logs the swap.
func newModuleExecutor(store *state.Store, logger *logging.Logger) reload.Executor {
	return reload.ExecutorFunc(func(ctx context.Context, filePath string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := "reload-generation:" + state.RouteKey(filePath)
		generation := 1
		if previous, ok := store.Get(key).(int); ok {
			generation = previous + 1
		}
		store.Set(key, generation)

		if logger != nil {
			logger.Debug("module reloaded", map[string]string{
				"file":       filePath,
				"generation": strconv.Itoa(generation),
			})
		}
		return nil
	})
}
