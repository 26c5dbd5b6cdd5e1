// Package tasks runs detached background work with a mandatory failure
// continuation: nothing launched here can fail unobserved.
package tasks

import (
	"fmt"

	"github.com/doeshing/gitscope/internal/ports"
)

// Go runs fn on a new goroutine. A returned error or a panic is converted
// into a call to onFail; onFail itself must not panic.
func Go(name string, log ports.Logger, fn func() error, onFail func(error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				log.Error("detached task panicked", err, map[string]interface{}{"task": name})
				if onFail != nil {
					onFail(err)
				}
			}
		}()
		if err := fn(); err != nil {
			log.Error("detached task failed", err, map[string]interface{}{"task": name})
			if onFail != nil {
				onFail(err)
			}
		}
	}()
}
