package mi

import (
	"github.com/irdbg/irdbg/internal/wire"
)

// registerTargetCommands installs target-select. Grounded on the
// reference interpreter's target command handler, which dialed the
// remote stub and replayed the feature-negotiation handshake before
// reporting ^connected.
func registerTargetCommands(e *Engine) {
	e.Register("target-select", cmdTargetSelect)
}

func cmdTargetSelect(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if len(cmd.Args) < 2 || cmd.Args[0] != "remote" {
		reply(ErrorResult(cmd.Token, "target-select requires \"remote HOST:PORT\""))
		return
	}
	addr := cmd.Args[1]
	if err := e.AttachTarget(addr); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(ConnectedResult(cmd.Token))
}
