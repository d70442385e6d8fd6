package main

import (
	"sync"

	"github.com/open-bas/open-bas/internal/logging"
	"github.com/spf13/cobra"
)

// commandExecutionContext records how the running command reports failures.
type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandContextMu sync.RWMutex
	commandContext   commandExecutionContext
)

// plainOutputCommands print for humans and keep errors unstructured.
var plainOutputCommands = map[string]bool{
	"connectors": true,
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	if cmd == nil || cmd == rootCmd {
		return false
	}
	for c := cmd; c != nil && c != rootCmd; c = c.Parent() {
		if plainOutputCommands[c.Name()] {
			return false
		}
	}
	return true
}

func setCommandExecutionContext(ctx commandExecutionContext) {
	commandContextMu.Lock()
	commandContext = ctx
	commandContextMu.Unlock()
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	commandContextMu.RLock()
	defer commandContextMu.RUnlock()
	return commandContext
}

// bootstrapCommand installs the structured logger for the command about to run.
func bootstrapCommand(cmd *cobra.Command, _ []string) error {
	ctx := commandExecutionContext{
		CommandPath:       cmd.CommandPath(),
		UsesStructuredLog: commandUsesStructuredLogging(cmd),
	}
	setCommandExecutionContext(ctx)
	if !ctx.UsesStructuredLog {
		return nil
	}
	if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: ctx.CommandPath, Writer: cmd.ErrOrStderr()}); err != nil {
		return &exitError{code: exitCodeUsage, err: err}
	}
	return nil
}
