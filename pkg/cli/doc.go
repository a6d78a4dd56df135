/*
Package cli provides command-line utilities shared by the modelmux
subcommands: output formatters, typed command errors, and signal handling.

Output Formatting:

Commands that print structured results support text and JSON output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, rows); err != nil {
		return err
	}

Signal Handling:

The run command blocks on the shutdown channel and drains in-flight
requests before exiting:

	sig := <-cli.ShutdownSignal()
	// begin graceful shutdown; a second signal kills the process
*/
package cli
